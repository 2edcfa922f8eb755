package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/galaxychat-backend/internal/app"
	"github.com/yungbote/galaxychat-backend/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		a.Log.Error("Shutdown with error", "error", err)
		a.Close()
		os.Exit(1)
	}
}
