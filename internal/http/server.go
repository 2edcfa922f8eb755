package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, cfg RouterConfig) *Server {
	engine := NewRouter(cfg)
	return &Server{
		Engine: engine,
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			// no WriteTimeout: chat responses are long-lived streams bounded by the turn timeout
			IdleTimeout: 120 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully within grace.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
