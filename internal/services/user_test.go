package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/data/repos"
	"github.com/yungbote/galaxychat-backend/internal/data/repos/testutil"
	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
)

func TestUserServiceEnsureAndGetMe(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewUserService(log, repos.NewUserRepo(db, log))

	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID: "user_9", Email: "nine@example.com", Name: "Nine",
	})
	for i := 0; i < 2; i++ {
		if err := svc.EnsureFromContext(ctx); err != nil {
			t.Fatalf("EnsureFromContext: %v", err)
		}
	}
	me, err := svc.GetMe(dbctx.Context{Ctx: ctx})
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != "user_9" || me.Email != "nine@example.com" || me.Name != "Nine" {
		t.Fatalf("me=%+v", me)
	}
}

func TestUserServiceRequiresIdentity(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewUserService(log, repos.NewUserRepo(db, log))

	if err := svc.EnsureFromContext(context.Background()); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetMe(dbctx.Context{Ctx: context.Background()}); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestUserServiceEnsureWindowExpires(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewUserService(log, repos.NewUserRepo(db, log)).(*userService)
	now := time.Now()
	svc.now = func() time.Time { return now }

	svc.seen["u"] = now.Add(-time.Minute)
	if !svc.recentlyEnsured("u") {
		t.Fatalf("expected recent entry")
	}
	svc.seen["u"] = now.Add(-time.Hour)
	if svc.recentlyEnsured("u") {
		t.Fatalf("expected expired entry")
	}
	if _, ok := svc.seen["u"]; ok {
		t.Fatalf("expired entry not evicted")
	}
}

func TestUserServiceSweepsIdleEntries(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewUserService(log, repos.NewUserRepo(db, log)).(*userService)
	now := time.Now()
	svc.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		svc.seen[fmt.Sprintf("idle-%d", i)] = now.Add(-time.Hour)
	}
	svc.seen["active"] = now.Add(-time.Minute)

	if svc.recentlyEnsured("someone-else") {
		t.Fatalf("unexpected recent entry")
	}
	if len(svc.seen) != 1 {
		t.Fatalf("seen has %d entries after sweep, want 1", len(svc.seen))
	}
	if _, ok := svc.seen["active"]; !ok {
		t.Fatalf("active entry swept")
	}
}
