package user

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/galaxychat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
)

func TestUserRepoEnsureIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	id := "user_" + uuid.NewString()

	first, err := repo.Ensure(dbc, &types.User{ID: id, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	second, err := repo.Ensure(dbc, &types.User{ID: id, Email: "other@example.com"})
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if second.Email != first.Email {
		t.Fatalf("second ensure overwrote row: %q", second.Email)
	}
}

func TestUserRepoEnsureConcurrent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	id := "user_" + uuid.NewString()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Ensure(dbc, &types.User{ID: id}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent ensure: %v", err)
	}
	var count int64
	if err := db.Model(&types.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestUserRepoGetByIDMissing(t *testing.T) {
	repo := NewUserRepo(testutil.DB(t), testutil.Logger(t))
	u, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, "nobody")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil, got %+v", u)
	}
}
