package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{"pg 23505", &pgconn.PgError{Code: "23505"}, true},
		{"pg other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: chat.id"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestOpenSQLiteMigrates(t *testing.T) {
	gdb, err := OpenSQLite(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"user_profile", "chat", "message"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}
