package db

import (
	"path/filepath"
	"testing"

	"github.com/suPer8Hu/coding-arena/internal/course"
)

func TestConnect_SQLiteMigrates(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "arena.db")
	gdb, err := Connect(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, m := range course.Models() {
		if !gdb.Migrator().HasTable(m) {
			t.Fatalf("missing table for %T", m)
		}
	}
}
