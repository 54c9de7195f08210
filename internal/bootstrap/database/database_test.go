package database

import (
	"context"
	"path/filepath"
	"testing"

	"shelfd/internal/bootstrap/config"
)

func TestOpenCreatesDirectoryAndEnablesWAL(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "shelf.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "x"}); err == nil {
		t.Fatal("Open(postgres) expected error")
	}
}
