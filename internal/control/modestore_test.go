package control

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bmcfleet/fanctl/internal/infrastructure/database"
	_ "github.com/bmcfleet/fanctl/migrations"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "fanctl.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func TestSQLiteModeStoreRoundTrip(t *testing.T) {
	store := NewSQLiteModeStore(openTestDB(t).DB)

	if _, ok, err := store.Mode("cpu"); err != nil || ok {
		t.Fatalf("Mode() before save = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.SaveMode("cpu", "acoustic"); err != nil {
		t.Fatalf("SaveMode() error: %v", err)
	}
	mode, ok, err := store.Mode("cpu")
	if err != nil || !ok || mode != "acoustic" {
		t.Fatalf("Mode() = %q, %v, %v", mode, ok, err)
	}

	// Upsert replaces the previous mode.
	if err := store.SaveMode("cpu", "performance"); err != nil {
		t.Fatalf("SaveMode() upsert error: %v", err)
	}
	mode, _, err = store.Mode("cpu")
	if err != nil || mode != "performance" {
		t.Fatalf("Mode() after upsert = %q, %v", mode, err)
	}
}

func TestSQLiteModeStoreZonesIndependent(t *testing.T) {
	store := NewSQLiteModeStore(openTestDB(t).DB)

	if err := store.SaveMode("cpu", "acoustic"); err != nil {
		t.Fatalf("SaveMode() error: %v", err)
	}
	if err := store.SaveMode("io", "performance"); err != nil {
		t.Fatalf("SaveMode() error: %v", err)
	}

	if mode, _, _ := store.Mode("cpu"); mode != "acoustic" {
		t.Errorf("cpu mode = %q", mode)
	}
	if mode, _, _ := store.Mode("io"); mode != "performance" {
		t.Errorf("io mode = %q", mode)
	}
}
