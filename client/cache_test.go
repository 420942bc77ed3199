package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tasktrack/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshotStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok := store.Load("u1"); ok {
		t.Fatal("expected no snapshot for a fresh store")
	}

	tasks := []domain.Task{
		{ID: "a", Owner: "u1", Title: "A", Category: domain.CategoryWork, Priority: domain.PriorityHigh, DueDate: time.Now().Add(time.Hour).UTC(), Order: 0},
		{ID: "b", Owner: "u1", Title: "B", Category: domain.CategoryPersonal, Priority: domain.PriorityLow, Order: 1},
	}
	if err := store.Save("u1", tasks); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok := store.Load("u1")
	if !ok {
		t.Fatal("expected snapshot after save")
	}
	if len(loaded) != 2 || loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	// Owners are isolated.
	if _, ok := store.Load("u2"); ok {
		t.Fatal("expected no snapshot for another owner")
	}
}

func TestSnapshotStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshotStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Save("u1", []domain.Task{{ID: "a", Owner: "u1", Title: "A", Order: 0}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := OpenSnapshotStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, ok := reopened.Load("u1")
	if !ok || len(loaded) != 1 || loaded[0].ID != "a" {
		t.Fatalf("expected persisted snapshot, got %v %v", ok, loaded)
	}
}

func TestSnapshotStoreLoadReturnsCopy(t *testing.T) {
	store, err := OpenSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Save("u1", []domain.Task{{ID: "a", Owner: "u1", Title: "A", Order: 0}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, _ := store.Load("u1")
	first[0].Title = "mutated"

	second, _ := store.Load("u1")
	if second[0].Title != "A" {
		t.Fatal("snapshot mutated through the returned slice")
	}
}

func TestSnapshotStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "snapshots.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if _, err := OpenSnapshotStore(dir); err == nil {
		t.Fatal("expected error for corrupt snapshot file")
	}
}
