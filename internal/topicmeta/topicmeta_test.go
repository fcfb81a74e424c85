package topicmeta

import (
	"testing"

	pebblestore "github.com/rzbill/topicd/internal/storage/pebble"
)

func TestEnsureMetaIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m1, err := EnsureMeta(db, "chat")
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureMeta(db, "chat")
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.Name != m2.Name || m1.CreatedAtMs != m2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
}

func TestListNames(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := EnsureMeta(db, "chat"); err != nil {
		t.Fatalf("ensure chat: %v", err)
	}
	if _, err := EnsureMeta(db, "board"); err != nil {
		t.Fatalf("ensure board: %v", err)
	}

	names, err := ListNames(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}
