package runtime

import (
	"context"
	"testing"

	configpkg "github.com/rzbill/topicd/internal/config"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	cfg := configpkg.Default()
	cfg.DataDirectory = dir

	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()

	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Engine() == nil {
		t.Fatalf("expected non-nil engine")
	}
}

func TestOpenRejectsClusterBackend(t *testing.T) {
	cfg := configpkg.Default()
	cfg.Backend = configpkg.BackendCluster
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected error opening unimplemented cluster backend")
	}
}
