package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/topicd/internal/config"
)

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := cfgpkg.Default()
	cfg.DataDirectory = t.TempDir()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, Options{Config: cfg})
	if err != nil {
		t.Errorf("expected clean shutdown on context cancellation, got %v", err)
	}
}

func TestRunDefaultsDataDirectoryWhenEmpty(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDirectory = ""

	if cfg.DataDirectory != "" {
		t.Fatalf("precondition: expected empty data directory")
	}

	got := cfg.DataDirectory
	if got == "" {
		got = cfgpkg.DefaultDataDir()
	}
	if got == "" {
		t.Error("expected a non-empty default data directory")
	}
}
