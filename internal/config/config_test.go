package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendLocal {
		t.Fatalf("default backend should be local, got %s", cfg.Backend)
	}
	if cfg.SnapshotInterval != 100 {
		t.Fatalf("snapshot interval default")
	}
	if cfg.EventIDNotFoundRetries != 50 {
		t.Fatalf("event id not found retries default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "topicd.json")
	data := []byte(`{"backend":"local","dataDirectory":"/tmp/topicd-data","snapshotInterval":250}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDirectory != "/tmp/topicd-data" {
		t.Fatalf("expected overridden data directory, got %s", cfg.DataDirectory)
	}
	if cfg.SnapshotInterval != 250 {
		t.Fatalf("expected 250, got %d", cfg.SnapshotInterval)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "topicd.yaml")
	data := []byte("backend: local\ndataDirectory: /tmp/topicd-yaml\nexecutorSize: 4\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDirectory != "/tmp/topicd-yaml" {
		t.Fatalf("expected overridden data directory, got %s", cfg.DataDirectory)
	}
	if cfg.ExecutorSize != 4 {
		t.Fatalf("expected executor size 4, got %d", cfg.ExecutorSize)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("TOPICD_BACKEND", "cluster")
	os.Setenv("TOPICD_DATA_DIRECTORY", "/var/tmp/topicd")
	os.Setenv("TOPICD_SNAPSHOT_INTERVAL", "24")
	t.Cleanup(func() {
		os.Unsetenv("TOPICD_BACKEND")
		os.Unsetenv("TOPICD_DATA_DIRECTORY")
		os.Unsetenv("TOPICD_SNAPSHOT_INTERVAL")
	})
	FromEnv(&cfg)
	if cfg.Backend != BackendCluster {
		t.Fatalf("env override backend")
	}
	if cfg.DataDirectory != "/var/tmp/topicd" {
		t.Fatalf("env override data directory")
	}
	if cfg.SnapshotInterval != 24 {
		t.Fatalf("env override snapshot interval")
	}
}
