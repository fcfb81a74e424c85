package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TOPICD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TOPICD_BACKEND"); v != "" {
		cfg.Backend = BackendKind(v)
	}
	if v := os.Getenv("TOPICD_DATA_DIRECTORY"); v != "" {
		cfg.DataDirectory = v
	}
	if v := os.Getenv("TOPICD_EXECUTOR_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ExecutorSize = n
		}
	}
	if v := os.Getenv("TOPICD_SNAPSHOT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotInterval = n
		}
	}
	if v := os.Getenv("TOPICD_EVENT_ID_NOT_FOUND_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventIDNotFoundRetries = n
		}
	}
	if v := os.Getenv("TOPICD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("TOPICD_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("TOPICD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TOPICD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TOPICD_LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
}
