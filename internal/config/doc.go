// Package config provides loading and environment overlay for topicd's
// runtime configuration. It exposes a Default() baseline and helpers to
// build the Config the engine and its backend/transports are constructed
// from.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/topicd.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
