// Package runtime wires configuration, backend, and engine together into
// the single object a transport or CLI command needs to boot the service,
// mirroring how the rest of this codebase keeps storage/config wiring out
// of its transports.
package runtime

import (
	"context"
	"errors"
	"fmt"

	cfgpkg "github.com/rzbill/topicd/internal/backend"
	configpkg "github.com/rzbill/topicd/internal/config"
	"github.com/rzbill/topicd/internal/engine"
	"github.com/rzbill/topicd/internal/topic"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config configpkg.Config
	Logger logpkg.Logger
}

// Runtime owns the process's backend and engine for the lifetime of one
// `server run` invocation.
type Runtime struct {
	be     cfgpkg.Backend
	engine *engine.Engine
	config configpkg.Config
}

// Open constructs the backend named by opts.Config.Backend, announces this
// node to the membership log, and builds the Engine on top of it. Only
// the local backend is implemented; a "cluster" config value fails fast
// since the extension point named in §9 has no implementation here.
func Open(opts Options) (*Runtime, error) {
	if opts.Config.Backend != configpkg.BackendLocal {
		return nil, fmt.Errorf("runtime: unsupported backend %q (only %q is implemented)", opts.Config.Backend, configpkg.BackendLocal)
	}
	if opts.Config.DataDirectory == "" {
		return nil, errors.New("runtime: DataDirectory is required")
	}

	be, err := cfgpkg.Open(opts.Config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("runtime: open backend: %w", err)
	}
	if err := be.Announce(context.Background()); err != nil {
		be.Close()
		return nil, fmt.Errorf("runtime: announce: %w", err)
	}

	topicOpts := topic.Options{
		SnapshotInterval:       opts.Config.SnapshotInterval,
		EventIDNotFoundRetries: opts.Config.EventIDNotFoundRetries,
	}
	eng := engine.New(be, opts.Config.Backend == configpkg.BackendCluster, opts.Logger, topicOpts)

	return &Runtime{be: be, engine: eng, config: opts.Config}, nil
}

// Close withdraws this node from the membership log and shuts the engine
// (and its backend) down.
func (r *Runtime) Close() error {
	if r.engine == nil {
		return nil
	}
	_ = r.be.Withdraw(context.Background())
	r.engine.Shutdown()
	return nil
}

// CheckHealth reports whether the engine is still accepting connections;
// consumed by the gRPC health service and the HTTP transport's /healthz.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.engine == nil || !r.engine.Active() {
		return errors.New("engine not active")
	}
	return nil
}

// Engine exposes the runtime's Engine for transports to bind to.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// Config returns the runtime's configuration.
func (r *Runtime) Config() configpkg.Config { return r.config }
