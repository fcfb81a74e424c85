// Package serverrun exposes a shared Run entrypoint used by the CLI to
// boot a topicd runtime with both the HTTP and gRPC transports, handling
// lifecycle and graceful shutdown.
package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	configpkg "github.com/rzbill/topicd/internal/config"
	"github.com/rzbill/topicd/internal/runtime"
	grpcserver "github.com/rzbill/topicd/internal/server/grpc"
	httpserver "github.com/rzbill/topicd/internal/server/http"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// Options configures one server run.
type Options struct {
	Config configpkg.Config
	Logger logpkg.Logger
}

// Run opens a runtime over opts.Config, starts the HTTP and gRPC
// transports on the addresses named in the config, and blocks until ctx
// (or an OS interrupt/TERM signal) ends the run.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Config.DataDirectory == "" {
		opts.Config.DataDirectory = configpkg.DefaultDataDir()
	}

	logger := opts.Logger
	if logger == nil {
		lvl, err := logpkg.ParseLevel(opts.Config.Log.Level)
		if err != nil {
			lvl = logpkg.InfoLevel
		}
		logger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting topicd server",
		logpkg.Str("http", opts.Config.HTTPAddr),
		logpkg.Str("grpc", opts.Config.GRPCAddr),
		logpkg.Str("data_directory", opts.Config.DataDirectory),
	)

	hsrv := httpserver.New(rt)
	gsrv := grpcserver.New(rt)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.Config.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.Config.GRPCAddr); err != nil && sctx.Err() == nil {
			log.Printf("grpc error: %v", err)
		}
	}()

	<-sctx.Done()
	hsrv.Close()
	gsrv.Close()
	wg.Wait()
	return nil
}
