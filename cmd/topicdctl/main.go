package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/rzbill/topicd/internal/cmd/client"
	serverrun "github.com/rzbill/topicd/internal/cmd/server"
	cfgpkg "github.com/rzbill/topicd/internal/config"
	logpkg "github.com/rzbill/topicd/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	level := os.Getenv("TOPICD_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "topicdctl",
		Short: "topicd runtime CLI",
		Long:  "topicd is a single-binary coordination fabric. This CLI runs the server and drives map/list operations against it.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverRunCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the topicd server (HTTP + gRPC transports)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg := cfgpkg.Default()
			if dataDir != "" {
				cfg.DataDirectory = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if grpcAddr != "" {
				cfg.GRPCAddr = grpcAddr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			cfgpkg.FromEnv(&cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg, Logger: logger}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverRunCmd.Flags().String("data-dir", "", "Data directory (defaults to an OS-specific application data directory)")
	serverRunCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverRunCmd.Flags().String("grpc", "", "gRPC listen address (default :9090)")
	serverRunCmd.Flags().String("log-level", os.Getenv("TOPICD_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverRunCmd.Flags().String("log-format", os.Getenv("TOPICD_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverRunCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewMapCommand(baseURL))
	rootCmd.AddCommand(clientcmd.NewListCommand(baseURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func baseURL() string {
	if v := os.Getenv("TOPICD_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
