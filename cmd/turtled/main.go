// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Command turtled is the process bootstrap for the turtle server: it loads configuration,
// wires the cache/watcher/side-file/fsys collaborators, and starts the HTTP(S) listener
// (spec §6 "CLI/process bootstrap"). Grounded on aldas-echo's own cobra-based example
// command layout, generalized to this module's Server/StartConfig.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/airstand/turtle"
	"github.com/airstand/turtle/cache"
	"github.com/airstand/turtle/config"
	"github.com/airstand/turtle/fsys"
	"github.com/airstand/turtle/metrics"
	"github.com/airstand/turtle/middleware"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "turtled",
		Short: "turtle.io multi-tenant HTTP(S) server and reverse proxy",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML/JSON config file")
	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(turtle.Version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load configuration and start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-address", "", "address to serve Prometheus metrics on (empty disables)")
	return cmd
}

func runServe(configPath, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("turtled: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Logs.Level)}))

	turtle.Seed = cfg.Seed

	tmp := cfg.Tmp
	if tmp == "" {
		tmp = os.TempDir()
	}

	etagStore, err := cache.NewStore(4096, cfg.Seed)
	if err != nil {
		return fmt.Errorf("turtled: etag cache: %w", err)
	}
	sideFiles, err := cache.NewSideFiles(tmp)
	if err != nil {
		return fmt.Errorf("turtled: side files: %w", err)
	}
	watchers, err := cache.NewWatcherRegistry(etagStore.Unregister)
	if err != nil {
		return fmt.Errorf("turtled: watcher registry: %w", err)
	}
	deadlines := cache.NewDeadlineQueue(etagStore.Unregister)
	_ = deadlines // scheduled from proxy.Route.OnMaxAge by callers that register proxy routes

	opts := turtle.Options{
		ID:           cfg.ID,
		Default:      cfg.Default,
		VHosts:       cfg.VHosts,
		Root:         cfg.Root,
		Index:        cfg.Index,
		Headers:      cfg.Headers,
		Compress:     cfg.Compress,
		JSONIndent:   indentString(cfg.JSON),
		MaxBytes:     cfg.MaxBytes,
		ProxyRewrite: cfg.Proxy.Rewrite,
		Logger:       logger,
		LogFormat:    cfg.Logs.Format,
	}
	s := turtle.New(opts)
	s.Cache = etagStore
	s.Watch = watchers
	s.SideFiles = sideFiles

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.Prober = metrics.New(reg)
		go serveMetrics(metricsAddr, reg, logger)
	}

	fileHandler := fsys.New(cfg.Index, cfg.Seed)
	s.FileHandler = fileHandler.Handle

	s.Handle("all", "all", "*",
		middleware.RequestID(),
		middleware.Decompress(),
		middleware.MethodOverride(),
		middleware.ETagGate(),
	)

	gracefulCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCfg := turtle.StartConfig{
		Address:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		GracefulContext: gracefulCtx,
		OnShutdownError: func(err error) { logger.Error("shutdown error", "error", err) },
	}

	var startErr error
	if cfg.SSL.Cert != "" && cfg.SSL.Key != "" {
		startErr = startCfg.StartTLS(s, cfg.SSL.Cert, cfg.SSL.Key)
	} else {
		startErr = startCfg.Start(s)
	}
	watchers.Close()
	if startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
		return startErr
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener stopped", "error", err)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func indentString(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
