// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

// Macaronid is the sandbox control-plane daemon. It owns the sandbox
// registry, serves the CBOR action protocol on TCP (and optionally a
// unix socket), and optionally the HTTP/JSON gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/macaroni-sandbox/macaroni/cmd/macaroni/cli"
	"github.com/macaroni-sandbox/macaroni/lib/config"
	"github.com/macaroni-sandbox/macaroni/lib/httpapi"
	"github.com/macaroni-sandbox/macaroni/lib/process"
	"github.com/macaroni-sandbox/macaroni/lib/service"
	"github.com/macaroni-sandbox/macaroni/lib/version"
	"github.com/macaroni-sandbox/macaroni/sandbox"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		showVersion bool
	)
	flags := pflag.NewFlagSet("macaronid", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "configuration file (default $"+config.EnvConfig+")")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("macaronid %s\n", version.Full())
		return nil
	}

	cfg, loadedFrom, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.LogLevel()
	if os.Getenv("MACARONI_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := cli.NewLogger(level)
	slog.SetDefault(logger)
	if loadedFrom != "" {
		logger.Info("configuration loaded", "path", loadedFrom)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger)
}

// serve runs the daemon until ctx is cancelled or a listener fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	preflight := sandbox.NewValidator()
	preflight.ValidateAll(cfg.Paths.ShimLibrary, cfg.Paths.State)
	for _, result := range preflight.Results() {
		switch {
		case !result.Passed:
			logger.Error("preflight check failed", "check", result.Name, "detail", result.Message)
		case result.Warning:
			logger.Warn("preflight warning", "check", result.Name, "detail", result.Message)
		default:
			logger.Debug("preflight check passed", "check", result.Name, "detail", result.Message)
		}
	}
	if preflight.HasErrors() {
		return errors.New("preflight checks failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := sandbox.NewPrometheusObserver("macaroni", registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	timeout, _ := cfg.RunTimeout()
	manager, err := sandbox.NewManager(sandbox.Config{
		StateDir:    cfg.Paths.State,
		ShimLibrary: cfg.Paths.ShimLibrary,
		Runner: &sandbox.ExecRunner{
			MaxOutputBytes: cfg.Run.MaxOutputBytes,
			Timeout:        timeout,
		},
		Observer: observer,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	sandboxes := service.NewSandboxService(manager, time.Now())

	group, ctx := errgroup.WithContext(ctx)

	tcp := service.NewSocketServer("tcp", cfg.Listen, logger.With("listener", "tcp"))
	service.RegisterSandboxActions(tcp, sandboxes)
	group.Go(func() error { return tcp.Serve(ctx) })

	if cfg.SocketPath != "" {
		unix := service.NewSocketServer("unix", cfg.SocketPath, logger.With("listener", "unix"))
		service.RegisterSandboxActions(unix, sandboxes)
		group.Go(func() error { return unix.Serve(ctx) })
	}

	if cfg.HTTP.Listen != "" {
		handler, err := httpapi.New(httpapi.Config{
			Sandboxes:  sandboxes,
			Gatherer:   registry,
			Registerer: registry,
			Logger:     logger.With("listener", "http"),
		})
		if err != nil {
			return err
		}
		gateway, err := service.NewHTTPServer(service.HTTPServerConfig{
			Address: cfg.HTTP.Listen,
			Handler: handler,
			Logger:  logger.With("listener", "http"),
		})
		if err != nil {
			return err
		}
		group.Go(func() error { return gateway.Serve(ctx) })
	}

	logger.Info("macaronid started",
		"version", version.Info(),
		"listen", cfg.Listen,
		"socket", cfg.SocketPath,
		"http", cfg.HTTP.Listen,
		"state", cfg.Paths.State,
		"shim", cfg.Paths.ShimLibrary,
	)

	err = group.Wait()
	logger.Info("macaronid stopping", "sandboxes", manager.Len())
	return err
}
