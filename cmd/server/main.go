package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"truconn/internal/platform/config"
	"truconn/internal/platform/httpserver"
	"truconn/internal/platform/logger"
)

// main wires dependencies and runs the HTTP server and background relay
// until SIGINT or SIGTERM. Business logic lives in the internal packages.
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	srv := httpserver.New(cfg.Server.Addr, newRouter(app, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting truconn",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Driver,
			"redis", app.redis != nil,
			"kafka", app.producer != nil,
		)
		return httpserver.Serve(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	if cfg.RateLimit.Enabled {
		g.Go(func() error {
			return app.sweepBuckets(gctx)
		})
	}
	if app.relay != nil {
		g.Go(func() error {
			return app.relay.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
