package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pigeon/internal/config"
	"pigeon/internal/facility"
	"pigeon/internal/loader"
)

var (
	configPath = flag.String("config", "pigeon.toml", "Path to configuration file")
	enqueue    = flag.String("enqueue", "", "Queue one save event before starting, as kind:pk[:field,field]")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down gracefully", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.Pigeon.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded", "path", *configPath, "name", cfg.Pigeon.Name)

	st, err := loader.NewLoader(cfg, logger).Initialize(ctx)
	if err != nil {
		return err
	}

	if *enqueue != "" {
		if err := enqueueEvent(ctx, st.Facility, *enqueue, logger); err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			return errors.Join(err, st.Close(shutdownCtx))
		}
	}

	runner := st.Runner
	logger.Info("Starting pusher", "name", runner.Name())

	errChan := make(chan error, 1)
	go func() {
		if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
		close(errChan)
	}()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		logger.Info("Initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := runner.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("Pusher stopped successfully")
	return nil
}

func enqueueEvent(ctx context.Context, fac *facility.Facility, spec string, logger *slog.Logger) error {
	ev, err := facility.ParseEventSpec(spec)
	if err != nil {
		return err
	}

	outcomes, err := fac.AddItemToPush(ctx, ev)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", spec, err)
	}

	for _, o := range outcomes {
		logger.Info("Enqueue outcome",
			"configuration", o.Configuration,
			"kind", o.Kind,
			"pk", o.PK,
			"exported", o.Decision.Export(),
			"reason", o.Decision.Reason(),
			"queued", o.Enqueued,
			"related", o.Related,
		)
	}
	return nil
}
