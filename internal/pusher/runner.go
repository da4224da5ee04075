package pusher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type RunnerConfig struct {
	Name       string
	Interval   time.Duration
	RunOnce    bool
	ShutdownFn func() error
}

// Runner drives a Pusher either once or on a fixed interval.
type Runner struct {
	name       string
	pusher     *Pusher
	interval   time.Duration
	runOnce    bool
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	stopOnce   sync.Once
	errorCh    chan error
	shutdownFn func() error
	logger     *slog.Logger
}

func NewRunner(pusher *Pusher, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		name:       config.Name,
		pusher:     pusher,
		interval:   config.Interval,
		runOnce:    config.RunOnce,
		stopCh:     make(chan struct{}),
		errorCh:    make(chan error, 10),
		shutdownFn: config.ShutdownFn,
		logger:     logger.With("runner", config.Name),
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner already running")
	}
	r.running = true
	r.mu.Unlock()

	if err := r.pusher.Initialize(ctx); err != nil {
		r.markStopped()
		return fmt.Errorf("failed to initialize pusher: %w", err)
	}

	if r.runOnce {
		return r.runOnceMode(ctx)
	}

	return r.runContinuousMode(ctx)
}

func (r *Runner) runOnceMode(ctx context.Context) error {
	defer r.markStopped()

	if err := r.executeRun(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("push run failed: %w", err)
	}

	return nil
}

func (r *Runner) runContinuousMode(ctx context.Context) error {
	defer r.markStopped()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.report(r.executeRun(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			return nil
		case <-ticker.C:
			r.report(r.executeRun(ctx))
		}
	}
}

func (r *Runner) executeRun(ctx context.Context) error {
	stats, err := r.pusher.RunOnce(ctx)
	if stats.Total() > 0 {
		r.logger.Info("Push run finished", "pushed", stats.Pushed, "failed", stats.Failed)
	}
	return err
}

func (r *Runner) report(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.logger.Error("Push run failed", "error", err)
	select {
	case r.errorCh <- err:
	default:
	}
}

func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })

	if err := r.pusher.Shutdown(ctx); err != nil {
		return fmt.Errorf("pusher shutdown failed: %w", err)
	}

	if r.shutdownFn != nil {
		if err := r.shutdownFn(); err != nil {
			return fmt.Errorf("custom shutdown failed: %w", err)
		}
	}

	return nil
}

func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) Errors() <-chan error {
	return r.errorCh
}

func (r *Runner) markStopped() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}
