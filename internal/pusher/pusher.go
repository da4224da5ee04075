package pusher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
	"pigeon/internal/storage"
	"pigeon/internal/utils/hash"
)

type Loader interface {
	Load(ctx context.Context, kind catalog.Kind, pk int64) (catalog.Item, error)
}

type Queue interface {
	Pending(ctx context.Context, limit int) ([]storage.QueueEntry, error)
	MarkPushed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error
}

type History interface {
	Record(ctx context.Context, entry storage.HistoryEntry) error
	DeleteOlderThan(ctx context.Context, age time.Duration) error
}

type Config struct {
	BatchSize  int
	MaxRetries int
	BaseDelay  time.Duration

	// HistoryRetention prunes older history rows after each run; zero keeps
	// everything.
	HistoryRetention time.Duration

	// AfterRun is called after every run that touched at least one entry.
	AfterRun func(Stats)
}

type Stats struct {
	Pushed int
	Failed int
}

func (s Stats) Total() int {
	return s.Pushed + s.Failed
}

// Pusher drains the push queue one entry at a time, in queue order.
type Pusher struct {
	cfg     Config
	configs map[string]*export.Dispatcher
	loader  Loader
	queue   Queue
	history History
	target  Target
	logger  *slog.Logger
}

func New(cfg Config, loader Loader, queue Queue, history History, target Target, logger *slog.Logger, configs ...*export.Dispatcher) *Pusher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]*export.Dispatcher, len(configs))
	for _, c := range configs {
		byName[c.Name()] = c
	}

	return &Pusher{
		cfg:     cfg,
		configs: byName,
		loader:  loader,
		queue:   queue,
		history: history,
		target:  target,
		logger:  logger,
	}
}

func (p *Pusher) Initialize(ctx context.Context) error {
	return p.target.Initialize(ctx)
}

func (p *Pusher) Shutdown(ctx context.Context) error {
	return p.target.Shutdown(ctx)
}

func (p *Pusher) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	entries, err := p.queue.Pending(ctx, p.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("pusher: %w", err)
	}

	p.logger.Debug("Pending queue entries", "count", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pushErr := p.pushEntry(ctx, entry)
		if pushErr != nil {
			if errors.Is(pushErr, context.Canceled) || errors.Is(pushErr, context.DeadlineExceeded) {
				return stats, pushErr
			}
			stats.Failed++
			p.logger.Error("Queue entry failed", "id", entry.ID, "configuration", entry.Configuration, "kind", entry.Kind, "pk", entry.PK, "error", pushErr)
			if err := p.queue.MarkFailed(ctx, entry.ID, pushErr.Error()); err != nil {
				return stats, fmt.Errorf("pusher: %w", err)
			}
			continue
		}

		stats.Pushed++
		p.logger.Info("Queue entry pushed", "id", entry.ID, "configuration", entry.Configuration, "kind", entry.Kind, "pk", entry.PK)
		if err := p.queue.MarkPushed(ctx, entry.ID); err != nil {
			return stats, fmt.Errorf("pusher: %w", err)
		}
	}

	if p.cfg.HistoryRetention > 0 {
		if err := p.history.DeleteOlderThan(ctx, p.cfg.HistoryRetention); err != nil {
			p.logger.Warn("Failed to prune push history", "retention", p.cfg.HistoryRetention, "error", err)
		}
	}

	if stats.Total() > 0 && p.cfg.AfterRun != nil {
		p.cfg.AfterRun(stats)
	}

	return stats, nil
}

func (p *Pusher) pushEntry(ctx context.Context, entry storage.QueueEntry) error {
	cfg, ok := p.configs[entry.Configuration]
	if !ok {
		return fmt.Errorf("unknown configuration %q", entry.Configuration)
	}

	item, err := p.loader.Load(ctx, entry.Kind, entry.PK)
	if err != nil {
		return err
	}

	results, err := cfg.Build(ctx, item)
	if err != nil {
		return err
	}

	var failures []string
	for _, res := range results {
		record := storage.HistoryEntry{
			Configuration: entry.Configuration,
			Kind:          entry.Kind,
			PK:            entry.PK,
			Path:          export.Path(res.Output),
		}

		err := res.Err
		if err == nil {
			record.Size = len(res.Artifact.Content)
			record.Checksum = hash.Checksum(res.Artifact.Content)
			err = p.pushWithRetry(ctx, res.Artifact)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
		}

		record.Success = err == nil
		if err != nil {
			record.Message = err.Error()
			failures = append(failures, err.Error())
		}

		if err := p.history.Record(ctx, record); err != nil {
			p.logger.Error("Failed to record push history", "path", record.Path, "error", err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d outputs failed: %s", len(failures), len(results), strings.Join(failures, "; "))
	}

	return nil
}

func (p *Pusher) pushWithRetry(ctx context.Context, artifact *export.Artifact) error {
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		err := p.target.Push(ctx, artifact)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("Artifact pushed on retry", "target", p.target.Name(), "path", artifact.Path(), "attempt", attempt+1)
			}
			return nil
		}

		lastErr = fmt.Errorf("target %s error: %w", p.target.Name(), err)

		if attempt < p.cfg.MaxRetries {
			waitDuration := time.Duration(math.Pow(2, float64(attempt))) * p.cfg.BaseDelay

			p.logger.Warn("Push attempt failed, retrying", "target", p.target.Name(), "path", artifact.Path(),
				"attempt", attempt+1, "max_attempts", p.cfg.MaxRetries+1, "wait_duration", waitDuration, "error", lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
			}
		}
	}

	return fmt.Errorf("target %s: max retries (%d) exceeded: %w", p.target.Name(), p.cfg.MaxRetries+1, lastErr)
}
