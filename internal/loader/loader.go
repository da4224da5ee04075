package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"pigeon/internal/components"
	"pigeon/internal/config"
	"pigeon/internal/export"
	"pigeon/internal/facility"
	"pigeon/internal/partner"
	"pigeon/internal/pusher"
	redissource "pigeon/internal/sources/redis"
	"pigeon/internal/state"
	"pigeon/internal/template"

	_ "pigeon/internal/storage/sqlite"
)

const maxPushRetries = 3

type Loader struct {
	config *config.Config
	logger *slog.Logger

	storageComp *components.StorageComponent
	serverComp  *components.ServerComponent

	buildOnce sync.Once
	built     *state.State
	buildErr  error
}

func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: cfg,
		logger: logger,
	}
}

func (l *Loader) Initialize(ctx context.Context) (*state.State, error) {
	registry := components.NewRegistry()
	l.logger.Info("Initializing all components")

	l.storageComp = components.NewStorageComponent(l.config.Storage, l.logger)
	if err := registry.Register(l.storageComp); err != nil {
		return nil, fmt.Errorf("failed to register storage component: %w", err)
	}

	if l.config.Server.Enabled {
		l.serverComp = components.NewServerComponent(l.config.Pigeon.Name, l.config.Server, registry, l.logger)
		if err := registry.Register(l.serverComp); err != nil {
			return nil, fmt.Errorf("failed to register server component: %w", err)
		}
	}

	if l.config.Redis.Enabled {
		provider := func() (redissource.Handler, error) {
			st, err := l.build(registry)
			if err != nil {
				return nil, err
			}
			return st.Facility, nil
		}
		if err := registry.Register(components.NewRedisComponent(l.config.Redis, provider, l.logger)); err != nil {
			return nil, fmt.Errorf("failed to register redis component: %w", err)
		}
	}

	if err := registry.InitializeAll(ctx); err != nil {
		return nil, fmt.Errorf("component initialization failed: %w", err)
	}

	st, err := l.build(registry)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to build pipeline: %w", err), registry.CloseAll(ctx))
	}

	l.logger.Info("All components initialized successfully", "order", registry.Order())
	return st, nil
}

// build wires the export configurations, facility and pusher. It runs once,
// after the storage component is initialized.
func (l *Loader) build(registry *components.Registry) (*state.State, error) {
	l.buildOnce.Do(func() {
		l.built, l.buildErr = l.buildState(registry)
	})
	return l.built, l.buildErr
}

func (l *Loader) buildState(registry *components.Registry) (*state.State, error) {
	store := l.storageComp.Store()
	if store == nil {
		return nil, errors.New("storage not initialized")
	}

	var overrides fs.FS
	if dir := l.config.Pigeon.TemplateDir; dir != "" {
		overrides = os.DirFS(dir)
	}
	templates := template.NewSet(nil, overrides, partner.Templates())

	beloved, err := partner.New(partner.Deps{
		Catalog:   store.Catalog(),
		Templates: templates,
		Media:     os.DirFS(l.config.Pigeon.MediaRoot),
		Logger:    l.logger,
	})
	if err != nil {
		return nil, err
	}
	configurations := []*export.Dispatcher{beloved}

	fac := facility.New(store.Catalog(), store.Queue(), l.logger, configurations...)

	var afterRun func(pusher.Stats)
	if l.serverComp != nil {
		afterRun = func(pusher.Stats) { l.serverComp.Invalidate() }
	}

	p := pusher.New(pusher.Config{
		BatchSize:        l.config.Pigeon.BatchSize,
		MaxRetries:       maxPushRetries,
		BaseDelay:        time.Second,
		HistoryRetention: l.config.RetentionDuration(),
		AfterRun:         afterRun,
	}, store.Catalog(), store.Queue(), store.History(),
		pusher.NewLocalTarget(l.config.Pigeon.WorkingDir, l.logger), l.logger, configurations...)

	shutdownFn := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return registry.CloseAll(shutdownCtx)
	}

	runner := pusher.NewRunner(p, pusher.RunnerConfig{
		Name:       l.config.Pigeon.Name,
		Interval:   l.config.IntervalDuration(),
		RunOnce:    l.config.Pigeon.RunOnce,
		ShutdownFn: shutdownFn,
	}, l.logger)

	return &state.State{
		Config:         l.config,
		Registry:       registry,
		Store:          store,
		Configurations: configurations,
		Facility:       fac,
		Pusher:         p,
		Runner:         runner,
	}, nil
}
