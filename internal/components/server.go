package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pigeon/internal/config"
	"pigeon/internal/server/feed"
)

type ServerComponent struct {
	name     string
	cfg      config.ServerConfig
	registry *Registry
	logger   *slog.Logger
	server   *feed.Server
}

func NewServerComponent(name string, cfg config.ServerConfig, registry *Registry, logger *slog.Logger) *ServerComponent {
	return &ServerComponent{name: name, cfg: cfg, registry: registry, logger: logger}
}

func (c *ServerComponent) Name() string {
	return ServerComponentName
}

func (c *ServerComponent) Dependencies() []string {
	return []string{StorageComponentName}
}

func (c *ServerComponent) Validate() error {
	if c.cfg.Port == "" {
		return errors.New("servers: port is required")
	}
	return nil
}

func (c *ServerComponent) Initialize(ctx context.Context) error {
	comp, ok := c.registry.Get(StorageComponentName)
	if !ok {
		return errors.New("servers: storage component not registered")
	}
	store := comp.(*StorageComponent).Store()

	c.server = feed.New(c.name, feed.Config{
		Port:     c.cfg.Port,
		FeedSize: c.cfg.FeedSize,
		CacheTTL: config.ParseDuration(c.cfg.CacheTTL, 5*time.Minute),
	}, store.History(), c.logger)

	if err := c.server.Start(ctx); err != nil {
		return fmt.Errorf("servers: failed to start feed server %s: %w", c.name, err)
	}
	return nil
}

func (c *ServerComponent) Close(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Invalidate drops cached feeds; safe to call before Initialize.
func (c *ServerComponent) Invalidate() {
	if c.server != nil {
		c.server.Invalidate()
	}
}
