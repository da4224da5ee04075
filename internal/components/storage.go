package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pigeon/internal/config"
	"pigeon/internal/storage"
)

// StorageComponent owns the database every other component reads from.
type StorageComponent struct {
	cfg    config.StorageConfig
	logger *slog.Logger
	store  storage.StorageInterface
}

func NewStorageComponent(cfg config.StorageConfig, logger *slog.Logger) *StorageComponent {
	return &StorageComponent{cfg: cfg, logger: logger}
}

func (c *StorageComponent) Name() string           { return StorageComponentName }
func (c *StorageComponent) Dependencies() []string { return nil }

func (c *StorageComponent) Validate() error {
	if c.cfg.Path == "" {
		return errors.New("storage: database path is required")
	}
	return nil
}

func (c *StorageComponent) Initialize(ctx context.Context) error {
	store, err := storage.Open(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	c.store = store
	return nil
}

func (c *StorageComponent) Close(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	store := c.store
	c.store = nil
	return store.Close(ctx)
}

// Store is nil until the component is initialized and after it is closed.
func (c *StorageComponent) Store() storage.StorageInterface {
	return c.store
}
