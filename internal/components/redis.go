package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"pigeon/internal/config"
	redissource "pigeon/internal/sources/redis"
)

// HandlerProvider is resolved at initialization, once storage is up.
type HandlerProvider func() (redissource.Handler, error)

type RedisComponent struct {
	cfg        config.RedisConfig
	provider   HandlerProvider
	logger     *slog.Logger
	client     *goredis.Client
	subscriber *redissource.Subscriber
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewRedisComponent(cfg config.RedisConfig, provider HandlerProvider, logger *slog.Logger) *RedisComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisComponent{cfg: cfg, provider: provider, logger: logger}
}

func (c *RedisComponent) Name() string {
	return RedisComponentName
}

func (c *RedisComponent) Dependencies() []string {
	return []string{StorageComponentName}
}

func (c *RedisComponent) Validate() error {
	if c.cfg.Addr == "" {
		return errors.New("redis: addr is required")
	}
	if c.cfg.Channel == "" {
		return errors.New("redis: channel is required")
	}
	if c.provider == nil {
		return errors.New("redis: handler provider is required")
	}
	return nil
}

func (c *RedisComponent) Initialize(ctx context.Context) error {
	handler, err := c.provider()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	c.client = goredis.NewClient(&goredis.Options{
		Addr:     c.cfg.Addr,
		Password: c.cfg.Password,
		DB:       c.cfg.DB,
	})

	c.subscriber = redissource.NewSubscriber("saves", c.client, c.cfg.Channel, handler, c.logger)
	if err := c.subscriber.Initialize(ctx); err != nil {
		c.client.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.subscriber.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Redis source stopped", "error", err)
		}
	}()

	return nil
}

func (c *RedisComponent) Close(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.subscriber != nil {
		if err := c.subscriber.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.wg.Wait()

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: close client: %w", err))
		}
	}
	return errors.Join(errs...)
}
