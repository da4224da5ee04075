// Package redis feeds save events published on a redis channel into the
// export facility.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"pigeon/internal/facility"
)

type Handler interface {
	AddItemToPush(ctx context.Context, ev facility.Event) ([]facility.Outcome, error)
}

// Subscriber handles one message at a time, in the order redis delivers them.
type Subscriber struct {
	name    string
	client  *goredis.Client
	channel string
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pubsub  *goredis.PubSub
	done    chan struct{}
	running bool
}

func NewSubscriber(name string, client *goredis.Client, channel string, handler Handler, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		name:    name,
		client:  client,
		channel: channel,
		handler: handler,
		logger:  logger.With("source", name, "channel", channel),
	}
}

func (s *Subscriber) Name() string {
	return s.name
}

// Initialize checks the connection and subscribes; messages published after
// it returns are not lost.
func (s *Subscriber) Initialize(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis source %s: ping: %w", s.name, err)
	}

	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("redis source %s: subscribe %s: %w", s.name, s.channel, err)
	}

	s.mu.Lock()
	s.pubsub = pubsub
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Redis source subscribed")
	return nil
}

// Run consumes messages until ctx is cancelled or the subscription closes.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	pubsub, done := s.pubsub, s.done
	if pubsub == nil || s.running {
		s.mu.Unlock()
		return errors.New("redis source: not initialized or already running")
	}
	s.running = true
	s.mu.Unlock()

	defer close(done)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, msg.Payload); err != nil {
				s.logger.Error("Failed to handle save event", "payload", msg.Payload, "error", err)
			}
		}
	}
}

// Handle processes one raw event payload.
func (s *Subscriber) Handle(ctx context.Context, payload string) error {
	ev, err := facility.ParseEvent([]byte(payload))
	if err != nil {
		return err
	}

	outcomes, err := s.handler.AddItemToPush(ctx, ev)
	if err != nil {
		return err
	}

	queued := 0
	for _, o := range outcomes {
		if o.Enqueued {
			queued++
		}
	}
	s.logger.Debug("Save event handled", "kind", ev.Kind, "pk", ev.PK, "queued", queued)
	return nil
}

func (s *Subscriber) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	pubsub, done, running := s.pubsub, s.done, s.running
	s.pubsub = nil
	s.mu.Unlock()

	if pubsub == nil {
		return nil
	}

	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("redis source %s: close: %w", s.name, err)
	}

	if !running {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
