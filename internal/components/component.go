// Package components starts and stops the long lived parts of the process
// in dependency order.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pigeon/internal/graph"
)

const (
	StorageComponentName = "storage"
	RedisComponentName   = "redis"
	ServerComponentName  = "servers"
)

type Component interface {
	Name() string
	Dependencies() []string
	Validate() error
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
}

type Registry struct {
	byName  map[string]Component
	started []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Component)}
}

func (r *Registry) Register(c Component) error {
	if _, dup := r.byName[c.Name()]; dup {
		return fmt.Errorf("component %s already registered", c.Name())
	}
	r.byName[c.Name()] = c
	return nil
}

func (r *Registry) Get(name string) (Component, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// InitializeAll validates every component before initializing any. If one
// fails to initialize, those already started are closed again.
func (r *Registry) InitializeAll(ctx context.Context) error {
	nodes := make(map[string]graph.Node, len(r.byName))
	for name, c := range r.byName {
		nodes[name] = node{c}
	}

	order, err := graph.TopologicalSort(nodes)
	if err != nil {
		return err
	}

	var invalid []error
	for _, name := range order {
		if err := r.byName[name].Validate(); err != nil {
			invalid = append(invalid, fmt.Errorf("component %s validation failed: %w", name, err))
		}
	}
	if len(invalid) > 0 {
		return errors.Join(invalid...)
	}

	for _, name := range order {
		slog.Debug("Initializing component", "component", name)
		if err := r.byName[name].Initialize(ctx); err != nil {
			return errors.Join(fmt.Errorf("component %s initialization failed: %w", name, err), r.CloseAll(ctx))
		}
		r.started = append(r.started, name)
	}
	return nil
}

// Order lists the started components in start order.
func (r *Registry) Order() []string {
	return append([]string(nil), r.started...)
}

// CloseAll closes started components in reverse start order. It is safe to
// call more than once.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error
	for len(r.started) > 0 {
		last := len(r.started) - 1
		name := r.started[last]
		r.started = r.started[:last]

		if err := r.byName[name].Close(ctx); err != nil {
			slog.Error("Error closing component", "component", name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

type node struct {
	Component
}

func (n node) GetName() string           { return n.Name() }
func (n node) GetDependencies() []string { return n.Dependencies() }
