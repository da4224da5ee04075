package state

import (
	"context"

	"pigeon/internal/components"
	"pigeon/internal/config"
	"pigeon/internal/export"
	"pigeon/internal/facility"
	"pigeon/internal/pusher"
	"pigeon/internal/storage"
)

type State struct {
	Config         *config.Config
	Registry       *components.Registry
	Store          storage.StorageInterface
	Configurations []*export.Dispatcher
	Facility       *facility.Facility
	Pusher         *pusher.Pusher
	Runner         *pusher.Runner
}

func (s *State) Close(ctx context.Context) error {
	return s.Registry.CloseAll(ctx)
}
