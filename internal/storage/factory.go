package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"pigeon/internal/config"
)

// Driver opens a store at the configured path.
type Driver func(ctx context.Context, path string, logger *slog.Logger) (StorageInterface, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a storage driver available under name. Drivers register
// themselves from init; registering a name twice panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if driver == nil {
		panic("storage: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("storage: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (StorageInterface, error) {
	name := cfg.Type
	if name == "" {
		name = "sqlite"
	}

	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage type %q (available: %s)", name, strings.Join(Drivers(), ", "))
	}

	if logger == nil {
		logger = slog.Default()
	}
	return driver(ctx, cfg.Path, logger)
}
