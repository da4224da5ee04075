// Package facility is where save events enter the export pipeline. Each
// event is evaluated against every export configuration and, when the item
// qualifies, queued for pushing together with its related items.
package facility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
)

// Event is emitted whenever a catalog item is saved.
type Event struct {
	Kind    string   `json:"kind"`
	PK      int64    `json:"pk"`
	Changed []string `json:"changed"`
}

func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("facility: malformed event: %w", err)
	}
	if _, err := catalog.ParseKind(ev.Kind); err != nil {
		return Event{}, fmt.Errorf("facility: %w", err)
	}
	if ev.PK <= 0 {
		return Event{}, fmt.Errorf("facility: invalid pk %d", ev.PK)
	}
	return ev, nil
}

// ParseEventSpec parses the command line form "kind:pk[:field,field]".
func ParseEventSpec(spec string) (Event, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return Event{}, fmt.Errorf("facility: event spec %q: want kind:pk[:fields]", spec)
	}

	pk, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || pk <= 0 {
		return Event{}, fmt.Errorf("facility: event spec %q: invalid pk", spec)
	}

	ev := Event{Kind: strings.ToLower(parts[0]), PK: pk}
	if _, err := catalog.ParseKind(ev.Kind); err != nil {
		return Event{}, fmt.Errorf("facility: %w", err)
	}
	if len(parts) == 3 {
		for _, field := range strings.Split(parts[2], ",") {
			if field = strings.TrimSpace(field); field != "" {
				ev.Changed = append(ev.Changed, field)
			}
		}
	}
	return ev, nil
}

type Loader interface {
	Load(ctx context.Context, kind catalog.Kind, pk int64) (catalog.Item, error)
}

type Queue interface {
	Enqueue(ctx context.Context, configuration string, kind catalog.Kind, pk int64) (bool, error)
}

type Outcome struct {
	Configuration string
	Kind          catalog.Kind
	PK            int64
	Decision      export.Decision
	Enqueued      bool
	Related       bool
}

type Facility struct {
	configs []*export.Dispatcher
	loader  Loader
	queue   Queue
	logger  *slog.Logger
}

func New(loader Loader, queue Queue, logger *slog.Logger, configs ...*export.Dispatcher) *Facility {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facility{
		configs: configs,
		loader:  loader,
		queue:   queue,
		logger:  logger,
	}
}

func (f *Facility) AddItemToPush(ctx context.Context, ev Event) ([]Outcome, error) {
	kind, err := catalog.ParseKind(ev.Kind)
	if err != nil {
		return nil, fmt.Errorf("facility: %w", err)
	}

	item, err := f.loader.Load(ctx, kind, ev.PK)
	if err != nil {
		return nil, fmt.Errorf("facility: load %s %d: %w", kind, ev.PK, err)
	}

	return f.AddLoadedItem(ctx, item, export.NewFieldSet(ev.Changed...))
}

// AddLoadedItem evaluates an already loaded item. It fails with
// export.ErrNoSupervisor when no configuration handles the item.
func (f *Facility) AddLoadedItem(ctx context.Context, item catalog.Item, changed export.FieldSet) ([]Outcome, error) {
	var (
		outcomes  []Outcome
		unhandled []error
	)

	for _, cfg := range f.configs {
		decision, err := cfg.Evaluate(item, changed)
		if errors.Is(err, export.ErrNoSupervisor) {
			f.logger.Debug("Configuration does not handle item", "configuration", cfg.Name(), "kind", item.Kind(), "pk", item.PK())
			unhandled = append(unhandled, err)
			continue
		}
		if err != nil {
			return outcomes, err
		}

		outcome := Outcome{Configuration: cfg.Name(), Kind: item.Kind(), PK: item.PK(), Decision: decision}
		if !decision.Export() {
			f.logger.Info("Item not queued", "configuration", cfg.Name(), "kind", item.Kind(), "pk", item.PK(), "rejected_by", decision.Reason())
			outcomes = append(outcomes, outcome)
			continue
		}

		outcome.Enqueued, err = f.queue.Enqueue(ctx, cfg.Name(), item.Kind(), item.PK())
		if err != nil {
			return outcomes, fmt.Errorf("facility: %w", err)
		}
		f.logger.Info("Item queued", "configuration", cfg.Name(), "kind", item.Kind(), "pk", item.PK(), "new", outcome.Enqueued)
		outcomes = append(outcomes, outcome)

		related, err := f.addRelated(ctx, cfg, item)
		outcomes = append(outcomes, related...)
		if err != nil {
			return outcomes, err
		}
	}

	if len(unhandled) == len(f.configs) {
		if len(unhandled) == 0 {
			return nil, fmt.Errorf("facility: no configurations: %w", export.ErrNoSupervisor)
		}
		return nil, errors.Join(unhandled...)
	}

	return outcomes, nil
}

// addRelated queues the related items of item that are exportable on their
// own. Related items of related items are not followed.
func (f *Facility) addRelated(ctx context.Context, cfg *export.Dispatcher, item catalog.Item) ([]Outcome, error) {
	related, err := cfg.Related(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("facility: %w", err)
	}

	outcomes := make([]Outcome, 0, len(related))
	for _, rel := range related {
		ok, err := cfg.Exportable(rel)
		if errors.Is(err, export.ErrNoSupervisor) {
			f.logger.Warn("Related item has no supervisor, skipping", "configuration", cfg.Name(), "kind", rel.Kind(), "pk", rel.PK())
			continue
		}
		if err != nil {
			return outcomes, err
		}

		outcome := Outcome{
			Configuration: cfg.Name(),
			Kind:          rel.Kind(),
			PK:            rel.PK(),
			Decision:      export.Decision{Matched: true, Recheck: true, Ready: ok},
			Related:       true,
		}
		if ok {
			outcome.Enqueued, err = f.queue.Enqueue(ctx, cfg.Name(), rel.Kind(), rel.PK())
			if err != nil {
				return outcomes, fmt.Errorf("facility: %w", err)
			}
			f.logger.Info("Related item queued", "configuration", cfg.Name(), "kind", rel.Kind(), "pk", rel.PK(), "parent", item.PK())
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
