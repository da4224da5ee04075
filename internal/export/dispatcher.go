package export

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"pigeon/internal/catalog"
)

type binding struct {
	kind    catalog.Kind
	factory SupervisorFactory
}

// Dispatcher maps item kinds to supervisors for one export configuration.
// Bindings are tried in registration order.
type Dispatcher struct {
	name     string
	bindings []binding
	logger   *slog.Logger
}

func NewDispatcher(name string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		name:   name,
		logger: logger.With("configuration", name),
	}
}

func (d *Dispatcher) Name() string {
	return d.name
}

func (d *Dispatcher) Register(kind catalog.Kind, factory SupervisorFactory) error {
	if factory == nil {
		return fmt.Errorf("%s: nil supervisor factory for %s", d.name, kind)
	}
	for _, b := range d.bindings {
		if b.kind == kind {
			return fmt.Errorf("%s: supervisor for %s already registered", d.name, kind)
		}
	}
	d.bindings = append(d.bindings, binding{kind: kind, factory: factory})
	return nil
}

func (d *Dispatcher) Kinds() []catalog.Kind {
	kinds := make([]catalog.Kind, 0, len(d.bindings))
	for _, b := range d.bindings {
		kinds = append(kinds, b.kind)
	}
	return kinds
}

// Select returns the supervisor responsible for item, or a
// *NoSupervisorError when none is.
func (d *Dispatcher) Select(item catalog.Item) (Supervisor, error) {
	if item == nil {
		return nil, &NoSupervisorError{Configuration: d.name, Kind: catalog.KindUnknown, Type: "<nil>"}
	}
	if isNilPointer(item) {
		return nil, &NoSupervisorError{Configuration: d.name, Kind: catalog.KindUnknown, Type: fmt.Sprintf("%T(nil)", item)}
	}

	for _, b := range d.bindings {
		if b.kind != item.Kind() {
			continue
		}
		sup := b.factory()
		if !sup.MatchesType(item) {
			continue
		}
		return sup, nil
	}

	return nil, &NoSupervisorError{
		Configuration: d.name,
		Kind:          item.Kind(),
		Type:          fmt.Sprintf("%T", item),
	}
}

func (d *Dispatcher) Evaluate(item catalog.Item, changed FieldSet) (Decision, error) {
	sup, err := d.Select(item)
	if err != nil {
		return Decision{}, err
	}

	decision := evaluate(sup, item, changed)
	d.logger.Debug("Evaluated item",
		"kind", item.Kind(), "pk", item.PK(),
		"changed", changed.Slice(), "export", decision.Export(), "rejected_by", decision.Reason())
	return decision, nil
}

// Exportable reports whether item passes type and readiness checks. It is
// used for related items, which are bundled regardless of what changed.
func (d *Dispatcher) Exportable(item catalog.Item) (bool, error) {
	sup, err := d.Select(item)
	if err != nil {
		return false, err
	}
	return sup.MatchesType(item) && sup.IsReady(item), nil
}

func (d *Dispatcher) Related(ctx context.Context, item catalog.Item) ([]catalog.Item, error) {
	sup, err := d.Select(item)
	if err != nil {
		return nil, err
	}

	related, err := sup.RelatedItems(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("%s: related items of %s %d: %w", d.name, item.Kind(), item.PK(), err)
	}
	return related, nil
}

type Result struct {
	Output   Output
	Artifact *Artifact
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil && r.Artifact != nil
}

// Build renders every output of item. A failing output is reported in its
// Result and never stops the others; the returned error is only set when
// the item cannot be dispatched.
func (d *Dispatcher) Build(ctx context.Context, item catalog.Item) ([]Result, error) {
	sup, err := d.Select(item)
	if err != nil {
		return nil, err
	}

	outputs := sup.Outputs(item)
	results := make([]Result, 0, len(outputs))
	for _, out := range outputs {
		artifact, err := out.Render(ctx)
		if err != nil {
			d.logger.Warn("Output rejected", "kind", item.Kind(), "pk", item.PK(), "path", Path(out), "error", err)
		}
		results = append(results, Result{Output: out, Artifact: artifact, Err: err})
	}

	return results, nil
}

func isNilPointer(item catalog.Item) bool {
	v := reflect.ValueOf(item)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
