package export

import (
	"context"

	"pigeon/internal/catalog"
)

// Supervisor is the per-kind export policy of a configuration.
//
// All predicates must be pure given the item state. Readiness checks run
// cheapest first and stop at the first failing one.
type Supervisor interface {
	MatchesType(item catalog.Item) bool
	ShouldRecheck(item catalog.Item, changed FieldSet) bool
	IsReady(item catalog.Item) bool
	Outputs(item catalog.Item) []Output
	RelatedItems(ctx context.Context, item catalog.Item) ([]catalog.Item, error)
}

// SupervisorFactory builds a supervisor for one evaluation.
type SupervisorFactory func() Supervisor

// BaseSupervisor provides the optional parts of Supervisor.
type BaseSupervisor struct{}

func (BaseSupervisor) RelatedItems(context.Context, catalog.Item) ([]catalog.Item, error) {
	return nil, nil
}

type Decision struct {
	Matched bool
	Recheck bool
	Ready   bool
}

func (d Decision) Export() bool {
	return d.Matched && d.Recheck && d.Ready
}

// Reason names the first predicate that rejected the item.
func (d Decision) Reason() string {
	switch {
	case !d.Matched:
		return "type"
	case !d.Recheck:
		return "updates"
	case !d.Ready:
		return "state"
	default:
		return ""
	}
}

func evaluate(sup Supervisor, item catalog.Item, changed FieldSet) Decision {
	var d Decision
	if d.Matched = sup.MatchesType(item); !d.Matched {
		return d
	}
	if d.Recheck = sup.ShouldRecheck(item, changed); !d.Recheck {
		return d
	}
	d.Ready = sup.IsReady(item)
	return d
}
