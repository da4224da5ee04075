// Package graph orders named nodes by their dependencies.
package graph

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

type Node interface {
	GetName() string
	GetDependencies() []string
}

// TopologicalSort returns node names with every node after its dependencies.
// Among nodes that are ready at the same time, names sort alphabetically, so
// the order is stable across runs.
func TopologicalSort(nodes map[string]Node) ([]string, error) {
	if err := ValidateGraph(nodes); err != nil {
		return nil, err
	}

	pending := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for name, node := range nodes {
		deps := node.GetDependencies()
		pending[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, n := range pending {
		if n == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, next := range dependents[name] {
			pending[next]--
			if pending[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) < len(nodes) {
		var stuck []string
		for name, n := range pending {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("cycle detected in dependencies between %s", strings.Join(stuck, ", "))
	}

	return order, nil
}

// ValidateGraph reports the first dependency, in name order, that does not
// name a node in the graph.
func ValidateGraph(nodes map[string]Node) error {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, dep := range nodes[name].GetDependencies() {
			if _, ok := nodes[dep]; !ok {
				return fmt.Errorf("node %s depends on %s which does not exist", name, dep)
			}
		}
	}
	return nil
}
