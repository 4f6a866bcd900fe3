// Package dag defines the static graph data model — nodes, edges, and the
// structural validation every graph undergoes before a run starts.
package dag

import (
	"fmt"
	"sort"

	"github.com/wandorch/wand/internal/condition"
	"github.com/wandorch/wand/internal/dagerr"
	"github.com/wandorch/wand/internal/retry"
)

// NodeSpec describes one unit of work in a graph.
type NodeSpec struct {
	ID        string         `json:"id"`
	AgentType string         `json:"agent_type"`
	Params    map[string]any `json:"params,omitempty"`
	Optional  bool           `json:"optional,omitempty"`
	Timeout   int            `json:"timeout_sec,omitempty"` // 0 means engine default
	Retry     *retry.Policy  `json:"retry,omitempty"`       // nil means engine default
}

// EdgeSpec describes a directed connection between two nodes. Map
// projects a subset of the source node's output (renaming keys as
// needed) into the destination node's input context. Cond, if non-nil,
// must evaluate true against the edge-local context (the projected Map
// applied to the source's output) for the edge to activate.
type EdgeSpec struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Map  map[string]string `json:"map,omitempty"` // destination-key -> source-key; empty/absent contributes no keys
	Cond *condition.Cond   `json:"cond,omitempty"`
}

// Graph is a validated, static DAG: a set of nodes, the edges between
// them, and the subset of node ids whose final outputs are of interest
// to the caller (Sinks).
type Graph struct {
	ID    string     `json:"id"`
	Nodes []NodeSpec `json:"nodes"`
	Edges []EdgeSpec `json:"edges"`
	Sinks []string   `json:"sinks,omitempty"`
}

// NodeByID indexes Nodes by ID for O(1) lookup. The index is built anew
// on every call; the engine builds it once per run.
func (g *Graph) NodeByID() map[string]*NodeSpec {
	idx := make(map[string]*NodeSpec, len(g.Nodes))
	for i := range g.Nodes {
		idx[g.Nodes[i].ID] = &g.Nodes[i]
	}
	return idx
}

// InEdges indexes Edges by destination node ID, preserving declaration
// order — the order the engine must apply them in for the
// last-edge-in-declaration-order-wins merge rule.
func (g *Graph) InEdges() map[string][]EdgeSpec {
	idx := make(map[string][]EdgeSpec)
	for _, e := range g.Edges {
		idx[e.To] = append(idx[e.To], e)
	}
	return idx
}

// OutEdges indexes Edges by source node ID.
func (g *Graph) OutEdges() map[string][]EdgeSpec {
	idx := make(map[string][]EdgeSpec)
	for _, e := range g.Edges {
		idx[e.From] = append(idx[e.From], e)
	}
	return idx
}

// Validate checks graph structure: unique node ids, edges referencing
// only declared nodes, sinks referencing only declared nodes, and
// acyclicity (via Kahn's algorithm). It returns only an error; callers
// that need in-degrees compute them themselves.
func Validate(g *Graph) error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return &dagerr.InvalidGraphError{Reason: "node with empty id"}
		}
		if seen[n.ID] {
			return &dagerr.InvalidGraphError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		seen[n.ID] = true
	}

	for _, e := range g.Edges {
		if !seen[e.From] {
			return &dagerr.InvalidGraphError{Reason: fmt.Sprintf("edge references unknown source node %q", e.From)}
		}
		if !seen[e.To] {
			return &dagerr.InvalidGraphError{Reason: fmt.Sprintf("edge references unknown destination node %q", e.To)}
		}
	}

	for _, s := range g.Sinks {
		if !seen[s] {
			return &dagerr.InvalidGraphError{Reason: fmt.Sprintf("sink references unknown node %q", s)}
		}
	}

	if _, err := topoOrder(g); err != nil {
		return err
	}
	return nil
}

// topoOrder runs Kahn's algorithm and returns a deterministic
// topological order (ties broken by node id), or an InvalidGraphError if
// a cycle is present.
func topoOrder(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		inDegree[e.To]++
		adj[e.From] = append(adj[e.From], e.To)
	}

	var ready []string
	for id, d := range inDegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := append([]string(nil), adj[id]...)
		sort.Strings(next)
		for _, to := range next {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = insertSorted(ready, to)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, &dagerr.InvalidGraphError{Reason: "cycle detected"}
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// InDegree computes the initial in-degree of every node, used by the
// scheduler to seed its ready set.
func InDegree(g *Graph) map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		deg[n.ID] = 0
	}
	for _, e := range g.Edges {
		deg[e.To]++
	}
	return deg
}
