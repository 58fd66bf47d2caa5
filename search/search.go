// Package search filters a canvas snapshot by text, category, kind and
// connectivity.
package search

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/meikuraledutech/canvas"
)

// Filters narrows a canvas snapshot. Zero fields do not filter.
type Filters struct {
	Query          string
	Category       canvas.Category
	Kind           canvas.NodeKind
	HasConnections *bool
}

// Result is the outcome of Apply.
// Highlighted holds the ids matching Query over the whole snapshot, whatever
// the other filters removed from Nodes.
type Result struct {
	Nodes       []canvas.Node
	Highlighted []string
}

// Apply runs the filters over state in a fixed order: query, category, kind,
// connectivity. Connectivity is judged against every connection in state.
func Apply(state canvas.CanvasState, f Filters) Result {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	var connected map[string]bool
	if f.HasConnections != nil {
		connected = make(map[string]bool, len(state.Connections)*2)
		for _, c := range state.Connections {
			connected[c.Source] = true
			connected[c.Target] = true
		}
	}

	res := Result{Nodes: []canvas.Node{}, Highlighted: []string{}}
	for _, n := range state.Nodes {
		hit := query != "" && Matches(n, query)
		if hit {
			res.Highlighted = append(res.Highlighted, n.ID)
		}

		if query != "" && !hit {
			continue
		}
		if f.Category != "" && canvas.Lookup(n.Kind).Category != f.Category {
			continue
		}
		if f.Kind != "" && n.Kind != f.Kind {
			continue
		}
		if f.HasConnections != nil && connected[n.ID] != *f.HasConnections {
			continue
		}
		res.Nodes = append(res.Nodes, n)
	}
	return res
}

// Matches reports whether the lower-cased query occurs in the node's registry
// label or description, its serialised payload, or its id.
func Matches(n canvas.Node, query string) bool {
	q := strings.ToLower(query)
	def := canvas.Lookup(n.Kind)
	if strings.Contains(strings.ToLower(def.Label), q) ||
		strings.Contains(strings.ToLower(def.Description), q) ||
		strings.Contains(strings.ToLower(n.ID), q) {
		return true
	}
	if n.Data == nil {
		return false
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n.Data); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSuffix(buf.String(), "\n")), q)
}
