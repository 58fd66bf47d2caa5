package canvas

import (
	"fmt"
	"slices"
)

// ExecutionOrder returns every node id in dependency order: a node comes
// after all nodes connected into it. Ties keep node insertion order.
func (g *Graph) ExecutionOrder() []string {
	inDegree := make(map[string]int, len(g.nodes))
	adj := make(map[string][]string, len(g.nodes))
	for _, c := range g.connections {
		adj[c.Source] = append(adj[c.Source], c.Target)
		inDegree[c.Target]++
	}

	queue := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, next := range adj[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

// Dependencies returns the distinct ids of the nodes connected into id, in
// connection order.
func (g *Graph) Dependencies(id string) []string {
	deps := []string{}
	for _, c := range g.connections {
		if c.Target == id && !slices.Contains(deps, c.Source) {
			deps = append(deps, c.Source)
		}
	}
	return deps
}

// Progress records which nodes of a run have finished and how.
type Progress struct {
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
	Skipped   []string `json:"skipped"`
}

// ReadyNodes returns, in execution order, the nodes that have not finished
// and whose dependencies have all completed. A failed or skipped dependency
// keeps its dependents from ever becoming ready.
func (g *Graph) ReadyNodes(p Progress) []string {
	done := make(map[string]bool, len(p.Completed))
	for _, id := range p.Completed {
		done[id] = true
	}
	finished := func(id string) bool {
		return done[id] || slices.Contains(p.Failed, id) || slices.Contains(p.Skipped, id)
	}

	ready := []string{}
	for _, id := range g.ExecutionOrder() {
		if finished(id) {
			continue
		}
		ok := true
		for _, dep := range g.Dependencies(id) {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// MissingInputs returns the required input ports of node id that have no
// incoming connection and are not supplied by the node's own payload.
func (g *Graph) MissingInputs(id string) ([]PortSpec, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	missing := []PortSpec{}
	for _, in := range n.Inputs() {
		if !in.Required || g.connectedInput(id, in.ID) || suppliesInput(n.Data, in.ID) {
			continue
		}
		missing = append(missing, in)
	}
	return missing, nil
}

func (g *Graph) connectedInput(id, port string) bool {
	return slices.ContainsFunc(g.connections, func(c Connection) bool {
		return c.Target == id && c.TargetHandle == port
	})
}

// suppliesInput reports whether a payload carries the value of an input port
// itself, such as a variants node given a source image URL directly.
func suppliesInput(data Payload, port string) bool {
	switch d := data.(type) {
	case VariantSetData:
		return port == "sourceImage" && d.SourceImageURL != ""
	case ImageData:
		return port == "baseImage" && d.BaseImageData != ""
	case TextData:
		return port == "text" && d.Prompt != ""
	}
	return false
}

// Target is an input port a given output could be connected to.
type Target struct {
	NodeID string `json:"node_id"`
	Port   string `json:"port"`
	Name   string `json:"name"`
}

// ValidTargets lists, in node order, every input port in g that an output
// port of kind sourceKind could feed. Existing connections and cycles are not
// considered; AddConnection still checks both.
func (g *Graph) ValidTargets(sourceKind NodeKind, sourcePort string) []Target {
	out, ok := Lookup(sourceKind).Output(sourcePort)
	if !ok {
		return []Target{}
	}
	targets := []Target{}
	for _, n := range g.nodes {
		for _, in := range n.Inputs() {
			if Compatible(out.Channel, in.Channel) {
				targets = append(targets, Target{NodeID: n.ID, Port: in.ID, Name: in.Name})
			}
		}
	}
	return targets
}
