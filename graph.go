package canvas

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Placement of new nodes, see NextPosition.
const (
	nodeSpacing = 400.0
	firstNodeX  = 100.0
	firstNodeY  = 100.0
)

// Graph owns the nodes, connections and viewport of one canvas and keeps
// them consistent: node ids are unique, connections reference declared ports
// of existing nodes, and the connection set is acyclic.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	nodes       []Node
	index       map[string]int
	connections []Connection
	viewport    Viewport
}

// NewGraph returns an empty canvas graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:       []Node{},
		index:       make(map[string]int),
		connections: []Connection{},
		viewport:    DefaultViewport,
	}
}

// Load builds a Graph from a snapshot, rejecting any snapshot that breaks
// the graph invariants.
func Load(state CanvasState) (*Graph, error) {
	g := NewGraph()
	g.viewport = state.Viewport

	for _, n := range state.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrInvalidNode)
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}
		if err := checkPayload(n.Kind, n.Data); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	seen := make(map[string]bool, len(state.Connections))
	for _, c := range state.Connections {
		if c.ID == "" || seen[c.ID] {
			return nil, fmt.Errorf("%w: connection id %q", ErrDuplicateConnection, c.ID)
		}
		seen[c.ID] = true
		if err := g.checkEndpoints(c.Source, c.SourceHandle, c.Target, c.TargetHandle); err != nil {
			return nil, fmt.Errorf("connection %q: %w", c.ID, err)
		}
		g.connections = append(g.connections, c)
	}

	if err := validateAcyclic(g.nodes, g.connections); err != nil {
		return nil, err
	}
	return g, nil
}

// AddNode appends a node of the given kind and returns its generated id.
// A nil payload is replaced by the registry default for kind.
func (g *Graph) AddNode(kind NodeKind, pos Position, data Payload) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if data == nil {
		data = DefaultPayload(kind)
	}
	if err := checkPayload(kind, data); err != nil {
		return "", err
	}

	id := uuid.NewString()
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, Node{ID: id, Kind: kind, Position: pos, Data: data})
	return id, nil
}

// AddConnection wires source's output port to target's input port and returns
// the new connection id. Ports are validated before acyclicity, and the graph
// is left untouched when either check fails.
func (g *Graph) AddConnection(source, sourcePort, target, targetPort string) (string, error) {
	if err := g.checkEndpoints(source, sourcePort, target, targetPort); err != nil {
		return "", err
	}
	for _, c := range g.connections {
		if c.Source == source && c.SourceHandle == sourcePort && c.Target == target && c.TargetHandle == targetPort {
			return "", fmt.Errorf("%w: %s", ErrDuplicateConnection, c.ID)
		}
	}
	if g.reachable(target, source) {
		return "", fmt.Errorf("%w: %s -> %s", ErrCycleDetected, source, target)
	}

	c := Connection{
		ID:           uuid.NewString(),
		Source:       source,
		SourceHandle: sourcePort,
		Target:       target,
		TargetHandle: targetPort,
	}
	g.connections = append(g.connections, c)
	return c.ID, nil
}

// RemoveNode deletes a node and every connection touching it.
// Groups referencing the node are not updated; see group.Manager.Reconcile.
// It reports whether the node existed.
func (g *Graph) RemoveNode(id string) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	g.nodes = slices.Delete(g.nodes, i, i+1)
	g.reindex()
	g.connections = slices.DeleteFunc(g.connections, func(c Connection) bool {
		return c.Source == id || c.Target == id
	})
	return true
}

// RemoveConnection deletes a connection by id and reports whether it existed.
func (g *Graph) RemoveConnection(id string) bool {
	n := len(g.connections)
	g.connections = slices.DeleteFunc(g.connections, func(c Connection) bool { return c.ID == id })
	return len(g.connections) != n
}

// UpdateNodeData replaces a node's payload.
func (g *Graph) UpdateNodeData(id string, data Payload) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	if err := checkPayload(g.nodes[i].Kind, data); err != nil {
		return err
	}
	g.nodes[i].Data = data
	return nil
}

// MoveNode sets a node's position.
func (g *Graph) MoveNode(id string, pos Position) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	g.nodes[i].Position = pos
	return nil
}

// SetViewport replaces the viewport.
func (g *Graph) SetViewport(v Viewport) { g.viewport = v }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// NextPosition suggests where to place a new node: one column to the right
// of the rightmost node, or the canvas origin slot when the graph is empty.
func (g *Graph) NextPosition() Position {
	if len(g.nodes) == 0 {
		return Position{X: firstNodeX, Y: firstNodeY}
	}
	right := g.nodes[0].Position
	for _, n := range g.nodes[1:] {
		if n.Position.X > right.X {
			right = n.Position
		}
	}
	return Position{X: right.X + nodeSpacing, Y: right.Y}
}

// Snapshot returns a copy of the current state. Later mutations of g do not
// show through the returned slices.
func (g *Graph) Snapshot() CanvasState {
	return CanvasState{
		Nodes:       slices.Clone(g.nodes),
		Connections: slices.Clone(g.connections),
		Viewport:    g.viewport,
	}
}

func (g *Graph) reindex() {
	clear(g.index)
	for i, n := range g.nodes {
		g.index[n.ID] = i
	}
}

// checkEndpoints validates both ends of a prospective connection against the
// registry ports of the referenced nodes' kinds.
func (g *Graph) checkEndpoints(source, sourcePort, target, targetPort string) error {
	src, ok := g.Node(source)
	if !ok {
		return fmt.Errorf("%w: source %q", ErrInvalidNode, source)
	}
	dst, ok := g.Node(target)
	if !ok {
		return fmt.Errorf("%w: target %q", ErrInvalidNode, target)
	}
	out, ok := Lookup(src.Kind).Output(sourcePort)
	if !ok {
		return fmt.Errorf("%w: %s node %q has no output %q", ErrInvalidPort, src.Kind, source, sourcePort)
	}
	in, ok := Lookup(dst.Kind).Input(targetPort)
	if !ok {
		return fmt.Errorf("%w: %s node %q has no input %q", ErrInvalidPort, dst.Kind, target, targetPort)
	}
	if !Compatible(out.Channel, in.Channel) {
		return fmt.Errorf("%w: cannot connect %s to %s", ErrIncompatiblePorts, out.Channel, in.Channel)
	}
	return nil
}

// reachable reports whether to can be reached from from by following
// existing connections. from == to counts as reachable.
func (g *Graph) reachable(from, to string) bool {
	adj := make(map[string][]string)
	for _, c := range g.connections {
		adj[c.Source] = append(adj[c.Source], c.Target)
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func checkPayload(kind NodeKind, data Payload) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if data == nil {
		return fmt.Errorf("%w: %s node has no payload", ErrPayloadKindMismatch, kind)
	}
	if data.Kind() != kind {
		return fmt.Errorf("%w: %s node given %s payload", ErrPayloadKindMismatch, kind, data.Kind())
	}
	return nil
}

// validateAcyclic checks that the connections don't form a cycle using DFS.
func validateAcyclic(nodes []Node, connections []Connection) error {
	adj := make(map[string][]string)
	for _, c := range connections {
		adj[c.Source] = append(adj[c.Source], c.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(nodes))
	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, n := range nodes {
		if state[n.ID] == unvisited && dfs(n.ID) {
			return fmt.Errorf("%w: reachable from node %q", ErrCycleDetected, n.ID)
		}
	}
	return nil
}
