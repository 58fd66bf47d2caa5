package canvas

import (
	"encoding/json"
	"fmt"
)

// NodeKind selects the port set and payload shape of a node.
type NodeKind string

const (
	KindText       NodeKind = "text"
	KindImage      NodeKind = "image"
	KindVariantSet NodeKind = "variants"
	KindStyle      NodeKind = "style"
	KindMaterial   NodeKind = "material"
)

// Kinds returns every node kind in registry order.
func Kinds() []NodeKind {
	return []NodeKind{KindText, KindImage, KindVariantSet, KindStyle, KindMaterial}
}

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVariantSet, KindStyle, KindMaterial:
		return true
	}
	return false
}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the visible window over the canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Node is one generation step on the canvas.
// Ports are not stored per instance; Inputs and Outputs read them from the registry.
type Node struct {
	ID       string
	Kind     NodeKind
	Position Position
	Data     Payload
}

// Inputs returns the declared input ports of the node's kind.
func (n Node) Inputs() []PortSpec { return Lookup(n.Kind).Inputs }

// Outputs returns the declared output ports of the node's kind.
func (n Node) Outputs() []PortSpec { return Lookup(n.Kind).Outputs }

// nodeJSON is the persisted shape of a node.
type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeKind        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// MarshalJSON writes the node in document form with its payload under "data".
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Data != nil && n.Data.Kind() != n.Kind {
		return nil, fmt.Errorf("%w: node %q is %s, payload is %s", ErrPayloadKindMismatch, n.ID, n.Kind, n.Data.Kind())
	}
	data, err := EncodePayload(n.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Kind, Position: n.Position, Data: data})
}

// UnmarshalJSON decodes the payload according to the node's "type".
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("canvas: node %q: %w", raw.ID, err)
	}
	*n = Node{ID: raw.ID, Kind: raw.Type, Position: raw.Position, Data: data}
	return nil
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// CanvasState is the unit of persistence and the input to search and grouping.
type CanvasState struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Viewport    Viewport     `json:"viewport"`
}

// DefaultViewport is the viewport of a freshly created canvas.
var DefaultViewport = Viewport{X: 0, Y: 0, Zoom: 1}

// ParseDocument decodes a persisted canvas document and validates it.
func ParseDocument(b []byte) (*Graph, error) {
	var state CanvasState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("canvas: decode document: %w", err)
	}
	return Load(state)
}
