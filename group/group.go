// Package group manages named, collapsible clusters of canvas nodes.
//
// Groups refer to nodes by id only. Removing a node from the graph leaves
// stale ids behind until Reconcile is called with the current nodes.
package group

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/meikuraledutech/canvas"
)

var (
	ErrGroupNotFound = errors.New("group: group not found")
	ErrEmptyGroup    = errors.New("group: a group needs at least one node")
)

// Geometry used to derive group bounds from member positions.
const (
	NodeWidth  = 320.0
	NodeHeight = 200.0
	Padding    = 40.0
)

// DefaultBounds is the box given to a group none of whose members can be found.
var DefaultBounds = Bounds{
	Position: canvas.Position{X: 100, Y: 100},
	Size:     Size{Width: 400, Height: 300},
}

// Palette is cycled through in creation order.
var Palette = []string{"#3b82f6", "#a855f7", "#ec4899", "#f97316", "#6366f1", "#22c55e"}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Bounds struct {
	Position canvas.Position `json:"position"`
	Size     Size            `json:"size"`
}

// Group is a named cluster of node ids.
type Group struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Nodes     []string        `json:"nodes"`
	Collapsed bool            `json:"collapsed"`
	Color     string          `json:"color"`
	Position  canvas.Position `json:"position"`
	Size      Size            `json:"size"`
	ZIndex    int             `json:"zIndex"`
}

func (g Group) clone() Group {
	g.Nodes = slices.Clone(g.Nodes)
	return g
}

// Manager holds the groups of one canvas in creation order.
// A Manager is not safe for concurrent use.
type Manager struct {
	groups  []*Group
	created int
	topZ    int
}

// NewManager returns a Manager with no groups.
func NewManager() *Manager {
	return &Manager{}
}

// Create adds a group around nodeIDs at pos. Duplicate ids are collapsed.
func (m *Manager) Create(name string, nodeIDs []string, pos canvas.Position) (Group, error) {
	members := dedupe(nodeIDs)
	if len(members) == 0 {
		return Group{}, ErrEmptyGroup
	}
	m.topZ++
	g := &Group{
		ID:       uuid.NewString(),
		Name:     name,
		Nodes:    members,
		Color:    Palette[m.created%len(Palette)],
		Position: pos,
		Size:     DefaultBounds.Size,
		ZIndex:   m.topZ,
	}
	m.created++
	m.groups = append(m.groups, g)
	return g.clone(), nil
}

// AddNodes adds ids not already in the group.
func (m *Manager) AddNodes(groupID string, nodeIDs ...string) (Group, error) {
	g, err := m.find(groupID)
	if err != nil {
		return Group{}, err
	}
	g.Nodes = dedupe(append(g.Nodes, nodeIDs...))
	return g.clone(), nil
}

// RemoveNodes removes ids from the group. When the last member goes the
// group is deleted and deleted is true.
func (m *Manager) RemoveNodes(groupID string, nodeIDs ...string) (deleted bool, err error) {
	g, err := m.find(groupID)
	if err != nil {
		return false, err
	}
	g.Nodes = slices.DeleteFunc(g.Nodes, func(id string) bool {
		return slices.Contains(nodeIDs, id)
	})
	if len(g.Nodes) == 0 {
		m.Delete(groupID)
		return true, nil
	}
	return false, nil
}

// Toggle flips the collapsed flag and returns the new value.
func (m *Manager) Toggle(groupID string) (bool, error) {
	g, err := m.find(groupID)
	if err != nil {
		return false, err
	}
	g.Collapsed = !g.Collapsed
	return g.Collapsed, nil
}

// Rename sets the group's name.
func (m *Manager) Rename(groupID, name string) error {
	g, err := m.find(groupID)
	if err != nil {
		return err
	}
	g.Name = name
	return nil
}

// Move sets the group's position without touching its members.
func (m *Manager) Move(groupID string, pos canvas.Position) error {
	g, err := m.find(groupID)
	if err != nil {
		return err
	}
	g.Position = pos
	return nil
}

// BringToFront raises the group above every other group.
func (m *Manager) BringToFront(groupID string) error {
	g, err := m.find(groupID)
	if err != nil {
		return err
	}
	if g.ZIndex == m.topZ {
		return nil
	}
	m.topZ++
	g.ZIndex = m.topZ
	return nil
}

// Fit resizes the group to the bounds of its members in nodes.
func (m *Manager) Fit(groupID string, nodes []canvas.Node) (Group, error) {
	g, err := m.find(groupID)
	if err != nil {
		return Group{}, err
	}
	b := BoundsFromMembers(nodes, g.Nodes)
	g.Position = b.Position
	g.Size = b.Size
	return g.clone(), nil
}

// Delete removes a group and reports whether it existed.
func (m *Manager) Delete(groupID string) bool {
	n := len(m.groups)
	m.groups = slices.DeleteFunc(m.groups, func(g *Group) bool { return g.ID == groupID })
	return len(m.groups) != n
}

// Get returns a copy of the group with the given id.
func (m *Manager) Get(groupID string) (Group, bool) {
	g, err := m.find(groupID)
	if err != nil {
		return Group{}, false
	}
	return g.clone(), true
}

// All returns copies of every group in creation order.
func (m *Manager) All() []Group {
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g.clone())
	}
	return out
}

// GroupForNode returns the first group listing nodeID.
func (m *Manager) GroupForNode(nodeID string) (Group, bool) {
	for _, g := range m.groups {
		if slices.Contains(g.Nodes, nodeID) {
			return g.clone(), true
		}
	}
	return Group{}, false
}

// Reconcile drops member ids that are not in nodes and deletes groups left
// empty. It returns the ids of deleted groups.
func (m *Manager) Reconcile(nodes []canvas.Node) []string {
	live := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		live[n.ID] = true
	}

	var deleted []string
	for _, g := range m.groups {
		g.Nodes = slices.DeleteFunc(g.Nodes, func(id string) bool { return !live[id] })
		if len(g.Nodes) == 0 {
			deleted = append(deleted, g.ID)
		}
	}
	for _, id := range deleted {
		m.Delete(id)
	}
	return deleted
}

func (m *Manager) find(groupID string) (*Group, error) {
	for _, g := range m.groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, groupID)
}

// BoundsFromMembers returns the padded box enclosing the members of nodeIDs
// found in nodes, each counted with a NodeWidth x NodeHeight footprint.
// When none is found it returns DefaultBounds.
func BoundsFromMembers(nodes []canvas.Node, nodeIDs []string) Bounds {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, n := range nodes {
		if !slices.Contains(nodeIDs, n.ID) {
			continue
		}
		found = true
		minX = min(minX, n.Position.X)
		minY = min(minY, n.Position.Y)
		maxX = max(maxX, n.Position.X+NodeWidth)
		maxY = max(maxY, n.Position.Y+NodeHeight)
	}
	if !found {
		return DefaultBounds
	}
	return Bounds{
		Position: canvas.Position{X: minX - Padding, Y: minY - Padding},
		Size:     Size{Width: maxX - minX + 2*Padding, Height: maxY - minY + 2*Padding},
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
