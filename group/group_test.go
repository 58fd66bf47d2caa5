package group

import (
	"testing"

	"github.com/meikuraledutech/canvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodesAt(points map[string]canvas.Position) []canvas.Node {
	var nodes []canvas.Node
	for _, id := range []string{"a", "b", "c"} {
		if p, ok := points[id]; ok {
			nodes = append(nodes, canvas.Node{ID: id, Kind: canvas.KindText, Position: p, Data: canvas.TextData{}})
		}
	}
	return nodes
}

func TestCreate(t *testing.T) {
	m := NewManager()
	g, err := m.Create("Exterior", []string{"a", "b", "a"}, canvas.Position{X: 10, Y: 20})
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, []string{"a", "b"}, g.Nodes)
	assert.Equal(t, Palette[0], g.Color)
	assert.Equal(t, DefaultBounds.Size, g.Size)
	assert.False(t, g.Collapsed)

	g2, err := m.Create("Interior", []string{"c"}, canvas.Position{})
	require.NoError(t, err)
	assert.Equal(t, Palette[1], g2.Color)
	assert.Greater(t, g2.ZIndex, g.ZIndex)

	_, err = m.Create("Empty", nil, canvas.Position{})
	assert.ErrorIs(t, err, ErrEmptyGroup)
	assert.Len(t, m.All(), 2)
}

func TestMembership(t *testing.T) {
	m := NewManager()
	g, err := m.Create("G", []string{"a"}, canvas.Position{})
	require.NoError(t, err)

	g, err = m.AddNodes(g.ID, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Nodes)

	deleted, err := m.RemoveNodes(g.ID, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = m.RemoveNodes(g.ID, "b")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok := m.Get(g.ID)
	assert.False(t, ok)
	assert.Empty(t, m.All())

	_, err = m.AddNodes(g.ID, "c")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestReturnedGroupsAreCopies(t *testing.T) {
	m := NewManager()
	g, err := m.Create("G", []string{"a"}, canvas.Position{})
	require.NoError(t, err)
	g.Nodes[0] = "zzz"

	stored, ok := m.Get(g.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, stored.Nodes)
}

func TestToggleRenameMove(t *testing.T) {
	m := NewManager()
	g, err := m.Create("G", []string{"a"}, canvas.Position{})
	require.NoError(t, err)

	collapsed, err := m.Toggle(g.ID)
	require.NoError(t, err)
	assert.True(t, collapsed)
	collapsed, err = m.Toggle(g.ID)
	require.NoError(t, err)
	assert.False(t, collapsed)

	require.NoError(t, m.Rename(g.ID, "Renamed"))
	require.NoError(t, m.Move(g.ID, canvas.Position{X: 1, Y: 2}))
	got, _ := m.Get(g.ID)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, canvas.Position{X: 1, Y: 2}, got.Position)

	_, err = m.Toggle("dne")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestBringToFront(t *testing.T) {
	m := NewManager()
	a, _ := m.Create("A", []string{"a"}, canvas.Position{})
	b, _ := m.Create("B", []string{"b"}, canvas.Position{})

	require.NoError(t, m.BringToFront(a.ID))
	ga, _ := m.Get(a.ID)
	gb, _ := m.Get(b.ID)
	assert.Greater(t, ga.ZIndex, gb.ZIndex)
}

func TestGroupForNode(t *testing.T) {
	m := NewManager()
	first, _ := m.Create("First", []string{"a", "b"}, canvas.Position{})
	_, _ = m.Create("Second", []string{"b", "c"}, canvas.Position{})

	g, ok := m.GroupForNode("b")
	require.True(t, ok)
	assert.Equal(t, first.ID, g.ID)

	_, ok = m.GroupForNode("zzz")
	assert.False(t, ok)
}

func TestBoundsFromMembers(t *testing.T) {
	nodes := nodesAt(map[string]canvas.Position{
		"a": {X: 0, Y: 0},
		"b": {X: 400, Y: 100},
		"c": {X: 5000, Y: 5000},
	})

	b := BoundsFromMembers(nodes, []string{"a", "b"})
	assert.Equal(t, canvas.Position{X: -40, Y: -40}, b.Position)
	assert.Equal(t, Size{Width: 400 + 320 + 80, Height: 100 + 200 + 80}, b.Size)

	assert.Equal(t, DefaultBounds, BoundsFromMembers(nodes, []string{"gone"}))
	assert.Equal(t, DefaultBounds, BoundsFromMembers(nil, []string{"a"}))
}

func TestFit(t *testing.T) {
	m := NewManager()
	g, _ := m.Create("G", []string{"a"}, canvas.Position{})
	nodes := nodesAt(map[string]canvas.Position{"a": {X: 100, Y: 100}})

	g, err := m.Fit(g.ID, nodes)
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{X: 60, Y: 60}, g.Position)
	assert.Equal(t, Size{Width: 400, Height: 280}, g.Size)
}

func TestReconcile(t *testing.T) {
	m := NewManager()
	keep, _ := m.Create("Keep", []string{"a", "gone1"}, canvas.Position{})
	drop, _ := m.Create("Drop", []string{"gone2"}, canvas.Position{})

	deleted := m.Reconcile(nodesAt(map[string]canvas.Position{"a": {}}))
	assert.Equal(t, []string{drop.ID}, deleted)

	g, ok := m.Get(keep.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, g.Nodes)
	assert.Len(t, m.All(), 1)
}
