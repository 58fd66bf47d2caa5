package canvas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, g *Graph, kind NodeKind) string {
	t.Helper()
	id, err := g.AddNode(kind, g.NextPosition(), nil)
	require.NoError(t, err)
	return id
}

func snapshotBytes(t *testing.T, g *Graph) []byte {
	t.Helper()
	b, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)
	return b
}

func TestNewGraph(t *testing.T) {
	g := NewGraph()
	s := g.Snapshot()
	assert.Empty(t, s.Nodes)
	assert.Empty(t, s.Connections)
	assert.Equal(t, DefaultViewport, s.Viewport)
}

func TestAddNode(t *testing.T) {
	t.Run("default payload", func(t *testing.T) {
		g := NewGraph()
		id := mustAdd(t, g, KindImage)
		n, ok := g.Node(id)
		require.True(t, ok)
		assert.Equal(t, DefaultPayload(KindImage), n.Data)
		assert.Equal(t, Position{X: 100, Y: 100}, n.Position)
	})

	t.Run("unique ids", func(t *testing.T) {
		g := NewGraph()
		a := mustAdd(t, g, KindText)
		b := mustAdd(t, g, KindText)
		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, g.Len())
	})

	t.Run("payload mismatch", func(t *testing.T) {
		g := NewGraph()
		_, err := g.AddNode(KindImage, Position{}, TextData{Prompt: "x"})
		assert.ErrorIs(t, err, ErrPayloadKindMismatch)
		assert.Equal(t, 0, g.Len())
	})

	t.Run("unknown kind", func(t *testing.T) {
		g := NewGraph()
		_, err := g.AddNode("video", Position{}, nil)
		assert.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestAddConnection(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := NewGraph()
		text := mustAdd(t, g, KindText)
		img := mustAdd(t, g, KindImage)

		id, err := g.AddConnection(text, "text", img, "prompt")
		require.NoError(t, err)

		conns := g.Snapshot().Connections
		require.Len(t, conns, 1)
		assert.Equal(t, Connection{ID: id, Source: text, SourceHandle: "text", Target: img, TargetHandle: "prompt"}, conns[0])
	})

	t.Run("image feeds variants", func(t *testing.T) {
		g := NewGraph()
		img := mustAdd(t, g, KindImage)
		vs := mustAdd(t, g, KindVariantSet)
		_, err := g.AddConnection(img, "image", vs, "sourceImage")
		assert.NoError(t, err)
	})

	t.Run("error cases", func(t *testing.T) {
		g := NewGraph()
		text := mustAdd(t, g, KindText)
		img := mustAdd(t, g, KindImage)
		style := mustAdd(t, g, KindStyle)

		_, err := g.AddConnection("dne", "text", img, "prompt")
		assert.ErrorIs(t, err, ErrInvalidNode)

		_, err = g.AddConnection(text, "text", "dne", "prompt")
		assert.ErrorIs(t, err, ErrInvalidNode)

		_, err = g.AddConnection(text, "image", img, "prompt")
		assert.ErrorIs(t, err, ErrInvalidPort)

		_, err = g.AddConnection(text, "text", img, "nope")
		assert.ErrorIs(t, err, ErrInvalidPort)

		// style nodes declare no inputs
		_, err = g.AddConnection(text, "text", style, "style")
		assert.ErrorIs(t, err, ErrInvalidPort)

		_, err = g.AddConnection(style, "style", img, "material")
		assert.ErrorIs(t, err, ErrIncompatiblePorts)

		_, err = g.AddConnection(text, "text", text, "text")
		assert.ErrorIs(t, err, ErrCycleDetected)

		assert.Empty(t, g.Snapshot().Connections)
	})

	t.Run("duplicate", func(t *testing.T) {
		g := NewGraph()
		text := mustAdd(t, g, KindText)
		img := mustAdd(t, g, KindImage)
		_, err := g.AddConnection(text, "text", img, "prompt")
		require.NoError(t, err)
		_, err = g.AddConnection(text, "text", img, "prompt")
		assert.ErrorIs(t, err, ErrDuplicateConnection)
	})
}

func TestAddConnectionRejectsCycleWithoutMutation(t *testing.T) {
	g := NewGraph()
	a := mustAdd(t, g, KindText)
	b := mustAdd(t, g, KindText)
	c := mustAdd(t, g, KindText)

	_, err := g.AddConnection(a, "text", b, "text")
	require.NoError(t, err)
	_, err = g.AddConnection(b, "text", c, "text")
	require.NoError(t, err)

	before := snapshotBytes(t, g)

	_, err = g.AddConnection(c, "text", a, "text")
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, before, snapshotBytes(t, g))

	_, err = g.AddConnection(b, "text", a, "text")
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, before, snapshotBytes(t, g))

	// a shortcut edge along the existing direction is fine
	_, err = g.AddConnection(a, "text", c, "text")
	assert.NoError(t, err)
}

func TestRemoveNodeCascades(t *testing.T) {
	g := NewGraph()
	text := mustAdd(t, g, KindText)
	img := mustAdd(t, g, KindImage)
	vs := mustAdd(t, g, KindVariantSet)

	_, err := g.AddConnection(text, "text", img, "prompt")
	require.NoError(t, err)
	keep, err := g.AddConnection(img, "image", vs, "sourceImage")
	require.NoError(t, err)

	assert.True(t, g.RemoveNode(text))
	assert.False(t, g.RemoveNode(text))

	s := g.Snapshot()
	require.Len(t, s.Nodes, 2)
	require.Len(t, s.Connections, 1)
	assert.Equal(t, keep, s.Connections[0].ID)

	// index stays usable after removal
	n, ok := g.Node(vs)
	require.True(t, ok)
	assert.Equal(t, KindVariantSet, n.Kind)
}

func TestRemoveConnection(t *testing.T) {
	g := NewGraph()
	text := mustAdd(t, g, KindText)
	img := mustAdd(t, g, KindImage)
	id, err := g.AddConnection(text, "text", img, "prompt")
	require.NoError(t, err)

	assert.True(t, g.RemoveConnection(id))
	assert.False(t, g.RemoveConnection(id))
	assert.Empty(t, g.Snapshot().Connections)
}

func TestUpdateAndMove(t *testing.T) {
	g := NewGraph()
	id := mustAdd(t, g, KindText)

	require.NoError(t, g.UpdateNodeData(id, TextData{Prompt: "courtyard"}))
	assert.ErrorIs(t, g.UpdateNodeData(id, StyleData{}), ErrPayloadKindMismatch)
	assert.ErrorIs(t, g.UpdateNodeData("dne", TextData{}), ErrNodeNotFound)

	require.NoError(t, g.MoveNode(id, Position{X: 5, Y: 6}))
	assert.ErrorIs(t, g.MoveNode("dne", Position{}), ErrNodeNotFound)

	n, _ := g.Node(id)
	assert.Equal(t, TextData{Prompt: "courtyard"}, n.Data)
	assert.Equal(t, Position{X: 5, Y: 6}, n.Position)
}

func TestNextPosition(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, Position{X: 100, Y: 100}, g.NextPosition())

	_, err := g.AddNode(KindText, Position{X: 300, Y: 50}, nil)
	require.NoError(t, err)
	_, err = g.AddNode(KindText, Position{X: 200, Y: 80}, nil)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 700, Y: 50}, g.NextPosition())
}

func TestSnapshotIsolation(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, KindText)
	s := g.Snapshot()

	mustAdd(t, g, KindImage)
	g.SetViewport(Viewport{X: 10, Y: 10, Zoom: 2})

	assert.Len(t, s.Nodes, 1)
	assert.Equal(t, DefaultViewport, s.Viewport)
}

func TestLoad(t *testing.T) {
	state := loadFixture(t)
	g, err := Load(state)
	require.NoError(t, err)
	assert.Equal(t, state, g.Snapshot())

	t.Run("duplicate node", func(t *testing.T) {
		bad := state
		bad.Nodes = append([]Node{}, state.Nodes...)
		bad.Nodes = append(bad.Nodes, state.Nodes[0])
		_, err := Load(bad)
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("dangling connection", func(t *testing.T) {
		bad := state
		bad.Connections = append([]Connection{}, state.Connections...)
		bad.Connections = append(bad.Connections, Connection{ID: "c9", Source: "gone", SourceHandle: "text", Target: "image-1", TargetHandle: "prompt"})
		_, err := Load(bad)
		assert.ErrorIs(t, err, ErrInvalidNode)
	})
}
