package canvas

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureGraph(t *testing.T) *Graph {
	t.Helper()
	b, err := os.ReadFile("testdata/canvas.json")
	require.NoError(t, err)
	g, err := ParseDocument(b)
	require.NoError(t, err)
	return g
}

func TestExecutionOrder(t *testing.T) {
	g := fixtureGraph(t)
	assert.Equal(t, []string{"text-1", "style-1", "material-1", "image-1", "variants-1"}, g.ExecutionOrder())

	assert.Empty(t, NewGraph().ExecutionOrder())
}

func TestExecutionOrderFollowsConnections(t *testing.T) {
	g := NewGraph()
	variants := mustAdd(t, g, KindVariantSet)
	img := mustAdd(t, g, KindImage)
	text := mustAdd(t, g, KindText)
	_, err := g.AddConnection(img, "image", variants, "sourceImage")
	require.NoError(t, err)
	_, err = g.AddConnection(text, "text", img, "prompt")
	require.NoError(t, err)

	assert.Equal(t, []string{text, img, variants}, g.ExecutionOrder())
}

func TestDependencies(t *testing.T) {
	g := fixtureGraph(t)
	assert.Equal(t, []string{"text-1", "style-1", "material-1"}, g.Dependencies("image-1"))
	assert.Equal(t, []string{"image-1"}, g.Dependencies("variants-1"))
	assert.Empty(t, g.Dependencies("text-1"))
	assert.Empty(t, g.Dependencies("ghost"))
}

func TestDependenciesAreDistinct(t *testing.T) {
	state := CanvasState{
		Nodes: []Node{
			{ID: "t", Kind: KindText, Data: DefaultPayload(KindText)},
			{ID: "i", Kind: KindImage, Data: DefaultPayload(KindImage)},
		},
		Connections: []Connection{
			{ID: "c1", Source: "t", SourceHandle: "text", Target: "i", TargetHandle: "prompt"},
			{ID: "c2", Source: "t", SourceHandle: "text", Target: "i", TargetHandle: "prompt"},
		},
		Viewport: DefaultViewport,
	}
	g, err := Load(state)
	require.NoError(t, err)

	assert.Equal(t, []string{"t"}, g.Dependencies("i"))
	assert.Equal(t, []string{"t", "i"}, g.ExecutionOrder())
}

func TestReadyNodes(t *testing.T) {
	g := fixtureGraph(t)

	assert.Equal(t, []string{"text-1", "style-1", "material-1"}, g.ReadyNodes(Progress{}))
	assert.Equal(t, []string{"image-1"}, g.ReadyNodes(Progress{Completed: []string{"text-1", "style-1", "material-1"}}))
	assert.Equal(t, []string{"variants-1"}, g.ReadyNodes(Progress{Completed: []string{"text-1", "style-1", "material-1", "image-1"}}))

	// a failed dependency blocks the image node
	assert.Empty(t, g.ReadyNodes(Progress{Completed: []string{"text-1", "material-1"}, Failed: []string{"style-1"}}))
	assert.Equal(t, []string{"material-1"}, g.ReadyNodes(Progress{Completed: []string{"text-1"}, Skipped: []string{"style-1"}}))
}

func TestMissingInputs(t *testing.T) {
	g := fixtureGraph(t)

	missing, err := g.MissingInputs("variants-1")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.True(t, g.RemoveConnection("c4"))
	missing, err = g.MissingInputs("variants-1")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "sourceImage", missing[0].ID)

	n, _ := g.Node("variants-1")
	data := n.Data.(VariantSetData)
	data.SourceImageURL = "https://cdn.example.com/renders/1.png"
	require.NoError(t, g.UpdateNodeData("variants-1", data))
	missing, err = g.MissingInputs("variants-1")
	require.NoError(t, err)
	assert.Empty(t, missing)

	// optional inputs are never reported
	missing, err = g.MissingInputs("text-1")
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = g.MissingInputs("ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestValidTargets(t *testing.T) {
	g := fixtureGraph(t)

	assert.Equal(t, []Target{
		{NodeID: "image-1", Port: "baseImage", Name: "Base Image"},
		{NodeID: "variants-1", Port: "sourceImage", Name: "Source Image"},
	}, g.ValidTargets(KindImage, "image"))

	assert.Equal(t, []Target{
		{NodeID: "text-1", Port: "text", Name: "Text"},
		{NodeID: "image-1", Port: "prompt", Name: "Prompt"},
	}, g.ValidTargets(KindText, "text"))

	assert.Empty(t, g.ValidTargets(KindVariantSet, "variants"))
	assert.Empty(t, g.ValidTargets(KindStyle, "nope"))
	assert.Empty(t, g.ValidTargets(NodeKind("video"), "video"))
}
