package search

import (
	"testing"

	"github.com/meikuraledutech/canvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// fixture: a text prompt wired into an image node, plus an unconnected style
// node and a material node mentioning brick.
func fixture(t *testing.T) canvas.CanvasState {
	t.Helper()
	return canvas.CanvasState{
		Nodes: []canvas.Node{
			{ID: "t1", Kind: canvas.KindText, Data: canvas.TextData{Prompt: "Brick warehouse conversion"}},
			{ID: "i1", Kind: canvas.KindImage, Data: canvas.DefaultPayload(canvas.KindImage)},
			{ID: "s1", Kind: canvas.KindStyle, Data: canvas.DefaultPayload(canvas.KindStyle)},
			{ID: "m1", Kind: canvas.KindMaterial, Data: canvas.MaterialData{Materials: []canvas.Material{
				{ID: "w", Name: "Walls", Type: "wall", Material: "brick"},
			}}},
		},
		Connections: []canvas.Connection{
			{ID: "c1", Source: "t1", SourceHandle: "text", Target: "i1", TargetHandle: "prompt"},
		},
		Viewport: canvas.DefaultViewport,
	}
}

func ids(nodes []canvas.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestApplyNoFilters(t *testing.T) {
	state := fixture(t)
	res := Apply(state, Filters{})
	assert.Equal(t, state.Nodes, res.Nodes)
	assert.Empty(t, res.Highlighted)
}

func TestApplyQuery(t *testing.T) {
	state := fixture(t)

	res := Apply(state, Filters{Query: "  BRICK "})
	assert.Equal(t, []string{"t1", "m1"}, ids(res.Nodes))
	assert.Equal(t, []string{"t1", "m1"}, res.Highlighted)

	// registry label
	res = Apply(state, Filters{Query: "generator"})
	assert.Equal(t, []string{"i1"}, ids(res.Nodes))

	// node id
	res = Apply(state, Filters{Query: "s1"})
	assert.Contains(t, ids(res.Nodes), "s1")
}

func TestApplyCategoryAndKind(t *testing.T) {
	state := fixture(t)

	res := Apply(state, Filters{Category: canvas.CategoryUtility})
	assert.Equal(t, []string{"s1", "m1"}, ids(res.Nodes))

	res = Apply(state, Filters{Kind: canvas.KindMaterial})
	assert.Equal(t, []string{"m1"}, ids(res.Nodes))

	res = Apply(state, Filters{Category: canvas.CategoryInput, Kind: canvas.KindMaterial})
	require.NotNil(t, res.Nodes)
	assert.Empty(t, res.Nodes)
}

func TestApplyConnectivity(t *testing.T) {
	state := fixture(t)

	res := Apply(state, Filters{HasConnections: ptr(true)})
	assert.Equal(t, []string{"t1", "i1"}, ids(res.Nodes))

	res = Apply(state, Filters{HasConnections: ptr(false)})
	assert.Equal(t, []string{"s1", "m1"}, ids(res.Nodes))

	// connectivity uses the full connection list even when the query hides
	// the other endpoint
	res = Apply(state, Filters{Query: "brick warehouse", HasConnections: ptr(true)})
	assert.Equal(t, []string{"t1"}, ids(res.Nodes))
}

func TestHighlightIndependentOfOtherFilters(t *testing.T) {
	state := fixture(t)
	alone := Apply(state, Filters{Query: "brick"})

	narrowed := Apply(state, Filters{
		Query:    "brick",
		Category: canvas.CategoryUtility,
		Kind:     canvas.KindMaterial,
	})
	assert.Equal(t, alone.Highlighted, narrowed.Highlighted)
	assert.Equal(t, []string{"m1"}, ids(narrowed.Nodes))

	none := Apply(state, Filters{Query: "brick", Kind: canvas.KindStyle})
	assert.Empty(t, none.Nodes)
	assert.Equal(t, alone.Highlighted, none.Highlighted)
}

func TestMatchesMarkupCharactersInPayload(t *testing.T) {
	n := canvas.Node{ID: "t9", Kind: canvas.KindText, Data: canvas.TextData{Prompt: "Villa & garden <dusk>"}}

	assert.True(t, Matches(n, "villa & garden"))
	assert.True(t, Matches(n, "<dusk>"))
	assert.False(t, Matches(n, "u0026"))
}

func TestMatchesMarkupCharactersInUnknownKeys(t *testing.T) {
	p, err := canvas.DecodePayload(canvas.KindText, []byte(`{"prompt":"x","note":"a > b"}`))
	require.NoError(t, err)
	n := canvas.Node{ID: "t8", Kind: canvas.KindText, Data: p}

	assert.True(t, Matches(n, "a > b"))
}
