package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCoversEveryKind(t *testing.T) {
	for _, k := range Kinds() {
		d := Lookup(k)
		assert.Equal(t, k, d.Kind)
		assert.NotEmpty(t, d.Label, k)
		assert.NotEmpty(t, d.Description, k)
		assert.NotEmpty(t, d.Outputs, k)

		p := DefaultPayload(k)
		require.NotNil(t, p, k)
		assert.Equal(t, k, p.Kind())
	}
}

func TestLookupUnknownKind(t *testing.T) {
	d := Lookup("video")
	assert.Equal(t, Definition{}, d)
	assert.Nil(t, DefaultPayload("video"))
}

func TestLookupReturnsCopies(t *testing.T) {
	d := Lookup(KindImage)
	d.Inputs[0].ID = "changed"

	p, ok := Lookup(KindImage).Input("prompt")
	require.True(t, ok)
	assert.Equal(t, "prompt", p.ID)
}

func TestDefinitionsByCategory(t *testing.T) {
	utility := DefinitionsByCategory(CategoryUtility)
	require.Len(t, utility, 2)
	assert.Equal(t, KindStyle, utility[0].Kind)
	assert.Equal(t, KindMaterial, utility[1].Kind)

	assert.Len(t, DefinitionsByCategory(CategoryProcessing), 2)
	assert.Len(t, DefinitionsByCategory(CategoryInput), 1)
	assert.Len(t, Definitions(), len(Kinds()))
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(ChannelText, ChannelText))
	assert.True(t, Compatible(ChannelImage, ChannelVariants))
	assert.False(t, Compatible(ChannelVariants, ChannelImage))
	assert.False(t, Compatible(ChannelStyle, ChannelMaterial))
}
