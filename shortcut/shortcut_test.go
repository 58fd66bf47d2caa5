package shortcut

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchExactModifiers(t *testing.T) {
	table := Defaults()

	a, ok := table.Match(Event{Key: "V", Modifiers: Modifiers{Ctrl: true}})
	require.True(t, ok)
	assert.Equal(t, Paste, a)

	a, ok = table.Match(Event{Key: "v", Modifiers: Modifiers{Ctrl: true, Shift: true}})
	require.True(t, ok)
	assert.Equal(t, AddVariantsNode, a)

	// extra modifiers do not match a binding that lacks them
	_, ok = table.Match(Event{Key: "t", Modifiers: Modifiers{Ctrl: true, Alt: true}})
	assert.False(t, ok)

	// bare letter never matches a ctrl binding
	_, ok = table.Match(Event{Key: "t"})
	assert.False(t, ok)

	a, ok = table.Match(Event{Key: "escape"})
	require.True(t, ok)
	assert.Equal(t, Deselect, a)
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(Defaults())
	calls := map[Action]int{}
	for _, a := range []Action{AddTextNode, Delete, Deselect, Undo} {
		a := a
		d.On(a, func() { calls[a]++ })
	}

	action, fired := d.Handle(Event{Key: "t", Modifiers: Modifiers{Ctrl: true}})
	assert.Equal(t, AddTextNode, action)
	assert.True(t, fired)

	// matched but no handler
	action, fired = d.Handle(Event{Key: "s", Modifiers: Modifiers{Ctrl: true}})
	assert.Equal(t, Save, action)
	assert.False(t, fired)

	// unmatched
	action, fired = d.Handle(Event{Key: "q"})
	assert.Empty(t, action)
	assert.False(t, fired)

	d.Off(AddTextNode)
	_, fired = d.Handle(Event{Key: "t", Modifiers: Modifiers{Ctrl: true}})
	assert.False(t, fired)

	assert.Equal(t, 1, calls[AddTextNode])
}

func TestDispatcherTextFieldSuppression(t *testing.T) {
	d := NewDispatcher(Defaults())
	var fired []Action
	for _, b := range Defaults() {
		a := b.Action
		d.On(a, func() { fired = append(fired, a) })
	}

	_, ok := d.Handle(Event{Key: "z", Modifiers: Modifiers{Ctrl: true}, InTextField: true})
	assert.False(t, ok)
	_, ok = d.Handle(Event{Key: "t", Modifiers: Modifiers{Ctrl: true}, InTextField: true})
	assert.False(t, ok)

	_, ok = d.Handle(Event{Key: "Escape", InTextField: true})
	assert.True(t, ok)
	_, ok = d.Handle(Event{Key: "Backspace", InTextField: true})
	assert.True(t, ok)

	assert.Equal(t, []Action{Deselect, Delete}, fired)
}

func TestLoadYAMLAndMerge(t *testing.T) {
	f, err := os.Open("testdata/overrides.yaml")
	require.NoError(t, err)
	defer f.Close()

	overrides, err := LoadYAML(f)
	require.NoError(t, err)
	require.Len(t, overrides, 3)
	assert.Equal(t, Modifiers{Meta: true}, overrides[2].Modifiers)

	merged := Defaults().Merge(overrides)
	assert.Len(t, merged, len(Defaults())+1)

	a, ok := merged.Match(Event{Key: "t", Modifiers: Modifiers{Ctrl: true}})
	require.True(t, ok)
	assert.Equal(t, FitView, a)

	a, ok = merged.Match(Event{Key: "f", Modifiers: Modifiers{Meta: true}})
	require.True(t, ok)
	assert.Equal(t, FitView, a)

	// the built-in table is untouched
	a, _ = Defaults().Match(Event{Key: "t", Modifiers: Modifiers{Ctrl: true}})
	assert.Equal(t, AddTextNode, a)
}

func TestLoadYAMLErrors(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("- key: x\n"))
	assert.Error(t, err)

	_, err = LoadYAML(strings.NewReader("not: [a list"))
	assert.Error(t, err)

	table, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in   string
		want Event
	}{
		{"ctrl+shift+v", Event{Key: "v", Modifiers: Modifiers{Ctrl: true, Shift: true}}},
		{"Escape", Event{Key: "Escape"}},
		{"cmd+alt+k", Event{Key: "k", Modifiers: Modifiers{Meta: true, Alt: true}}},
		{"ctrl++", Event{Key: "+", Modifiers: Modifiers{Ctrl: true}}},
		{"+", Event{Key: "+"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChord(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "ctrl+", "hyper+x"} {
		_, err := ParseChord(bad)
		assert.ErrorIs(t, err, ErrInvalidChord, bad)
	}
}

func TestChordRoundTrip(t *testing.T) {
	for _, b := range Defaults() {
		ev, err := ParseChord(b.Chord())
		require.NoError(t, err, b.Chord())
		got, ok := Defaults().Match(ev)
		require.True(t, ok, b.Chord())
		// the first binding for a chord wins, so compare chords not actions
		assert.Equal(t, b.Modifiers, ev.Modifiers)
		assert.NotEmpty(t, got)
	}
	assert.Equal(t, "ctrl+shift+v", Binding{Key: "v", Modifiers: Modifiers{Ctrl: true, Shift: true}}.Chord())
}

func TestLoadFile(t *testing.T) {
	table, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), table)

	table, err = LoadFile("testdata/overrides.yaml")
	require.NoError(t, err)
	assert.Len(t, table, len(Defaults())+1)
	action, ok := table.Match(Event{Key: "f", Modifiers: Modifiers{Meta: true}})
	require.True(t, ok)
	assert.Equal(t, FitView, action)

	_, err = LoadFile("testdata/missing.yaml")
	assert.Error(t, err)
}
