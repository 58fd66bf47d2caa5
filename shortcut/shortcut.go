// Package shortcut maps key chords on the canvas to symbolic actions.
package shortcut

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidChord = errors.New("shortcut: invalid chord")

// Action is a symbolic canvas command.
type Action string

const (
	AddTextNode     Action = "add-text-node"
	AddImageNode    Action = "add-image-node"
	AddVariantsNode Action = "add-variants-node"
	AddStyleNode    Action = "add-style-node"
	AddMaterialNode Action = "add-material-node"
	Delete          Action = "delete"
	Deselect        Action = "deselect"
	Copy            Action = "copy"
	Paste           Action = "paste"
	Undo            Action = "undo"
	Redo            Action = "redo"
	Save            Action = "save"
	SelectAll       Action = "select-all"
	ZoomIn          Action = "zoom-in"
	ZoomOut         Action = "zoom-out"
	FitView         Action = "fit-view"
)

// allowedInText lists the actions that may fire while a text field has focus.
var allowedInText = []Action{Delete, Deselect}

// Modifiers is the exact modifier state of a chord.
type Modifiers struct {
	Ctrl  bool `yaml:"ctrl,omitempty" json:"ctrl,omitempty"`
	Shift bool `yaml:"shift,omitempty" json:"shift,omitempty"`
	Alt   bool `yaml:"alt,omitempty" json:"alt,omitempty"`
	Meta  bool `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Binding ties one chord to an action.
type Binding struct {
	Key         string `yaml:"key" json:"key"`
	Modifiers   `yaml:",inline"`
	Action      Action `yaml:"action" json:"action"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Chord renders the binding's chord in the form ParseChord accepts.
func (b Binding) Chord() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "ctrl")
	}
	if b.Shift {
		parts = append(parts, "shift")
	}
	if b.Alt {
		parts = append(parts, "alt")
	}
	if b.Meta {
		parts = append(parts, "meta")
	}
	return strings.Join(append(parts, b.Key), "+")
}

func (b Binding) sameChord(o Binding) bool {
	return strings.EqualFold(b.Key, o.Key) && b.Modifiers == o.Modifiers
}

// Event is one key press.
type Event struct {
	Key string
	Modifiers
	// InTextField is set when focus is in a text entry field.
	InTextField bool
}

// Table is an ordered list of bindings; the first matching binding wins.
type Table []Binding

var defaults = Table{
	{Key: "t", Modifiers: Modifiers{Ctrl: true}, Action: AddTextNode, Description: "Add Text Node"},
	{Key: "i", Modifiers: Modifiers{Ctrl: true}, Action: AddImageNode, Description: "Add Image Node"},
	{Key: "v", Modifiers: Modifiers{Ctrl: true, Shift: true}, Action: AddVariantsNode, Description: "Add Variants Node"},
	{Key: "s", Modifiers: Modifiers{Ctrl: true, Shift: true}, Action: AddStyleNode, Description: "Add Style Node"},
	{Key: "m", Modifiers: Modifiers{Ctrl: true}, Action: AddMaterialNode, Description: "Add Material Node"},
	{Key: "Delete", Action: Delete, Description: "Delete Selected Nodes"},
	{Key: "Backspace", Action: Delete, Description: "Delete Selected Nodes"},
	{Key: "c", Modifiers: Modifiers{Ctrl: true}, Action: Copy, Description: "Copy Selected Nodes"},
	{Key: "v", Modifiers: Modifiers{Ctrl: true}, Action: Paste, Description: "Paste Nodes"},
	{Key: "z", Modifiers: Modifiers{Ctrl: true}, Action: Undo, Description: "Undo"},
	{Key: "y", Modifiers: Modifiers{Ctrl: true}, Action: Redo, Description: "Redo"},
	{Key: "z", Modifiers: Modifiers{Ctrl: true, Shift: true}, Action: Redo, Description: "Redo"},
	{Key: "s", Modifiers: Modifiers{Ctrl: true}, Action: Save, Description: "Save Canvas"},
	{Key: "a", Modifiers: Modifiers{Ctrl: true}, Action: SelectAll, Description: "Select All Nodes"},
	{Key: "Escape", Action: Deselect, Description: "Deselect All"},
	{Key: "=", Modifiers: Modifiers{Ctrl: true}, Action: ZoomIn, Description: "Zoom In"},
	{Key: "+", Modifiers: Modifiers{Ctrl: true}, Action: ZoomIn, Description: "Zoom In"},
	{Key: "-", Modifiers: Modifiers{Ctrl: true}, Action: ZoomOut, Description: "Zoom Out"},
	{Key: "0", Modifiers: Modifiers{Ctrl: true}, Action: FitView, Description: "Fit View"},
}

// Defaults returns a copy of the built-in table.
func Defaults() Table {
	return slices.Clone(defaults)
}

// Match returns the action bound to the event's key and exact modifier state.
// Keys compare case-insensitively.
func (t Table) Match(ev Event) (Action, bool) {
	for _, b := range t {
		if strings.EqualFold(b.Key, ev.Key) && b.Modifiers == ev.Modifiers {
			return b.Action, true
		}
	}
	return "", false
}

// Merge returns t with overrides applied: an override for a chord already in
// t replaces that binding in place, any other override is appended.
func (t Table) Merge(overrides Table) Table {
	out := slices.Clone(t)
	for _, o := range overrides {
		i := slices.IndexFunc(out, o.sameChord)
		if i >= 0 {
			out[i] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

// LoadYAML reads a list of bindings.
func LoadYAML(r io.Reader) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return nil, fmt.Errorf("shortcut: decode table: %w", err)
	}
	for i, b := range t {
		if b.Key == "" || b.Action == "" {
			return nil, fmt.Errorf("shortcut: binding %d needs key and action", i)
		}
	}
	return t, nil
}

// LoadFile returns the default table with the bindings in path merged over
// it. An empty path yields the defaults.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return Defaults(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shortcut: %w", err)
	}
	defer f.Close()
	overrides, err := LoadYAML(f)
	if err != nil {
		return nil, err
	}
	return Defaults().Merge(overrides), nil
}

// ParseChord parses chords such as "ctrl+shift+v" or "Escape".
func ParseChord(s string) (Event, error) {
	if s == "+" {
		return Event{Key: "+"}, nil
	}
	parts := strings.Split(s, "+")
	// "ctrl++" binds the plus key
	if strings.HasSuffix(s, "++") {
		parts = append(strings.Split(strings.TrimSuffix(s, "++"), "+"), "+")
	}
	var ev Event
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == len(parts)-1 {
			if p == "" {
				return Event{}, fmt.Errorf("%w: %q", ErrInvalidChord, s)
			}
			ev.Key = p
			break
		}
		switch strings.ToLower(p) {
		case "ctrl", "control":
			ev.Ctrl = true
		case "shift":
			ev.Shift = true
		case "alt", "option":
			ev.Alt = true
		case "meta", "cmd", "super":
			ev.Meta = true
		default:
			return Event{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidChord, p)
		}
	}
	return ev, nil
}

// Dispatcher runs registered handlers for matched events.
// A Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	table    Table
	handlers map[Action]func()
}

// NewDispatcher returns a Dispatcher over table.
func NewDispatcher(table Table) *Dispatcher {
	return &Dispatcher{table: table, handlers: make(map[Action]func())}
}

// On registers fn for action, replacing any previous handler.
func (d *Dispatcher) On(action Action, fn func()) { d.handlers[action] = fn }

// Off removes the handler for action.
func (d *Dispatcher) Off(action Action) { delete(d.handlers, action) }

// Table returns the dispatcher's bindings.
func (d *Dispatcher) Table() Table { return slices.Clone(d.table) }

// Handle matches ev and runs the action's handler. It returns the matched
// action and whether a handler ran. Inside a text field only Delete and
// Deselect may fire.
func (d *Dispatcher) Handle(ev Event) (Action, bool) {
	action, ok := d.table.Match(ev)
	if !ok {
		return "", false
	}
	if ev.InTextField && !slices.Contains(allowedInText, action) {
		return action, false
	}
	fn, ok := d.handlers[action]
	if !ok {
		return action, false
	}
	fn()
	return action, true
}
