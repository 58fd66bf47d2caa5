package canvas

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownTemplate is returned when a template name is not registered.
var ErrUnknownTemplate = errors.New("canvas: unknown template")

// TemplateLink connects two nodes of a template by their index in Kinds.
type TemplateLink struct {
	From     int    `json:"from"`
	FromPort string `json:"from_port"`
	To       int    `json:"to"`
	ToPort   string `json:"to_port"`
}

// Template is a preset group of nodes and connections laid out left to right.
type Template struct {
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Kinds       []NodeKind     `json:"kinds"`
	Links       []TemplateLink `json:"links"`
}

var (
	linkPrompt   = TemplateLink{FromPort: "text", ToPort: "prompt"}
	linkStyle    = TemplateLink{FromPort: "style", ToPort: "style"}
	linkMaterial = TemplateLink{FromPort: "materials", ToPort: "material"}
	linkVariants = TemplateLink{FromPort: "image", ToPort: "sourceImage"}
)

func link(l TemplateLink, from, to int) TemplateLink {
	l.From, l.To = from, to
	return l
}

var templates = []Template{
	{
		Name:        "basic",
		Label:       "Basic Workflow",
		Description: "Simple text to image generation",
		Kinds:       []NodeKind{KindText, KindImage},
		Links:       []TemplateLink{link(linkPrompt, 0, 1)},
	},
	{
		Name:        "styled",
		Label:       "Styled Generation",
		Description: "Text to image with style settings",
		Kinds:       []NodeKind{KindText, KindStyle, KindImage},
		Links:       []TemplateLink{link(linkPrompt, 0, 2), link(linkStyle, 1, 2)},
	},
	{
		Name:        "variants",
		Label:       "Variants Workflow",
		Description: "Generate image and create variants",
		Kinds:       []NodeKind{KindText, KindImage, KindVariantSet},
		Links:       []TemplateLink{link(linkPrompt, 0, 1), link(linkVariants, 1, 2)},
	},
	{
		Name:        "complete",
		Label:       "Complete Workflow",
		Description: "Full workflow with all settings and variants",
		Kinds:       []NodeKind{KindText, KindStyle, KindMaterial, KindImage, KindVariantSet},
		Links: []TemplateLink{
			link(linkPrompt, 0, 3), link(linkStyle, 1, 3), link(linkMaterial, 2, 3), link(linkVariants, 3, 4),
		},
	},
	{
		Name:        "interior",
		Label:       "Interior Design",
		Description: "Interior design visualization workflow",
		Kinds:       []NodeKind{KindText, KindStyle, KindImage, KindVariantSet},
		Links:       []TemplateLink{link(linkPrompt, 0, 2), link(linkStyle, 1, 2), link(linkVariants, 2, 3)},
	},
	{
		Name:        "exterior",
		Label:       "Exterior Architecture",
		Description: "Exterior architectural rendering workflow",
		Kinds:       []NodeKind{KindText, KindStyle, KindMaterial, KindImage},
		Links:       []TemplateLink{link(linkPrompt, 0, 3), link(linkStyle, 1, 3), link(linkMaterial, 2, 3)},
	},
}

// Templates returns every registered template.
func Templates() []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		t.Kinds = slices.Clone(t.Kinds)
		t.Links = slices.Clone(t.Links)
		out[i] = t
	}
	return out
}

// LookupTemplate returns the template registered under name.
func LookupTemplate(name string) (Template, bool) {
	for _, t := range Templates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// AddTemplate adds the nodes of the named template in a row starting at at,
// with default payloads, and wires its links. It returns the new node ids in
// template order. On error the graph is left as it was.
func (g *Graph) AddTemplate(name string, at Position) ([]string, error) {
	t, ok := LookupTemplate(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	before := g.Snapshot()
	restore := func() {
		g.nodes = before.Nodes
		g.connections = before.Connections
		g.reindex()
	}

	ids := make([]string, len(t.Kinds))
	for i, kind := range t.Kinds {
		pos := Position{X: at.X + float64(i)*nodeSpacing, Y: at.Y}
		id, err := g.AddNode(kind, pos, nil)
		if err != nil {
			restore()
			return nil, err
		}
		ids[i] = id
	}
	for _, l := range t.Links {
		if l.From < 0 || l.From >= len(ids) || l.To < 0 || l.To >= len(ids) {
			restore()
			return nil, fmt.Errorf("%w: template %q link out of range", ErrInvalidNode, name)
		}
		if _, err := g.AddConnection(ids[l.From], l.FromPort, ids[l.To], l.ToPort); err != nil {
			restore()
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
	}
	return ids, nil
}
