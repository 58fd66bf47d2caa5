package canvas

import "slices"

// DataType is the value domain carried by a port.
type DataType string

const (
	DataString DataType = "string"
	DataImage  DataType = "image"
	DataNumber DataType = "number"
	DataObject DataType = "object"
	DataArray  DataType = "array"
)

// Channel names what flows through a port. Two ports may be connected when
// their channels are compatible, see Compatible.
type Channel string

const (
	ChannelText     Channel = "text"
	ChannelImage    Channel = "image"
	ChannelStyle    Channel = "style"
	ChannelMaterial Channel = "material"
	ChannelVariants Channel = "variants"
)

// Compatible reports whether an output on channel from may feed an input on channel to.
// Images may also feed variant inputs; every other channel only feeds itself.
func Compatible(from, to Channel) bool {
	if from == to {
		return true
	}
	return from == ChannelImage && to == ChannelVariants
}

// PortSpec declares one input or output of a node kind.
type PortSpec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
	Channel  Channel  `json:"channel"`
	Required bool     `json:"required"`
	Default  any      `json:"default_value,omitempty"`
}

// Category groups node kinds for palettes and filtering.
type Category string

const (
	CategoryInput      Category = "input"
	CategoryProcessing Category = "processing"
	CategoryUtility    Category = "utility"
)

// Definition is the static metadata of a node kind.
type Definition struct {
	Kind        NodeKind   `json:"type"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Inputs      []PortSpec `json:"inputs"`
	Outputs     []PortSpec `json:"outputs"`
}

// Input returns the input port with the given id.
func (d Definition) Input(id string) (PortSpec, bool) {
	return findPort(d.Inputs, id)
}

// Output returns the output port with the given id.
func (d Definition) Output(id string) (PortSpec, bool) {
	return findPort(d.Outputs, id)
}

func findPort(ports []PortSpec, id string) (PortSpec, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return PortSpec{}, false
}

var registry = map[NodeKind]Definition{
	KindText: {
		Kind:        KindText,
		Label:       "Text Prompt",
		Description: "Enter text prompts for image generation",
		Category:    CategoryInput,
		Inputs: []PortSpec{
			{ID: "text", Name: "Text", DataType: DataString, Channel: ChannelText},
		},
		Outputs: []PortSpec{
			{ID: "text", Name: "Text", DataType: DataString, Channel: ChannelText},
		},
	},
	KindImage: {
		Kind:        KindImage,
		Label:       "Image Generator",
		Description: "Generate images from prompts",
		Category:    CategoryProcessing,
		Inputs: []PortSpec{
			{ID: "prompt", Name: "Prompt", DataType: DataString, Channel: ChannelText},
			{ID: "baseImage", Name: "Base Image", DataType: DataImage, Channel: ChannelImage},
			{ID: "style", Name: "Style", DataType: DataObject, Channel: ChannelStyle},
			{ID: "material", Name: "Material", DataType: DataArray, Channel: ChannelMaterial},
		},
		Outputs: []PortSpec{
			{ID: "image", Name: "Image", DataType: DataImage, Channel: ChannelImage},
		},
	},
	KindVariantSet: {
		Kind:        KindVariantSet,
		Label:       "Variants",
		Description: "Generate multiple variations of an image",
		Category:    CategoryProcessing,
		Inputs: []PortSpec{
			{ID: "sourceImage", Name: "Source Image", DataType: DataImage, Channel: ChannelImage, Required: true},
		},
		Outputs: []PortSpec{
			{ID: "variants", Name: "Variants", DataType: DataArray, Channel: ChannelVariants},
		},
	},
	KindStyle: {
		Kind:        KindStyle,
		Label:       "Style Settings",
		Description: "Configure rendering style and camera settings",
		Category:    CategoryUtility,
		Outputs: []PortSpec{
			{ID: "style", Name: "Style", DataType: DataObject, Channel: ChannelStyle},
		},
	},
	KindMaterial: {
		Kind:        KindMaterial,
		Label:       "Material Settings",
		Description: "Configure material properties",
		Category:    CategoryUtility,
		Outputs: []PortSpec{
			{ID: "materials", Name: "Materials", DataType: DataArray, Channel: ChannelMaterial},
		},
	},
}

// Lookup returns the definition of kind. It never fails: an unknown kind
// yields the zero Definition, which declares no ports.
func Lookup(kind NodeKind) Definition {
	d, ok := registry[kind]
	if !ok {
		return Definition{}
	}
	d.Inputs = slices.Clone(d.Inputs)
	d.Outputs = slices.Clone(d.Outputs)
	return d
}

// Definitions returns every definition in Kinds order.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(registry))
	for _, k := range Kinds() {
		defs = append(defs, Lookup(k))
	}
	return defs
}

// DefinitionsByCategory returns the definitions in category c.
func DefinitionsByCategory(c Category) []Definition {
	var defs []Definition
	for _, d := range Definitions() {
		if d.Category == c {
			defs = append(defs, d)
		}
	}
	return defs
}

// DefaultPayload returns the payload a new node of kind starts with.
func DefaultPayload(kind NodeKind) Payload {
	switch kind {
	case KindText:
		return TextData{Placeholder: "Enter your prompt..."}
	case KindImage:
		return ImageData{
			Settings: ImageSettings{Style: "architectural", Quality: "standard", AspectRatio: "16:9"},
			Status:   StatusIdle,
		}
	case KindVariantSet:
		return VariantSetData{
			Count:    4,
			Settings: VariantSettings{VariationStrength: 0.5, Quality: "standard"},
			Status:   StatusIdle,
			Variants: []Variant{},
		}
	case KindStyle:
		return StyleData{
			Camera:      Camera{FocalLength: 35, FStop: 5.6, Position: "eye-level", Angle: "three-quarter"},
			Environment: Environment{Scene: "exterior", Weather: "sunny", TimeOfDay: "afternoon", Season: "summer"},
			Lighting:    Lighting{Intensity: 70, Direction: "side", Color: "warm", Shadows: "soft"},
			Atmosphere:  Atmosphere{Mood: "professional", Contrast: 50, Saturation: 50},
		}
	case KindMaterial:
		return MaterialData{Materials: []Material{}}
	default:
		return nil
	}
}
