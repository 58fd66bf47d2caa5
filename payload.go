package canvas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the kind-specific data of a node. The set of implementations is
// closed: TextData, ImageData, VariantSetData, StyleData and MaterialData.
type Payload interface {
	Kind() NodeKind
	isPayload()
}

// GenerationStatus tracks a generating node's last request.
type GenerationStatus string

const (
	StatusIdle       GenerationStatus = "idle"
	StatusGenerating GenerationStatus = "generating"
	StatusCompleted  GenerationStatus = "completed"
	StatusError      GenerationStatus = "error"
)

// TextData is the payload of a text prompt node.
type TextData struct {
	Prompt      string `json:"prompt"`
	Placeholder string `json:"placeholder,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ImageSettings configures an image generation request.
type ImageSettings struct {
	Style          string `json:"style"`
	Quality        string `json:"quality"`
	AspectRatio    string `json:"aspectRatio"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
}

// PreviousRender is an earlier output of an image node kept after regeneration.
type PreviousRender struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	GeneratedAt string `json:"generatedAt"`
}

// ImageData is the payload of an image generator node.
// StyleSettings and MaterialSettings are snapshots of upstream nodes taken when
// generation starts; they are never re-derived from the graph afterwards.
// GeneratedAt is kept as the stored timestamp text.
type ImageData struct {
	Prompt           string           `json:"prompt"`
	Settings         ImageSettings    `json:"settings"`
	StyleSettings    *StyleData       `json:"styleSettings,omitempty"`
	MaterialSettings *MaterialData    `json:"materialSettings,omitempty"`
	BaseImageData    string           `json:"baseImageData,omitempty"`
	BaseImageType    string           `json:"baseImageType,omitempty"`
	Status           GenerationStatus `json:"status"`
	OutputURL        string           `json:"outputUrl,omitempty"`
	RenderID         string           `json:"renderId,omitempty"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	GeneratedAt      string           `json:"generatedAt,omitempty"`
	PreviousRenders  []PreviousRender `json:"previousRenders,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// VariantSettings configures a variant generation request.
type VariantSettings struct {
	VariationStrength float64 `json:"variationStrength"`
	Style             string  `json:"style,omitempty"`
	Quality           string  `json:"quality"`
}

// Variant is one generated alternative of a source image.
// Settings is the free-form request object the variant was generated with.
type Variant struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Prompt   string          `json:"prompt"`
	RenderID string          `json:"renderId"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// StyleExtraction selects which aspects are lifted from a reference image.
type StyleExtraction struct {
	ExtractCamera      bool `json:"extractCamera"`
	ExtractLighting    bool `json:"extractLighting"`
	ExtractAtmosphere  bool `json:"extractAtmosphere"`
	ExtractEnvironment bool `json:"extractEnvironment"`
	ExtractColors      bool `json:"extractColors"`
	ExtractComposition bool `json:"extractComposition"`
}

// StyleReference is a reference image whose style a variants node borrows.
// The image fields are nullable; an explicit null survives through Extra.
type StyleReference struct {
	ImageURL        *string         `json:"imageUrl,omitempty"`
	ImageData       *string         `json:"imageData,omitempty"`
	ImageType       *string         `json:"imageType,omitempty"`
	ImageName       *string         `json:"imageName,omitempty"`
	StyleExtraction StyleExtraction `json:"styleExtraction"`
	ExtractedStyle  *StyleData      `json:"extractedStyle,omitempty"`
	SelectedStyleID string          `json:"selectedStyleId,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// VariantSetData is the payload of a variants node.
type VariantSetData struct {
	SourceImageURL    string           `json:"sourceImageUrl,omitempty"`
	Prompt            string           `json:"prompt,omitempty"`
	Count             int              `json:"count"`
	VariantType       string           `json:"variantType,omitempty"`
	Settings          VariantSettings  `json:"settings"`
	StyleSettings     *StyleData       `json:"styleSettings,omitempty"`
	MaterialSettings  *MaterialData    `json:"materialSettings,omitempty"`
	StyleReference    *StyleReference  `json:"styleReference,omitempty"`
	Status            GenerationStatus `json:"status"`
	Variants          []Variant        `json:"variants"`
	SelectedVariantID string           `json:"selectedVariantId,omitempty"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type Camera struct {
	FocalLength float64 `json:"focalLength"`
	FStop       float64 `json:"fStop"`
	Position    string  `json:"position"`
	Angle       string  `json:"angle"`
}

type Environment struct {
	Scene     string `json:"scene"`
	Weather   string `json:"weather"`
	TimeOfDay string `json:"timeOfDay"`
	Season    string `json:"season"`
}

type Lighting struct {
	Intensity float64 `json:"intensity"`
	Direction string  `json:"direction"`
	Color     string  `json:"color"`
	Shadows   string  `json:"shadows"`
}

type Atmosphere struct {
	Mood       string  `json:"mood"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// StyleData is the payload of a style settings node.
type StyleData struct {
	Camera      Camera      `json:"camera"`
	Environment Environment `json:"environment"`
	Lighting    Lighting    `json:"lighting"`
	Atmosphere  Atmosphere  `json:"atmosphere"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Material describes the finish applied to one surface class.
type Material struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Material string `json:"material"`
	Color    string `json:"color,omitempty"`
	Texture  string `json:"texture,omitempty"`
	Finish   string `json:"finish,omitempty"`
}

// MaterialData is the payload of a material settings node.
type MaterialData struct {
	Materials []Material `json:"materials"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (TextData) Kind() NodeKind       { return KindText }
func (ImageData) Kind() NodeKind      { return KindImage }
func (VariantSetData) Kind() NodeKind { return KindVariantSet }
func (StyleData) Kind() NodeKind      { return KindStyle }
func (MaterialData) Kind() NodeKind   { return KindMaterial }

// Every payload keeps the keys of its stored object that the typed fields do
// not reproduce in Extra, so a decode/encode cycle never drops data.

func (d TextData) MarshalJSON() ([]byte, error) {
	type plain TextData
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *TextData) UnmarshalJSON(b []byte) error {
	type plain TextData
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = TextData(p)
	return nil
}

func (d ImageData) MarshalJSON() ([]byte, error) {
	type plain ImageData
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *ImageData) UnmarshalJSON(b []byte) error {
	type plain ImageData
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = ImageData(p)
	return nil
}

func (d VariantSetData) MarshalJSON() ([]byte, error) {
	type plain VariantSetData
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *VariantSetData) UnmarshalJSON(b []byte) error {
	type plain VariantSetData
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = VariantSetData(p)
	return nil
}

func (d StyleReference) MarshalJSON() ([]byte, error) {
	type plain StyleReference
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *StyleReference) UnmarshalJSON(b []byte) error {
	type plain StyleReference
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = StyleReference(p)
	return nil
}

func (d StyleData) MarshalJSON() ([]byte, error) {
	type plain StyleData
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *StyleData) UnmarshalJSON(b []byte) error {
	type plain StyleData
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = StyleData(p)
	return nil
}

func (d MaterialData) MarshalJSON() ([]byte, error) {
	type plain MaterialData
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *MaterialData) UnmarshalJSON(b []byte) error {
	type plain MaterialData
	var p plain
	extra, err := decodeWithExtra(b, &p)
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = MaterialData(p)
	return nil
}

// encodeWithExtra marshals v and adds the overflow keys it did not emit.
// HTML escaping is left to the outer encoder.
func encodeWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := marshalUnescaped(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return marshalUnescaped(obj)
}

func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// decodeWithExtra unmarshals b into v and returns the keys of b that v does
// not emit again: unknown keys, explicit nulls and omitted zero values.
// Values are compacted so repeated cycles are byte-stable.
func decodeWithExtra(b []byte, v any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(b, v); err != nil {
		return nil, err
	}
	var in map[string]json.RawMessage
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var kept map[string]json.RawMessage
	if err := json.Unmarshal(out, &kept); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, raw := range in {
		if _, ok := kept[k]; ok {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = buf.Bytes()
	}
	return extra, nil
}

func (TextData) isPayload()       {}
func (ImageData) isPayload()      {}
func (VariantSetData) isPayload() {}
func (StyleData) isPayload()      {}
func (MaterialData) isPayload()   {}

// EncodePayload serialises a payload on its own. A nil payload encodes as null.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("canvas: encode %s payload: %w", p.Kind(), err)
	}
	return b, nil
}

// DecodePayload decodes raw into the payload type selected by kind.
// Empty or null data decodes to a nil payload.
func DecodePayload(kind NodeKind, raw json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		return nil, nil
	}
	switch kind {
	case KindText:
		return decodeAs[TextData](raw)
	case KindImage:
		return decodeAs[ImageData](raw)
	case KindVariantSet:
		return decodeAs[VariantSetData](raw)
	case KindStyle:
		return decodeAs[StyleData](raw)
	case KindMaterial:
		return decodeAs[MaterialData](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("canvas: decode %s payload: %w", v.Kind(), err)
	}
	return v, nil
}
