package signing

import (
	"math"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
)

// FieldType is the kind of form field placed by the signer.
type FieldType string

const (
	FieldSignature FieldType = "signature"
	FieldText      FieldType = "text"
	FieldImage     FieldType = "image"
	FieldDate      FieldType = "date"
	FieldCheckbox  FieldType = "checkbox"
)

// Raster reports whether fields of this type are drawn as images.
func (t FieldType) Raster() bool {
	return t == FieldSignature || t == FieldImage
}

func (t FieldType) valid() bool {
	switch t {
	case FieldSignature, FieldText, FieldImage, FieldDate, FieldCheckbox:
		return true
	}
	return false
}

// RawField is a field record as received from the editor. Coordinates are
// percentages of the page with the origin at the top-left corner.
type RawField struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	PageIndex int     `json:"pageIndex"`
}

// FieldPlacement is a validated field.
type FieldPlacement struct {
	ID        string
	Type      FieldType
	X         float64
	Y         float64
	Width     float64
	Height    float64
	PageIndex int
}

// Percent returns the field box for coordinate conversion.
func (f FieldPlacement) Percent() geometry.Percent {
	return geometry.Percent{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

// Assets reports which image payloads accompany a request.
type Assets struct {
	Signature   bool
	FieldImages map[string]bool
}

// Validate checks raw fields against the document's pages and the supplied
// assets. It has no side effects and stops at the first problem found.
func Validate(raw []RawField, pages []geometry.Page, assets Assets) ([]FieldPlacement, error) {
	out := make([]FieldPlacement, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, r := range raw {
		if r.ID == "" {
			return nil, newError(KindValidation, "", "field %d has an empty id", i)
		}
		if seen[r.ID] {
			return nil, newError(KindValidation, r.ID, "duplicate field id")
		}
		seen[r.ID] = true

		for _, c := range []struct {
			name string
			v    float64
		}{{"x", r.X}, {"y", r.Y}, {"width", r.Width}, {"height", r.Height}} {
			if math.IsNaN(c.v) || c.v < 0 || c.v > 100 {
				return nil, newError(KindValidation, r.ID, "%s=%v is outside [0,100]", c.name, c.v)
			}
		}

		typ := FieldType(r.Type)
		if !typ.valid() {
			return nil, newError(KindValidation, r.ID, "unknown field type %q", r.Type)
		}

		if r.PageIndex < 0 || r.PageIndex >= len(pages) {
			return nil, newError(KindPageIndexOutOfRange, r.ID, "page index %d, document has %d page(s)", r.PageIndex, len(pages))
		}

		switch typ {
		case FieldSignature:
			if !assets.Signature {
				return nil, newError(KindMissingAsset, r.ID, "signature field without a signature image")
			}
		case FieldImage:
			if !assets.FieldImages[r.ID] {
				return nil, newError(KindMissingAsset, r.ID, "image field without an image payload")
			}
		}

		out = append(out, FieldPlacement{
			ID:        r.ID,
			Type:      typ,
			X:         r.X,
			Y:         r.Y,
			Width:     r.Width,
			Height:    r.Height,
			PageIndex: r.PageIndex,
		})
	}
	return out, nil
}
