package pdfdoc

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
)

// Placement draws Image into Rect on the page at PageIndex (0-based). Rect is
// relative to the lower-left corner of the page box.
type Placement struct {
	PageIndex int
	Image     *Image
	Rect      geometry.Box
}

// Apply stamps every placement and returns the updated document. The
// receiver's bytes are not modified; with no placements a copy of them is
// returned.
//
// Existing page content is wrapped in a q/Q pair so that its graphics state
// cannot leak into the stamps. Each distinct image is embedded once and
// shared between pages.
func (d *Document) Apply(placements []Placement) ([]byte, error) {
	if len(placements) == 0 {
		return bytes.Clone(d.raw), nil
	}

	byPage := map[int][]Placement{}
	for _, p := range placements {
		if p.PageIndex < 0 || p.PageIndex >= len(d.pages) {
			return nil, fmt.Errorf("%w: page index %d out of range", ErrMalformed, p.PageIndex)
		}
		if p.Image == nil {
			return nil, fmt.Errorf("%w: placement on page %d has no image", ErrUnsupportedImage, p.PageIndex)
		}
		byPage[p.PageIndex] = append(byPage[p.PageIndex], p)
	}
	indexes := make([]int, 0, len(byPage))
	for i := range byPage {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	u := newUpdate(d)
	images := map[*Image]int{}
	openNr := 0

	for _, pi := range indexes {
		page := d.pages[pi]
		pageDict, _, inh, err := d.ctx.PageDict(page.Number, false)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrMalformed, page.Number, err)
		}
		dict := pageDict.Clone().(types.Dict)

		resources, err := d.pageResources(dict, inh)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d resources: %v", ErrMalformed, page.Number, err)
		}
		xobjects, err := d.cloneDictEntry(resources, "XObject")
		if err != nil {
			return nil, fmt.Errorf("%w: page %d xobjects: %v", ErrMalformed, page.Number, err)
		}

		contents, err := d.contentRefs(dict)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d contents: %v", ErrMalformed, page.Number, err)
		}

		var stamp bytes.Buffer
		if len(contents) > 0 {
			stamp.WriteString("Q\n")
		}
		names := map[*Image]string{}
		for _, p := range byPage[pi] {
			name, ok := names[p.Image]
			if !ok {
				nr, ok := images[p.Image]
				if !ok {
					if nr, err = u.addImage(p.Image); err != nil {
						return nil, err
					}
					images[p.Image] = nr
				}
				name = freeName(xobjects)
				xobjects[name] = *types.NewIndirectRef(nr, 0)
				names[p.Image] = name
			}
			fmt.Fprintf(&stamp, "q %s 0 0 %s %s %s cm /%s Do Q\n",
				formatNumber(p.Rect.Width), formatNumber(p.Rect.Height),
				formatNumber(page.OriginX+p.Rect.X), formatNumber(page.OriginY+p.Rect.Y), name)
		}

		resources["XObject"] = xobjects
		dict["Resources"] = resources

		var arr types.Array
		if len(contents) > 0 {
			if openNr == 0 {
				openNr = u.add(streamObject("", []byte("q\n")))
			}
			arr = append(arr, *types.NewIndirectRef(openNr, 0))
			arr = append(arr, contents...)
		}
		arr = append(arr, *types.NewIndirectRef(u.add(streamObject("", stamp.Bytes())), 0))
		dict["Contents"] = arr

		var body bytes.Buffer
		writeObject(&body, dict)
		u.replace(*page.ref, body.Bytes())
	}

	return u.write()
}

// addImage embeds img and its soft mask, returning the image object number.
func (u *update) addImage(img *Image) (int, error) {
	if img.filter == "" || img.colorSpace == "" {
		return 0, fmt.Errorf("%w: image was not decoded", ErrUnsupportedImage)
	}
	smask := ""
	if img.alpha != nil {
		nr := u.add(streamObject(fmt.Sprintf(
			"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode ",
			img.Width, img.Height), img.alpha))
		smask = fmt.Sprintf("/SMask %d 0 R ", nr)
	}
	return u.add(streamObject(fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8 /Filter /%s %s",
		img.Width, img.Height, img.colorSpace, img.filter, smask), img.data)), nil
}

// pageResources returns a private copy of the page's resource dictionary,
// falling back to resources inherited from the page tree.
func (d *Document) pageResources(page types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	if o, found := page.Find("Resources"); found && o != nil {
		res, err := d.ctx.DereferenceDict(o)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res.Clone().(types.Dict), nil
		}
	}
	if inh != nil && inh.Resources != nil {
		return inh.Resources.Clone().(types.Dict), nil
	}
	return types.NewDict(), nil
}

// cloneDictEntry returns a private copy of the dictionary stored under key,
// or an empty dictionary.
func (d *Document) cloneDictEntry(parent types.Dict, key string) (types.Dict, error) {
	o, found := parent.Find(key)
	if !found || o == nil {
		return types.NewDict(), nil
	}
	sub, err := d.ctx.DereferenceDict(o)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return types.NewDict(), nil
	}
	return sub.Clone().(types.Dict), nil
}

// contentRefs lists the page's content streams as indirect references.
func (d *Document) contentRefs(page types.Dict) (types.Array, error) {
	o, found := page.Find("Contents")
	if !found || o == nil {
		return nil, nil
	}
	if ref, ok := asRef(o); ok {
		target, err := d.ctx.Dereference(ref)
		if err != nil {
			return nil, err
		}
		arr, isArray := target.(types.Array)
		if !isArray {
			return types.Array{ref}, nil
		}
		o = arr
	}
	arr, ok := o.(types.Array)
	if !ok {
		return nil, fmt.Errorf("unexpected /Contents of type %T", o)
	}
	out := make(types.Array, 0, len(arr))
	for _, e := range arr {
		ref, ok := asRef(e)
		if !ok {
			return nil, fmt.Errorf("content stream entry of type %T is not a reference", e)
		}
		out = append(out, ref)
	}
	return out, nil
}

func asRef(o types.Object) (types.IndirectRef, bool) {
	switch v := o.(type) {
	case types.IndirectRef:
		return v, true
	case *types.IndirectRef:
		if v != nil {
			return *v, true
		}
	}
	return types.IndirectRef{}, false
}

// freeName returns the first SigN name not yet used in xobjects.
func freeName(xobjects types.Dict) string {
	for i := 1; ; i++ {
		name := "Sig" + strconv.Itoa(i)
		if _, taken := xobjects[name]; !taken {
			return name
		}
	}
}

// formatNumber renders v with at most four decimals and no exponent.
func formatNumber(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
