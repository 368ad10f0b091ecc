// Package pdfdoc reads PDF documents and appends image stamps to their pages
// as an incremental update, leaving the original bytes untouched.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
)

var (
	// ErrMalformed reports a document that cannot be parsed or updated.
	ErrMalformed = errors.New("malformed pdf")
	// ErrUnsupportedImage reports image bytes that cannot be decoded.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Page describes the visible area of one page. Origin is the lower-left
// corner of the page box in default user space.
type Page struct {
	Number  int // 1-based
	Size    geometry.Page
	OriginX float64
	OriginY float64
	Rotate  int

	ref *types.IndirectRef
}

// Document is a parsed PDF together with the bytes it was read from.
type Document struct {
	raw        []byte
	ctx        *model.Context
	pages      []Page
	startXref  int64
	xrefStream bool
}

// Load parses data. The slice is retained but never modified.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\f\r "), []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrMalformed)
	}

	startXref, err := lastStartXref(data)
	if err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrMalformed, err)
	}
	if ctx.Encrypt != nil {
		return nil, fmt.Errorf("%w: encrypted documents are not supported", ErrMalformed)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: validate: %v", ErrMalformed, err)
	}
	if ctx.Root == nil {
		return nil, fmt.Errorf("%w: no document catalog", ErrMalformed)
	}

	doc := &Document{
		raw:        data,
		ctx:        ctx,
		startXref:  startXref,
		xrefStream: !bytes.HasPrefix(bytes.TrimLeft(data[startXref:], "\x00\t\n\f\r "), []byte("xref")),
	}

	for nr := 1; nr <= ctx.PageCount; nr++ {
		_, ref, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrMalformed, nr, err)
		}
		if ref == nil || inh == nil {
			return nil, fmt.Errorf("%w: page %d has no object reference", ErrMalformed, nr)
		}
		box := inh.CropBox
		if box == nil {
			box = inh.MediaBox
		}
		if box == nil {
			return nil, fmt.Errorf("%w: page %d has no media box", ErrMalformed, nr)
		}
		doc.pages = append(doc.pages, Page{
			Number:  nr,
			Size:    geometry.Page{Width: box.Width(), Height: box.Height()},
			OriginX: box.LL.X,
			OriginY: box.LL.Y,
			Rotate:  inh.Rotate,
			ref:     ref,
		})
	}

	return doc, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns the page boxes in document order.
func (d *Document) Pages() []Page {
	return append([]Page(nil), d.pages...)
}

// Geometries returns the size of every page box in document order.
func (d *Document) Geometries() []geometry.Page {
	out := make([]geometry.Page, len(d.pages))
	for i, p := range d.pages {
		out[i] = p.Size
	}
	return out
}

// lastStartXref returns the byte offset recorded after the final startxref
// keyword.
func lastStartXref(data []byte) (int64, error) {
	i := bytes.LastIndex(data, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("%w: startxref not found", ErrMalformed)
	}
	rest := bytes.TrimLeft(data[i+len("startxref"):], "\x00\t\n\f\r ")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("%w: invalid startxref offset", ErrMalformed)
	}
	return off, nil
}
