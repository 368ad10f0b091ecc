// Package pdftest builds small, well-formed PDF documents and raster images
// for tests. Cross-reference offsets are computed exactly so that strict
// readers accept the output.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
)

// Letter is the size of a US Letter page in points.
var Letter = [4]float64{0, 0, 612, 792}

// Page describes one page of a generated document.
type Page struct {
	MediaBox [4]float64
	CropBox  []float64 // optional, four numbers
	Content  string    // content stream; empty means no /Contents entry
}

// Options controls document-level structure.
type Options struct {
	XRefStream       bool // cross-reference stream instead of a classic table
	InheritResources bool // put /Resources on the page tree node instead of each page
	Info             bool
	ID               bool
}

// TextPage returns a Letter page that draws a line of text.
func TextPage(text string) Page {
	return Page{
		MediaBox: Letter,
		Content:  "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET",
	}
}

// Simple returns a one-page Letter document with a classic xref table.
func Simple() []byte {
	return Build(Options{}, TextPage("Hello"))
}

// Build assembles a document with the given pages.
func Build(opts Options, pages ...Page) []byte {
	var objects []string

	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // filled in once the page tree exists
	tree := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font)

	info := 0
	if opts.Info {
		info = add("<< /Producer (pdftest) /Title (Fixture) >>")
	}

	var kids []string
	for _, p := range pages {
		contents := ""
		if p.Content != "" {
			nr := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.Content), p.Content))
			contents = fmt.Sprintf(" /Contents %d 0 R", nr)
		}
		crop := ""
		if len(p.CropBox) == 4 {
			crop = " /CropBox " + rect(p.CropBox[0], p.CropBox[1], p.CropBox[2], p.CropBox[3])
		}
		res := " /Resources " + resources
		if opts.InheritResources {
			res = ""
		}
		nr := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox %s%s%s%s >>",
			tree, rect(p.MediaBox[0], p.MediaBox[1], p.MediaBox[2], p.MediaBox[3]), crop, res, contents))
		kids = append(kids, fmt.Sprintf("%d 0 R", nr))
	}

	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree)
	treeRes := ""
	if opts.InheritResources {
		treeRes = " /Resources " + resources
	}
	objects[tree-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", strings.Join(kids, " "), len(kids), treeRes)

	var b bytes.Buffer
	if opts.XRefStream {
		b.WriteString("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n")
	} else {
		b.WriteString("%PDF-1.4\n")
	}

	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	trailer := fmt.Sprintf("/Root %d 0 R", catalog)
	if info > 0 {
		trailer += fmt.Sprintf(" /Info %d 0 R", info)
	}
	if opts.ID {
		trailer += " /ID [<00112233445566778899aabbccddeeff> <00112233445566778899aabbccddeeff>]"
	}

	xrefOffset := b.Len()
	if opts.XRefStream {
		self := len(objects) + 1
		offsets = append(offsets, xrefOffset)
		var rows bytes.Buffer
		rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
		for nr := 1; nr <= self; nr++ {
			var field [4]byte
			rows.WriteByte(1)
			binary.BigEndian.PutUint32(field[:], uint32(offsets[nr]))
			rows.Write(field[:])
			rows.Write([]byte{0, 0})
		}
		data := deflate(rows.Bytes())
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] %s /Filter /FlateDecode /Length %d >>\nstream\n",
			self, self+1, trailer, len(data))
		b.Write(data)
		b.WriteString("\nendstream\nendobj\n")
	} else {
		fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
		b.WriteString("0000000000 65535 f \n")
		for nr := 1; nr <= len(objects); nr++ {
			fmt.Fprintf(&b, "%010d 00000 n \n", offsets[nr])
		}
		fmt.Fprintf(&b, "trailer\n<< /Size %d %s >>\n", len(objects)+1, trailer)
	}
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	return b.Bytes()
}

func rect(llx, lly, urx, ury float64) string {
	return fmt.Sprintf("[%g %g %g %g]", llx, lly, urx, ury)
}

func deflate(p []byte) []byte {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	w.Write(p)
	w.Close()
	return b.Bytes()
}

// PNG encodes a w x h image. With alpha set, the left half is transparent.
func PNG(w, h int, alpha bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(0xff)
			if alpha && x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 0x10, G: 0x20, B: 0x80, A: a})
		}
	}
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		panic(err)
	}
	return b.Bytes()
}

// JPEG encodes an opaque w x h image.
func JPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	var b bytes.Buffer
	if err := jpeg.Encode(&b, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return b.Bytes()
}
