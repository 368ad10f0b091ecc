package pdfdoc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/pdfdoc/pdftest"
)

func mustLoad(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return doc
}

func mustImage(t *testing.T, data []byte) *Image {
	t.Helper()
	img, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	return img
}

func TestLoadPages(t *testing.T) {
	data := pdftest.Build(pdftest.Options{},
		pdftest.TextPage("one"),
		pdftest.Page{MediaBox: [4]float64{0, 0, 595, 842}, CropBox: []float64{10, 20, 310, 420}},
	)
	doc := mustLoad(t, data)

	want := []geometry.Page{{Width: 612, Height: 792}, {Width: 300, Height: 400}}
	if diff := cmp.Diff(want, doc.Geometries()); diff != "" {
		t.Errorf("geometries mismatch (-want +got):\n%s", diff)
	}

	pages := doc.Pages()
	if pages[1].OriginX != 10 || pages[1].OriginY != 20 {
		t.Errorf("crop box origin = (%v, %v), want (10, 20)", pages[1].OriginX, pages[1].OriginY)
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("page numbers = %d, %d", pages[0].Number, pages[1].Number)
	}
}

func TestLoadMalformed(t *testing.T) {
	simple := pdftest.Simple()
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("hello world")},
		{"header only", []byte("%PDF-1.4\n")},
		{"truncated", simple[:len(simple)/2]},
		{"bad startxref", bytes.Replace(simple, []byte("startxref\n"), []byte("startxref\n9999999"), 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Load error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestApplyIncrementalUpdate(t *testing.T) {
	original := pdftest.Simple()
	input := bytes.Clone(original)
	doc := mustLoad(t, input)
	sig := mustImage(t, pdftest.PNG(150, 50, false))

	out, err := doc.Apply([]Placement{{
		PageIndex: 0,
		Image:     sig,
		Rect:      geometry.Box{X: 61.2, Y: 563.4, Width: 183.6, Height: 61.2},
	}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !bytes.Equal(input, original) {
		t.Fatal("input buffer was modified")
	}
	if !bytes.HasPrefix(out, original) {
		t.Fatal("original bytes are not a prefix of the output")
	}
	tail := string(out[len(original):])
	if !strings.Contains(tail, "q 183.6 0 0 61.2 61.2 563.4 cm /Sig1 Do Q") {
		t.Errorf("stamp operator missing from update:\n%s", tail)
	}
	if !strings.Contains(tail, "/Prev ") || !strings.HasSuffix(tail, "%%EOF\n") {
		t.Errorf("update section lacks trailer linkage:\n%s", tail)
	}

	updated := mustLoad(t, out)
	if updated.PageCount() != 1 {
		t.Fatalf("page count = %d, want 1", updated.PageCount())
	}
	page, _, _, err := updated.ctx.PageDict(1, false)
	if err != nil {
		t.Fatalf("PageDict: %v", err)
	}
	contents, err := updated.contentRefs(page)
	if err != nil {
		t.Fatalf("contentRefs: %v", err)
	}
	if len(contents) != 3 {
		t.Errorf("contents = %d streams, want 3 (open, original, stamp)", len(contents))
	}
	res, err := updated.pageResources(page, nil)
	if err != nil {
		t.Fatalf("pageResources: %v", err)
	}
	if _, ok := res.Find("Font"); !ok {
		t.Error("existing font resource was lost")
	}
	xobj, err := updated.cloneDictEntry(res, "XObject")
	if err != nil {
		t.Fatalf("XObject: %v", err)
	}
	if _, ok := xobj.Find("Sig1"); !ok {
		t.Errorf("XObject resources = %v, want Sig1", xobj)
	}
}

func TestUpdateWriteToFile(t *testing.T) {
	doc := mustLoad(t, pdftest.Simple())
	u := newUpdate(doc)
	nr := u.add([]byte("<< /Marker true >>"))

	path := filepath.Join(t.TempDir(), "out.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := u.writeTo(f); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	inMemory, err := u.write()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(onDisk, inMemory) {
		t.Fatal("file and buffer output differ")
	}

	// Every entry of the appended xref section points at its object.
	tail := string(onDisk[strings.LastIndex(string(onDisk), "\nxref\n")+len("\nxref\n"):])
	section := strings.Split(tail[:strings.Index(tail, "trailer")], "\n")
	var seen []int
	obj := 0
	for _, line := range section {
		fields := strings.Fields(line)
		switch len(fields) {
		case 2:
			obj, _ = strconv.Atoi(fields[0])
		case 3:
			offset, _ := strconv.Atoi(fields[0])
			want := strconv.Itoa(obj) + " " + strings.TrimLeft(fields[1], "0")
			if fields[1] == "00000" {
				want = strconv.Itoa(obj) + " 0"
			}
			if !bytes.HasPrefix(onDisk[offset:], []byte(want+" obj")) {
				t.Errorf("xref entry for object %d points at %q", obj, onDisk[offset:offset+12])
			}
			seen = append(seen, obj)
			obj++
		}
	}
	if diff := cmp.Diff([]int{nr}, seen); diff != "" {
		t.Errorf("xref objects mismatch (-want +got):\n%s", diff)
	}
	mustLoad(t, onDisk)
}

func TestApplyNoPlacements(t *testing.T) {
	original := pdftest.Simple()
	doc := mustLoad(t, original)

	out, err := doc.Apply(nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(out, original) {
		t.Fatal("no-op apply changed the document")
	}
	out[0] = 'X'
	if original[0] != '%' {
		t.Fatal("no-op apply returned the input buffer itself")
	}
}

func TestApplyDeterministic(t *testing.T) {
	data := pdftest.Build(pdftest.Options{Info: true, ID: true}, pdftest.TextPage("a"), pdftest.TextPage("b"))
	png := pdftest.PNG(40, 20, true)

	run := func() []byte {
		doc := mustLoad(t, data)
		img := mustImage(t, png)
		out, err := doc.Apply([]Placement{
			{PageIndex: 1, Image: img, Rect: geometry.Box{X: 10, Y: 10, Width: 40, Height: 20}},
			{PageIndex: 0, Image: img, Rect: geometry.Box{X: 100.123456, Y: 5, Width: 20, Height: 10}},
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		return out
	}

	first, second := run(), run()
	if !bytes.Equal(first, second) {
		t.Fatal("two runs over the same input produced different bytes")
	}
	tail := string(first[len(data):])
	if !strings.Contains(tail, "/ID [") || !strings.Contains(tail, "/Info ") {
		t.Errorf("trailer did not carry /ID and /Info forward:\n%s", tail)
	}
	if !strings.Contains(tail, "q 20 0 0 10 100.1235 5 cm") {
		t.Errorf("coordinates not rounded to four decimals:\n%s", tail)
	}
}

func TestApplySharesImageAcrossPages(t *testing.T) {
	data := pdftest.Build(pdftest.Options{}, pdftest.TextPage("a"), pdftest.TextPage("b"), pdftest.TextPage("c"))
	doc := mustLoad(t, data)
	img := mustImage(t, pdftest.PNG(10, 10, false))
	other := mustImage(t, pdftest.JPEG(8, 8))

	out, err := doc.Apply([]Placement{
		{PageIndex: 0, Image: img, Rect: geometry.Box{Width: 10, Height: 10}},
		{PageIndex: 2, Image: img, Rect: geometry.Box{Width: 10, Height: 10}},
		{PageIndex: 2, Image: img, Rect: geometry.Box{X: 50, Width: 10, Height: 10}},
		{PageIndex: 2, Image: other, Rect: geometry.Box{X: 100, Width: 8, Height: 8}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tail := string(out[len(data):])
	if n := strings.Count(tail, "/Subtype /Image"); n != 2 {
		t.Errorf("embedded %d images, want 2", n)
	}
	if !strings.Contains(tail, "/Filter /DCTDecode") {
		t.Error("JPEG was not passed through")
	}
	if !strings.Contains(tail, "/Sig2 Do") {
		t.Error("second image on page 3 did not get its own name")
	}

	updated := mustLoad(t, out)
	if updated.PageCount() != 3 {
		t.Fatalf("page count = %d", updated.PageCount())
	}
}

func TestApplyCropBoxOriginAndInheritedResources(t *testing.T) {
	data := pdftest.Build(pdftest.Options{InheritResources: true},
		pdftest.Page{MediaBox: [4]float64{0, 0, 400, 400}, CropBox: []float64{10, 20, 310, 420}, Content: "0 0 m 10 10 l S"},
	)
	doc := mustLoad(t, data)
	img := mustImage(t, pdftest.PNG(3, 1, false))

	out, err := doc.Apply([]Placement{{PageIndex: 0, Image: img, Rect: geometry.Box{X: 0, Y: 0, Width: 30, Height: 10}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Contains(out, []byte("q 30 0 0 10 10 20 cm /Sig1 Do Q")) {
		t.Errorf("stamp not offset by crop box origin:\n%s", out[len(data):])
	}

	updated := mustLoad(t, out)
	page, _, _, err := updated.ctx.PageDict(1, false)
	if err != nil {
		t.Fatalf("PageDict: %v", err)
	}
	res, err := updated.pageResources(page, nil)
	if err != nil {
		t.Fatalf("pageResources: %v", err)
	}
	if _, ok := res.Find("Font"); !ok {
		t.Error("inherited font resource was not copied onto the page")
	}
}

func TestApplyPageWithoutContents(t *testing.T) {
	data := pdftest.Build(pdftest.Options{}, pdftest.Page{MediaBox: pdftest.Letter})
	doc := mustLoad(t, data)
	img := mustImage(t, pdftest.PNG(2, 2, false))

	out, err := doc.Apply([]Placement{{PageIndex: 0, Image: img, Rect: geometry.Box{Width: 2, Height: 2}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tail := string(out[len(data):])
	if strings.Contains(tail, "stream\nq\n") {
		t.Error("wrapping stream written for a page without content")
	}
	if strings.Contains(tail, "stream\nQ\n") {
		t.Error("stamp stream restores a state that was never saved")
	}
	mustLoad(t, out)
}

func TestApplyXRefStream(t *testing.T) {
	data := pdftest.Build(pdftest.Options{XRefStream: true, ID: true}, pdftest.TextPage("x"))
	doc := mustLoad(t, data)
	if !doc.xrefStream {
		t.Fatal("cross-reference stream not detected")
	}
	img := mustImage(t, pdftest.PNG(4, 4, true))

	out, err := doc.Apply([]Placement{{PageIndex: 0, Image: img, Rect: geometry.Box{Width: 4, Height: 4}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tail := string(out[len(data):])
	if !strings.Contains(tail, "/Type /XRef") || strings.Contains(tail, "\nxref\n") {
		t.Errorf("update section does not use a cross-reference stream:\n%q", tail)
	}
	if !strings.Contains(tail, "/SMask ") {
		t.Error("transparent image has no soft mask")
	}
	updated := mustLoad(t, out)
	if updated.PageCount() != 1 {
		t.Fatalf("page count = %d", updated.PageCount())
	}
}

func TestApplyRejectsBadPlacement(t *testing.T) {
	doc := mustLoad(t, pdftest.Simple())
	img := mustImage(t, pdftest.PNG(2, 2, false))

	if _, err := doc.Apply([]Placement{{PageIndex: 1, Image: img}}); !errors.Is(err, ErrMalformed) {
		t.Errorf("out of range page: err = %v", err)
	}
	if _, err := doc.Apply([]Placement{{PageIndex: 0}}); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("missing image: err = %v", err)
	}
}

func TestDecodeImage(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantW     int
		wantH     int
		filter    string
		wantAlpha bool
	}{
		{"opaque png", pdftest.PNG(150, 50, false), 150, 50, "FlateDecode", false},
		{"transparent png", pdftest.PNG(6, 3, true), 6, 3, "FlateDecode", true},
		{"jpeg", pdftest.JPEG(16, 9), 16, 9, "DCTDecode", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := mustImage(t, tt.data)
			got := []any{img.Width, img.Height, img.filter, img.HasAlpha()}
			want := []any{tt.wantW, tt.wantH, tt.filter, tt.wantAlpha}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	for _, bad := range [][]byte{nil, []byte("GIF89a"), []byte("not an image")} {
		if _, err := DecodeImage(bad); !errors.Is(err, ErrUnsupportedImage) {
			t.Errorf("DecodeImage(%q) error = %v, want ErrUnsupportedImage", bad, err)
		}
	}
}

// withSize rewrites the IHDR dimensions of a PNG and fixes up its CRC.
func withSize(data []byte, w, h uint32) []byte {
	out := bytes.Clone(data)
	ihdr := out[8:]
	binary.BigEndian.PutUint32(ihdr[8:], w)
	binary.BigEndian.PutUint32(ihdr[12:], h)
	binary.BigEndian.PutUint32(ihdr[21:], crc32.ChecksumIEEE(ihdr[4:21]))
	return out
}

func TestDecodeImageRejectsOversized(t *testing.T) {
	huge := withSize(pdftest.PNG(1, 1, true), 20000, 20000)

	start := time.Now()
	_, err := DecodeImage(huge)
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("DecodeImage(20000x20000) error = %v, want ErrUnsupportedImage", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("DecodeImage took %v, want rejection before decoding pixels", elapsed)
	}

	// A rewritten header with sane dimensions still decodes.
	if _, err := DecodeImage(withSize(pdftest.PNG(1, 1, true), 1, 1)); err != nil {
		t.Errorf("DecodeImage(1x1) error = %v", err)
	}
}

// opaqueImage hides the concrete type so splitAlpha takes the generic path.
type opaqueImage struct{ image.Image }

func TestSplitAlphaFastPaths(t *testing.T) {
	rect := image.Rect(2, 3, 6, 5)
	nrgba := image.NewNRGBA(rect)
	rgba := image.NewRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 0x80, A: uint8(0xff - 30*(x-2))}
			nrgba.SetNRGBA(x, y, c)
			rgba.Set(x, y, c)
		}
	}
	// A sub-image keeps a stride wider than its rows.
	sub := nrgba.SubImage(image.Rect(3, 3, 5, 5))

	for _, img := range []image.Image{nrgba, rgba, sub} {
		rgb, alpha, opaque := splitAlpha(img)
		wantRGB, wantAlpha, wantOpaque := splitAlpha(opaqueImage{img})
		if diff := cmp.Diff([]any{wantRGB, wantAlpha, wantOpaque}, []any{rgb, alpha, opaque}); diff != "" {
			t.Errorf("%T mismatch (-generic +fast):\n%s", img, diff)
		}
	}

	full := image.NewRGBA(image.Rect(0, 0, 2, 1))
	full.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 0xff})
	full.Set(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 0xff})
	rgb, alpha, opaque := splitAlpha(full)
	if diff := cmp.Diff([]any{[]byte{1, 2, 3, 4, 5, 6}, []byte{0xff, 0xff}, true}, []any{rgb, alpha, opaque}); diff != "" {
		t.Errorf("opaque RGBA mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteObjectSortsKeys(t *testing.T) {
	d := types.Dict{
		"Type":   types.Name("Page"),
		"Annots": types.Array{*types.NewIndirectRef(7, 0), types.Integer(3)},
		"Nested": types.Dict{"B": types.Boolean(true), "A": nil},
	}
	var b bytes.Buffer
	writeObject(&b, d)
	want := "<< /Annots [7 0 R 3] /Nested << /A null /B true >> /Type /Page >>"
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatNumber(t *testing.T) {
	got := []string{formatNumber(0), formatNumber(-0.00001), formatNumber(61.20000000001), formatNumber(1e6), formatNumber(-3.5)}
	want := []string{"0", "0", "61.2", "1000000", "-3.5"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
