package pdfdoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/mattetti/filebuffer"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

type pendingObject struct {
	nr   int
	gen  int
	body []byte
}

// update collects the objects of one incremental update section.
type update struct {
	doc     *Document
	next    int
	objects []pendingObject
}

func newUpdate(doc *Document) *update {
	next := 0
	if doc.ctx.Size != nil {
		next = *doc.ctx.Size
	}
	for nr := range doc.ctx.Table {
		if nr+1 > next {
			next = nr + 1
		}
	}
	return &update{doc: doc, next: next}
}

// add appends a new object and returns its number.
func (u *update) add(body []byte) int {
	nr := u.next
	u.next++
	u.objects = append(u.objects, pendingObject{nr: nr, body: body})
	return nr
}

// replace writes a new revision of an existing object.
func (u *update) replace(ref types.IndirectRef, body []byte) {
	u.objects = append(u.objects, pendingObject{
		nr:   ref.ObjectNumber.Value(),
		gen:  ref.GenerationNumber.Value(),
		body: body,
	})
}

// write returns the original bytes followed by the update section.
func (u *update) write() ([]byte, error) {
	buf := filebuffer.New(nil)
	if err := u.writeTo(buf); err != nil {
		return nil, err
	}
	if _, err := buf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return buf.Buff.Bytes(), nil
}

// writeTo writes the original bytes and the update section at the current
// position of w. Xref offsets are taken from w's position, so w must start
// at the beginning of the output file.
func (u *update) writeTo(w io.WriteSeeker) error {
	raw := u.doc.raw
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if n := len(raw); n > 0 && raw[n-1] != '\n' && raw[n-1] != '\r' {
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}

	sort.Slice(u.objects, func(i, j int) bool { return u.objects[i].nr < u.objects[j].nr })

	entries := make([]xrefEntry, 0, len(u.objects)+1)
	for _, obj := range u.objects {
		offset, err := tell(w)
		if err != nil {
			return err
		}
		entries = append(entries, xrefEntry{nr: obj.nr, gen: obj.gen, offset: offset})
		if _, err := fmt.Fprintf(w, "%d %d obj\n", obj.nr, obj.gen); err != nil {
			return err
		}
		if _, err := w.Write(obj.body); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\nendobj\n")); err != nil {
			return err
		}
	}

	if u.doc.xrefStream {
		return u.writeXrefStream(w, entries)
	}
	return u.writeXrefTable(w, entries)
}

func tell(w io.Seeker) (int64, error) {
	return w.Seek(0, io.SeekCurrent)
}

type xrefEntry struct {
	nr     int
	gen    int
	offset int64
}

// subsections groups sorted entries into runs of consecutive object numbers.
func subsections(entries []xrefEntry) [][]xrefEntry {
	var out [][]xrefEntry
	start := 0
	for i := 1; i <= len(entries); i++ {
		if i == len(entries) || entries[i].nr != entries[i-1].nr+1 {
			out = append(out, entries[start:i])
			start = i
		}
	}
	return out
}

func (u *update) writeXrefTable(w io.WriteSeeker, entries []xrefEntry) error {
	xrefOffset, err := tell(w)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	b.WriteString("xref\n")
	for _, sub := range subsections(entries) {
		fmt.Fprintf(&b, "%d %d\n", sub[0].nr, len(sub))
		for _, e := range sub {
			fmt.Fprintf(&b, "%010d %05d n\r\n", e.offset, e.gen)
		}
	}
	b.WriteString("trailer\n")
	b.WriteString(u.trailerDict(u.next))
	fmt.Fprintf(&b, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err = w.Write(b.Bytes())
	return err
}

func (u *update) writeXrefStream(w io.WriteSeeker, entries []xrefEntry) error {
	nr := u.next
	xrefOffset, err := tell(w)
	if err != nil {
		return err
	}
	entries = append(entries, xrefEntry{nr: nr, offset: xrefOffset})
	size := nr + 1

	var rows bytes.Buffer
	var index []string
	for _, sub := range subsections(entries) {
		index = append(index, strconv.Itoa(sub[0].nr), strconv.Itoa(len(sub)))
		for _, e := range sub {
			if e.offset > math.MaxUint32 {
				return fmt.Errorf("%w: offset %d exceeds xref stream field width", ErrMalformed, e.offset)
			}
			rows.WriteByte(1)
			var field [4]byte
			binary.BigEndian.PutUint32(field[:], uint32(e.offset))
			rows.Write(field[:])
			binary.BigEndian.PutUint16(field[:2], uint16(e.gen))
			rows.Write(field[:2])
		}
	}

	data, err := deflate(rows.Bytes())
	if err != nil {
		return err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%d 0 obj\n", nr)
	dict := u.trailerDict(size)
	// Splice the stream keys into the trailer dictionary.
	b.WriteString(dict[:len(dict)-2])
	fmt.Fprintf(&b, "/Type /XRef /W [1 4 2] /Index [%s] /Filter /FlateDecode /Length %d >>\nstream\n",
		joinSpace(index), len(data))
	b.Write(data)
	fmt.Fprintf(&b, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err = w.Write(b.Bytes())
	return err
}

// trailerDict renders the trailer entries shared by both xref forms.
func (u *update) trailerDict(size int) string {
	ctx := u.doc.ctx
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< /Size %d /Root %s ", size, ctx.Root.PDFString())
	if ctx.Info != nil {
		fmt.Fprintf(&b, "/Info %s ", ctx.Info.PDFString())
	}
	if len(ctx.ID) > 0 {
		b.WriteString("/ID ")
		writeObject(&b, ctx.ID)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "/Prev %d >>", u.doc.startXref)
	return b.String()
}

func joinSpace(s []string) string {
	var b bytes.Buffer
	for i, v := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v)
	}
	return b.String()
}

// writeObject serializes o with dictionary keys in sorted order so that
// repeated runs produce identical bytes.
func writeObject(b *bytes.Buffer, o types.Object) {
	switch v := o.(type) {
	case nil:
		b.WriteString("null")
	case types.Dict:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("<<")
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(types.Name(k).PDFString())
			b.WriteByte(' ')
			writeObject(b, v[k])
		}
		b.WriteString(" >>")
	case types.Array:
		b.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeObject(b, e)
		}
		b.WriteByte(']')
	case *types.IndirectRef:
		b.WriteString(v.PDFString())
	default:
		b.WriteString(v.PDFString())
	}
}

// streamObject renders a stream object body. extra holds additional
// dictionary entries, each followed by a space.
func streamObject(extra string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s/Length %d >>\nstream\n", extra, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}
