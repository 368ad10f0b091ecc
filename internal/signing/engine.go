// Package signing turns field placements made in the editor into a signed
// PDF: it validates the fields, converts their boxes to page space, fits the
// signature image into each box and stamps the document, recording a digest
// of the document before and after.
package signing

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/audit"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/pdfdoc"
)

// Request is one signing job.
type Request struct {
	Document       []byte
	SignatureImage []byte
	// FieldImages holds the payloads of image fields, keyed by field id.
	FieldImages map[string][]byte
	Fields      []RawField
	// Pages optionally supplies page geometries. When set, its length must
	// match the document's page count.
	Pages []geometry.Page
}

// Warning flags a field that was adjusted rather than rejected.
type Warning struct {
	FieldID string `json:"fieldId"`
	Message string `json:"message"`
}

// SignedDocument is the result of a successful signing.
type SignedDocument struct {
	Document     []byte
	OriginalHash string
	FinalHash    string
	Algorithm    string
	Warnings     []Warning
	// Stamped counts the fields that produced a mark on the page.
	Stamped int
}

// AuditRecord returns the tamper-evidence record for the signing.
func (s *SignedDocument) AuditRecord(now time.Time) audit.Record {
	return audit.Record{
		OriginalHash: s.OriginalHash,
		FinalHash:    s.FinalHash,
		Algorithm:    s.Algorithm,
		CreatedAt:    now.UTC(),
	}
}

// Engine signs documents. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	hasher audit.Hasher
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHasher selects the digest used for audit hashes.
func WithHasher(h audit.Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine using SHA-256 and the default logger unless
// overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{hasher: audit.DefaultHasher(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Algorithm returns the name of the configured digest.
func (e *Engine) Algorithm() string { return e.hasher.Algorithm() }

// Sign validates req, stamps every raster field and hashes the result. On
// error no document is returned.
func (e *Engine) Sign(req Request) (*SignedDocument, error) {
	originalHash := e.hasher.Sum(req.Document)
	logCtx := e.logger.With("originalHash", originalHash)

	doc, err := pdfdoc.Load(req.Document)
	if err != nil {
		return nil, &Error{Kind: KindDocumentParse, Err: err}
	}

	pages := doc.Geometries()
	if req.Pages != nil {
		if len(req.Pages) != len(pages) {
			return nil, newError(KindValidation, "", "%d page geometries supplied, document has %d page(s)", len(req.Pages), len(pages))
		}
		pages = req.Pages
	}

	assets := Assets{Signature: len(req.SignatureImage) > 0, FieldImages: make(map[string]bool, len(req.FieldImages))}
	for id, data := range req.FieldImages {
		assets.FieldImages[id] = len(data) > 0
	}
	fields, err := Validate(req.Fields, pages, assets)
	if err != nil {
		return nil, err
	}

	placements, warnings, err := e.resolve(fields, pages, req)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logCtx.Warn("Field adjusted", "fieldId", w.FieldID, "reason", w.Message)
	}

	out, err := doc.Apply(placements)
	if err != nil {
		switch {
		case errors.Is(err, pdfdoc.ErrUnsupportedImage):
			return nil, &Error{Kind: KindUnsupportedImageFormat, Err: err}
		default:
			return nil, &Error{Kind: KindDocumentParse, Err: err}
		}
	}

	result := &SignedDocument{
		Document:     out,
		OriginalHash: originalHash,
		FinalHash:    e.hasher.Sum(out),
		Algorithm:    e.hasher.Algorithm(),
		Warnings:     warnings,
		Stamped:      len(placements),
	}
	logCtx.Info("Document signed", "finalHash", result.FinalHash, "fields", len(fields), "stamped", len(placements))
	return result, nil
}

// resolve converts validated fields into page placements. Non-raster fields
// are skipped, boxes are clamped to the page and images are decoded once each.
func (e *Engine) resolve(fields []FieldPlacement, pages []geometry.Page, req Request) ([]pdfdoc.Placement, []Warning, error) {
	images, err := decodeImages(fields, req)
	if err != nil {
		return nil, nil, err
	}

	var (
		placements []pdfdoc.Placement
		warnings   []Warning
	)
	for _, f := range fields {
		img := images.lookup(f)
		if img == nil {
			continue
		}

		page := pages[f.PageIndex]
		box := geometry.ToAbsolute(f.Percent(), page)
		if clamped, changed := geometry.Clamp(box, page); changed {
			warnings = append(warnings, Warning{
				FieldID: f.ID,
				Message: fmt.Sprintf("box extends past the page edge and was clamped to %.2fx%.2f at (%.2f, %.2f)",
					clamped.Width, clamped.Height, clamped.X, clamped.Y),
			})
			box = clamped
		}

		fit := geometry.FitImage(box.Width, box.Height, img.Width, img.Height)
		if fit.Empty() {
			warnings = append(warnings, Warning{FieldID: f.ID, Message: "box has no area; nothing drawn"})
			continue
		}

		placements = append(placements, pdfdoc.Placement{
			PageIndex: f.PageIndex,
			Image:     img,
			Rect:      fit.Place(box),
		})
	}
	return placements, warnings, nil
}

type decodedImages struct {
	signature *pdfdoc.Image
	fields    map[string]*pdfdoc.Image
}

// lookup returns the image drawn for f, or nil for non-raster fields.
func (d decodedImages) lookup(f FieldPlacement) *pdfdoc.Image {
	switch f.Type {
	case FieldSignature:
		return d.signature
	case FieldImage:
		return d.fields[f.ID]
	}
	return nil
}

// decodeImages decodes the signature image and every field image in use,
// each once and in parallel. When several fail, the error of the first field
// in request order is returned.
func decodeImages(fields []FieldPlacement, req Request) (decodedImages, error) {
	type job struct {
		fieldID string
		data    []byte
		img     *pdfdoc.Image
		err     error
	}
	var (
		jobs      []*job
		signature *job
	)
	fieldJobs := make(map[string]*job)
	for _, f := range fields {
		switch f.Type {
		case FieldSignature:
			if signature == nil {
				signature = &job{fieldID: f.ID, data: req.SignatureImage}
				jobs = append(jobs, signature)
			}
		case FieldImage:
			j := &job{fieldID: f.ID, data: req.FieldImages[f.ID]}
			fieldJobs[f.ID] = j
			jobs = append(jobs, j)
		}
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, j := range jobs {
		j := j
		eg.Go(func() error {
			j.img, j.err = decode(j.data, j.fieldID)
			return nil
		})
	}
	_ = eg.Wait() // each job keeps its own error

	out := decodedImages{fields: make(map[string]*pdfdoc.Image, len(fieldJobs))}
	for _, j := range jobs {
		if j.err != nil {
			return decodedImages{}, j.err
		}
	}
	if signature != nil {
		out.signature = signature.img
	}
	for id, j := range fieldJobs {
		out.fields[id] = j.img
	}
	return out, nil
}

func decode(data []byte, fieldID string) (*pdfdoc.Image, error) {
	img, err := pdfdoc.DecodeImage(data)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedImageFormat, FieldID: fieldID, Err: err}
	}
	return img, nil
}
