package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/audit"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/gcp"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/geometry"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/models"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/signing"
)

type SignerConfig struct {
	ProjectID        string
	SourceBucket     string
	SignedBucket     string
	CollectionName   string
	HashAlgorithm    string
	WorkflowID       string
	WorkflowLocation string
}

func loadSignerConfig() (SignerConfig, error) {
	config := SignerConfig{
		ProjectID:        gcp.GetEnv("PROJECT_ID", ""),
		SourceBucket:     gcp.GetEnv("SOURCE_BUCKET", ""),
		SignedBucket:     gcp.GetEnv("SIGNED_BUCKET", ""),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "signingAudits"),
		HashAlgorithm:    gcp.GetEnv("HASH_ALGORITHM", audit.SHA256),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
	}
	if config.ProjectID == "" {
		return config, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if config.SourceBucket == "" {
		return config, fmt.Errorf("SOURCE_BUCKET environment variable must be set")
	}
	return config, nil
}

// Notifier hands a finished signing off to downstream delivery.
type Notifier interface {
	Trigger(ctx context.Context, payload any) (string, error)
}

// SignerDeps are the collaborators of a SignerFunction. Artifacts and
// Notifier are optional.
type SignerDeps struct {
	Engine    *signing.Engine
	Source    DocumentSource
	Artifacts ArtifactStore
	Audit     audit.Store
	Notifier  Notifier
	Now       func() time.Time
	// Closers are released by Close after the audit store.
	Closers []io.Closer
}

// SignerFunction fetches documents, signs them and records the audit trail.
type SignerFunction struct {
	engine    *signing.Engine
	source    DocumentSource
	artifacts ArtifactStore
	audit     audit.Store
	notifier  Notifier
	now       func() time.Time
	closers   []io.Closer
}

// NewSigner wires a SignerFunction from explicit collaborators.
func NewSigner(d SignerDeps) (*SignerFunction, error) {
	if d.Engine == nil || d.Source == nil || d.Audit == nil {
		return nil, errors.New("signer requires an engine, a document source and an audit store")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &SignerFunction{
		engine:    d.Engine,
		source:    d.Source,
		artifacts: d.Artifacts,
		audit:     d.Audit,
		notifier:  d.Notifier,
		now:       d.Now,
		closers:   d.Closers,
	}, nil
}

// NewSignerFunction builds the Cloud Function flavour from environment
// configuration: documents and artifacts in GCS, audit records in Firestore.
func NewSignerFunction(ctx context.Context) (*SignerFunction, error) {
	config, err := loadSignerConfig()
	if err != nil {
		return nil, err
	}
	hasher, err := audit.NewHasher(config.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	deps := SignerDeps{
		Engine:  signing.NewEngine(signing.WithHasher(hasher)),
		Source:  NewGCSDocumentSource(storageClient, config.SourceBucket),
		Audit:   audit.NewFirestoreStore(firestoreClient, config.CollectionName),
		Closers: []io.Closer{storageClient},
	}
	if config.SignedBucket != "" {
		deps.Artifacts = NewGCSArtifactStore(storageClient, config.SignedBucket)
	}
	if config.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
		if err != nil {
			firestoreClient.Close()
			storageClient.Close()
			return nil, err
		}
		deps.Notifier = trigger
		deps.Closers = append(deps.Closers, trigger)
	}

	f, err := NewSigner(deps)
	if err != nil {
		return nil, err
	}
	slog.Info("Signer logic initialized.", "sourceBucket", config.SourceBucket, "signedBucket", config.SignedBucket, "algorithm", hasher.Algorithm())
	return f, nil
}

// Process signs the document named by req and returns the response payload.
func (f *SignerFunction) Process(ctx context.Context, req *models.SignRequest) (*models.SignResponse, error) {
	logCtx := slog.With("pdfId", req.PDFID, "fields", len(req.Fields))
	logCtx.Info("Processing signing request.")

	if req.PDFID == "" {
		return nil, &signing.Error{Kind: signing.KindValidation, Msg: "pdfId is required"}
	}

	// Decode the inline images before touching storage.
	signature, err := decodeImagePayload(req.SignatureImage)
	if err != nil {
		return nil, &signing.Error{Kind: signing.KindValidation, Msg: "signatureImage is not valid base64", Err: err}
	}
	fieldImages := make(map[string][]byte, len(req.FieldImages))
	for id, payload := range req.FieldImages {
		data, err := decodeImagePayload(payload)
		if err != nil {
			return nil, &signing.Error{Kind: signing.KindValidation, FieldID: id, Msg: "field image is not valid base64", Err: err}
		}
		fieldImages[id] = data
	}
	var pages []geometry.Page
	for _, p := range req.Pages {
		pages = append(pages, geometry.Page{Width: p.Width, Height: p.Height})
	}

	// --- Fetch the unsigned document ---
	document, err := f.source.Fetch(ctx, req.PDFID)
	if err != nil {
		logCtx.Error("Failed to fetch document", "error", err)
		return nil, fmt.Errorf("failed to fetch document %s: %w", req.PDFID, err)
	}

	// --- Stamp and hash ---
	signed, err := f.engine.Sign(signing.Request{
		Document:       document,
		SignatureImage: signature,
		FieldImages:    fieldImages,
		Fields:         req.Fields,
		Pages:          pages,
	})
	if err != nil {
		logCtx.Error("Signing failed", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("originalHash", signed.OriginalHash, "finalHash", signed.FinalHash)

	// --- Persist the audit trail and the signed artifact ---
	record := signed.AuditRecord(f.now())
	record.ID = uuid.NewString()
	record.DocumentID = req.PDFID
	record.FieldCount = len(req.Fields)

	artifactName := ArtifactName(signed.FinalHash)
	if f.artifacts != nil {
		record.SignedURI = f.artifacts.URI(artifactName)
	}

	// An artifact is only published once its audit record exists.
	if err := f.audit.Append(ctx, record); err != nil {
		logCtx.Error("Failed to append audit record", "error", err)
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}
	if f.artifacts != nil {
		if err := f.artifacts.Put(ctx, artifactName, signed.Document); err != nil {
			logCtx.Error("Failed to store signed document", "error", err, "auditId", record.ID)
			return nil, fmt.Errorf("failed to store signed document: %w", err)
		}
	}

	// Delivery is best effort; the signing itself already succeeded.
	if f.notifier != nil {
		payload := models.DeliveryPayload{DocumentID: req.PDFID, FinalHash: signed.FinalHash, SignedURI: record.SignedURI}
		if execution, err := f.notifier.Trigger(ctx, payload); err != nil {
			logCtx.Warn("Failed to trigger delivery workflow", "error", err)
		} else {
			logCtx.Info("Delivery workflow triggered.", "execution", execution)
		}
	}

	logCtx.Info("Signing complete.", "auditId", record.ID, "stamped", signed.Stamped)
	return &models.SignResponse{
		Status:    "success",
		SignedPDF: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(signed.Document),
		Audit: models.AuditSummary{
			OriginalHash: signed.OriginalHash,
			FinalHash:    signed.FinalHash,
			Algorithm:    signed.Algorithm,
		},
		SignedURI: record.SignedURI,
		Warnings:  signed.Warnings,
	}, nil
}

// Close releases the audit store and any clients owned by the signer.
func (f *SignerFunction) Close() error {
	errs := []error{f.audit.Close()}
	for _, c := range f.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// decodeImagePayload accepts raw base64 or a data URI. An empty payload
// decodes to nil.
func decodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, errors.New("data URI is not base64 encoded")
		}
		payload = payload[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}
