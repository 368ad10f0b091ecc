package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/gcp"
)

// ErrDocumentNotFound is returned when no document exists for a pdfId.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentSource loads the unsigned PDF for a document id.
type DocumentSource interface {
	Fetch(ctx context.Context, pdfID string) ([]byte, error)
}

// ArtifactStore persists signed documents.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
	// URI returns where an artifact stored under name can be found.
	URI(name string) string
}

// ArtifactName is the content-addressed object name of a signed document.
func ArtifactName(finalHash string) string {
	return path.Join("signed", finalHash+".pdf")
}

func objectName(pdfID string) (string, error) {
	if pdfID == "" || strings.ContainsAny(pdfID, `/\`) || pdfID == "." || pdfID == ".." {
		return "", fmt.Errorf("invalid pdfId %q", pdfID)
	}
	return pdfID + ".pdf", nil
}

// GCSDocumentSource reads <pdfId>.pdf from a bucket.
type GCSDocumentSource struct {
	bucket *storage.BucketHandle
}

func NewGCSDocumentSource(client *storage.Client, bucket string) *GCSDocumentSource {
	return &GCSDocumentSource{bucket: client.Bucket(bucket)}
}

func (s *GCSDocumentSource) Fetch(ctx context.Context, pdfID string) ([]byte, error) {
	name, err := objectName(pdfID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
	}
	data, err := gcp.ReadObject(ctx, s.bucket, name)
	if errors.Is(err, gcp.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, pdfID)
	}
	return data, err
}

// DirDocumentSource reads <pdfId>.pdf from a local directory.
type DirDocumentSource struct {
	dir string
}

func NewDirDocumentSource(dir string) *DirDocumentSource {
	return &DirDocumentSource{dir: dir}
}

func (s *DirDocumentSource) Fetch(_ context.Context, pdfID string) ([]byte, error) {
	name, err := objectName(pdfID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, pdfID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", pdfID, err)
	}
	return data, nil
}

// GCSArtifactStore writes signed documents to a bucket, retrying transient
// failures with exponential backoff.
type GCSArtifactStore struct {
	bucketName string
	bucket     *storage.BucketHandle
	maxRetries int
	backoff    time.Duration
}

func NewGCSArtifactStore(client *storage.Client, bucket string) *GCSArtifactStore {
	return &GCSArtifactStore{
		bucketName: bucket,
		bucket:     client.Bucket(bucket),
		maxRetries: 4,
		backoff:    time.Second,
	}
}

func (s *GCSArtifactStore) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, name)
}

func (s *GCSArtifactStore) Put(ctx context.Context, name string, data []byte) error {
	backoff := s.backoff
	var lastErr error

	for i := 0; i < s.maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()
			return gcp.SaveToGCSAtomically(writeCtx, s.bucket, name, "application/pdf", data)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", name,
			"attempt", i+1,
			"maxRetries", s.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", name, lastErr)
}

// DirArtifactStore writes signed documents below a local directory.
type DirArtifactStore struct {
	dir string
}

func NewDirArtifactStore(dir string) *DirArtifactStore {
	return &DirArtifactStore{dir: dir}
}

func (s *DirArtifactStore) URI(name string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.dir, filepath.FromSlash(name)))
}

// Put writes the artifact through a temporary file and rename. An existing
// artifact is left untouched.
func (s *DirArtifactStore) Put(_ context.Context, name string, data []byte) error {
	dest := filepath.Join(s.dir, filepath.FromSlash(name))
	if _, err := os.Stat(dest); err == nil {
		slog.Warn("Artifact already exists, skipping write.", "path", dest)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
