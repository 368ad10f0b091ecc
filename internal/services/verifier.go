package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/audit"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/gcp"
	"github.com/AbhiramKommanapeddi/BoolFormsproject/internal/models"
)

type VerifierConfig struct {
	ProjectID      string
	CollectionName string
	HashAlgorithm  string
	ObjectPrefix   string
}

func loadVerifierConfig() (VerifierConfig, error) {
	config := VerifierConfig{
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "signingAudits"),
		HashAlgorithm:  gcp.GetEnv("HASH_ALGORITHM", audit.SHA256),
		ObjectPrefix:   gcp.GetEnv("SIGNED_PREFIX", "signed/"),
	}
	if config.ProjectID == "" {
		return config, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	return config, nil
}

// GCSEvent is the subset of a storage object event the functions need.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// VerifierFunction checks documents against the audit trail.
type VerifierFunction struct {
	// hashers holds the configured algorithm first, then the other
	// supported ones, so records written under an earlier HASH_ALGORITHM
	// still verify.
	hashers       []audit.Hasher
	store         audit.Store
	storageClient *storage.Client
	prefix        string
}

// NewVerifier returns a verifier over store. Documents are hashed with
// hasher first and then with every other supported algorithm.
func NewVerifier(hasher audit.Hasher, store audit.Store) *VerifierFunction {
	hashers := []audit.Hasher{hasher}
	for _, name := range audit.Algorithms() {
		if name == hasher.Algorithm() {
			continue
		}
		h, err := audit.NewHasher(name)
		if err != nil {
			continue
		}
		hashers = append(hashers, h)
	}
	return &VerifierFunction{hashers: hashers, store: store}
}

// NewVerifierFunction builds the Cloud Function flavour from environment
// configuration.
func NewVerifierFunction(ctx context.Context) (*VerifierFunction, error) {
	config, err := loadVerifierConfig()
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

	v := NewVerifier(hasher, audit.NewFirestoreStore(firestoreClient, config.CollectionName))
	v.storageClient = storageClient
	v.prefix = config.ObjectPrefix
	slog.Info("Verifier logic initialized.", "collection", config.CollectionName, "algorithm", hasher.Algorithm())
	return v, nil
}

// Verify hashes data and looks up the signing that produced it. Each
// supported algorithm is tried in turn and a record only matches when it was
// written with the algorithm that produced the hash.
func (v *VerifierFunction) Verify(ctx context.Context, data []byte) (*models.VerifyResponse, error) {
	primary := v.hashers[0]
	miss := &models.VerifyResponse{Verified: false, Hash: primary.Sum(data), Algorithm: primary.Algorithm()}

	for i, hasher := range v.hashers {
		hash := miss.Hash
		if i > 0 {
			hash = hasher.Sum(data)
		}
		rec, err := v.store.FindByFinalHash(ctx, hash)
		if errors.Is(err, audit.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up audit record: %w", err)
		}
		if rec.Algorithm != "" && rec.Algorithm != hasher.Algorithm() {
			continue
		}
		return &models.VerifyResponse{
			Verified:  true,
			Hash:      hash,
			Algorithm: hasher.Algorithm(),
			Record: &models.AuditRecord{
				ID:           rec.ID,
				DocumentID:   rec.DocumentID,
				OriginalHash: rec.OriginalHash,
				FinalHash:    rec.FinalHash,
				Algorithm:    rec.Algorithm,
				FieldCount:   rec.FieldCount,
				SignedURI:    rec.SignedURI,
				CreatedAt:    rec.CreatedAt,
			},
		}, nil
	}
	return miss, nil
}

// Process verifies a newly finalized object in the signed bucket. Objects
// outside the signed prefix are ignored. A document without a matching audit
// record is logged, not returned as an error, so the event is not retried.
func (v *VerifierFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if v.storageClient == nil {
		return errors.New("verifier has no storage client")
	}
	if !strings.HasPrefix(e.Name, v.prefix) || !strings.HasSuffix(e.Name, ".pdf") {
		logCtx.Info("Skipping object outside the signed prefix.")
		return nil
	}

	data, err := gcp.ReadObject(ctx, v.storageClient.Bucket(e.Bucket), e.Name)
	if err != nil {
		logCtx.Error("Failed to download signed PDF", "error", err)
		return err
	}

	res, err := v.Verify(ctx, data)
	if err != nil {
		logCtx.Error("Verification failed", "error", err)
		return err
	}
	logCtx = logCtx.With("hash", res.Hash)
	if !res.Verified {
		logCtx.Warn("Signed object has no matching audit record.")
		return nil
	}
	if want := ArtifactName(res.Hash); e.Name != want {
		logCtx.Warn("Object name does not match its content hash.", "expected", want)
	}
	logCtx.Info("Signed object verified.", "auditId", res.Record.ID, "documentId", res.Record.DocumentID)
	return nil
}

// Close releases the audit store and storage client.
func (v *VerifierFunction) Close() error {
	err := v.store.Close()
	if v.storageClient != nil {
		err = errors.Join(err, v.storageClient.Close())
	}
	return err
}
