package audit

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreStore keeps audit records as documents in a Firestore collection,
// one document per record keyed by its ID.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore wraps client. The store owns the client and closes it on
// Close.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("audit record has no id")
	}
	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to create audit document %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FirestoreStore) FindByFinalHash(ctx context.Context, finalHash string) (*Record, error) {
	iter := s.client.Collection(s.collection).
		Where("finalHash", "==", finalHash).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode audit document %s: %w", snap.Ref.ID, err)
	}
	return &rec, nil
}

func (s *FirestoreStore) Close() error { return s.client.Close() }
