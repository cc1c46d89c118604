package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// ErrDocumentNotFound reports a commit against a document id that has no
// Firestore record.
var ErrDocumentNotFound = errors.New("document record not found")

// RevisionConflictError reports a stale transform: the revision the caller
// presented no longer matches the stored document.
type RevisionConflictError struct {
	DocumentID string
	Presented  int64
	Current    int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("stale transform on document %s: presented revision %d, current revision %d",
		e.DocumentID, e.Presented, e.Current)
}

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// DocumentIndex updates document records in Firestore as transforms land.
type DocumentIndex struct {
	client     *firestore.Client
	collection string
}

func NewDocumentIndex(client *firestore.Client, collection string) *DocumentIndex {
	return &DocumentIndex{client: client, collection: collection}
}

// CommitRevision records a new document revision transactionally: it bumps
// the revision counter, stores the new page count and points the record at
// the newly written object. When the caller presents a non-zero expected
// revision that no longer matches, the commit fails with a
// RevisionConflictError and nothing is written.
func (x *DocumentIndex) CommitRevision(ctx context.Context, documentID string, expectedRevision int64, pageCount int, location string) (int64, error) {
	ref := x.client.Collection(x.collection).Doc(documentID)

	var newRevision int64
	err := x.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("document %s: %w", documentID, ErrDocumentNotFound)
			}
			return fmt.Errorf("failed to read document %s: %w", documentID, err)
		}
		var doc models.Document
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to decode document %s: %w", documentID, err)
		}
		if expectedRevision > 0 && doc.Revision != expectedRevision {
			return &RevisionConflictError{DocumentID: documentID, Presented: expectedRevision, Current: doc.Revision}
		}

		newRevision = doc.Revision + 1
		updates := []firestore.Update{
			{Path: "revision", Value: newRevision},
			{Path: "pageCount", Value: pageCount},
			{Path: "latestObject", Value: location},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return 0, err
	}
	return newRevision, nil
}
