package signatures

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

const signaturesCollection = "signatures"

// FirestoreStorage keeps one signature record per recipient in a
// "signatures" subcollection under each document record:
//
//	{collection}/{documentID}/signatures/{recipientEmail}
//
// Operations run inside Firestore transactions, which buffer writes and
// require every read to happen before the first write. The Store's
// operations are laid out to respect that ordering.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStorage(client *firestore.Client, collection string) *FirestoreStorage {
	return &FirestoreStorage{client: client, collection: collection}
}

func (f *FirestoreStorage) Update(ctx context.Context, fn func(tx Tx) error) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{storage: f, tx: tx})
	})
}

func (f *FirestoreStorage) View(ctx context.Context, fn func(tx ReadTx) error) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{storage: f, tx: tx})
	}, firestore.ReadOnly)
}

func (f *FirestoreStorage) documentRef(documentID string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(documentID)
}

func (f *FirestoreStorage) recordRef(key RecordKey) *firestore.DocumentRef {
	return f.documentRef(key.DocumentID).Collection(signaturesCollection).Doc(recipientDocID(key.Recipient))
}

// recipientDocID makes a normalized email usable as a Firestore document id.
func recipientDocID(recipient string) string {
	return strings.ReplaceAll(recipient, "/", "_")
}

type firestoreTx struct {
	storage *FirestoreStorage
	tx      *firestore.Transaction
}

func (t *firestoreTx) Record(key RecordKey) (*models.SignatureRecord, error) {
	snap, err := t.tx.Get(t.storage.recordRef(key))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", key.DocumentID, key.Recipient, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to read signature record %s/%s: %w", key.DocumentID, key.Recipient, err)
	}
	var rec models.SignatureRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode signature record %s/%s: %w", key.DocumentID, key.Recipient, err)
	}
	return &rec, nil
}

func (t *firestoreTx) RecordKeys(documentID string) ([]RecordKey, error) {
	iter := t.tx.Documents(t.storage.documentRef(documentID).Collection(signaturesCollection))
	defer iter.Stop()

	var keys []RecordKey
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list signature records of %s: %w", documentID, err)
		}
		var rec models.SignatureRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode signature record %s: %w", snap.Ref.Path, err)
		}
		keys = append(keys, RecordKey{DocumentID: documentID, Recipient: rec.RecipientEmail})
	}
	return keys, nil
}

func (t *firestoreTx) DocumentState(documentID string) (DocumentState, error) {
	snap, err := t.tx.Get(t.storage.documentRef(documentID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return DocumentState{}, nil
		}
		return DocumentState{}, fmt.Errorf("failed to read document %s: %w", documentID, err)
	}
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return DocumentState{}, fmt.Errorf("failed to decode document %s: %w", documentID, err)
	}
	return DocumentState{Known: true, Status: doc.Status, Prior: doc.PriorStatus}, nil
}

func (t *firestoreTx) PutRecord(rec *models.SignatureRecord) error {
	key := RecordKey{DocumentID: rec.DocumentID, Recipient: rec.RecipientEmail}
	if err := t.tx.Set(t.storage.recordRef(key), rec); err != nil {
		return fmt.Errorf("failed to write signature record %s/%s: %w", key.DocumentID, key.Recipient, err)
	}
	return nil
}

func (t *firestoreTx) DeleteRecord(key RecordKey) error {
	if err := t.tx.Delete(t.storage.recordRef(key)); err != nil {
		return fmt.Errorf("failed to delete signature record %s/%s: %w", key.DocumentID, key.Recipient, err)
	}
	return nil
}

func (t *firestoreTx) SetDocumentStatus(documentID, docStatus, prior string) error {
	updates := []firestore.Update{
		{Path: "status", Value: docStatus},
		{Path: "priorStatus", Value: prior},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if err := t.tx.Update(t.storage.documentRef(documentID), updates); err != nil {
		return fmt.Errorf("failed to update status of document %s: %w", documentID, err)
	}
	return nil
}
