package signatures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// AllRecipients addresses every recipient of a document in a clear call.
const AllRecipients = "ALL"

var (
	ErrRecordNotFound    = errors.New("signature record not found")
	ErrPlacementNotFound = errors.New("signature placement not found")
)

// ValidationError reports a signature request that cannot be applied as given.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError reports a stale write: the version the writer presented no
// longer matches the stored record.
type ConflictError struct {
	Key       RecordKey
	Presented int64
	Current   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stale write on %s/%s: presented version %d, current version %d",
		e.Key.DocumentID, e.Key.Recipient, e.Presented, e.Current)
}

// DocumentState is a snapshot of a document record's signing status.
// Known is false when no record exists for the document; the status machine
// then simply stays out of the way.
type DocumentState struct {
	Known  bool
	Status string
	Prior  string
}

// ReadTx exposes the reads an operation may perform.
type ReadTx interface {
	// Record returns the record under key or ErrRecordNotFound.
	Record(key RecordKey) (*models.SignatureRecord, error)
	// RecordKeys lists every signature record key of a document.
	RecordKeys(documentID string) ([]RecordKey, error)
	// DocumentState reports the document's signing status.
	DocumentState(documentID string) (DocumentState, error)
}

// Tx adds the writes. Implementations buffer writes and commit them only if
// the operation callback returns nil, so a failed operation leaves nothing
// behind. All reads must happen before the first write.
type Tx interface {
	ReadTx
	PutRecord(rec *models.SignatureRecord) error
	DeleteRecord(key RecordKey) error
	SetDocumentStatus(documentID, status, prior string) error
}

// Storage is the persistence seam for signature records. Update runs fn as
// one atomic read-modify-write scope; View runs fn read-only.
type Storage interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx ReadTx) error) error
}

// Store applies signature operations on top of a Storage. All writes go
// through whole-record replacement with optimistic versioning: the stored
// version increments on every successful write, and a caller that presents a
// non-zero expected version gets a ConflictError when it is stale.
type Store struct {
	storage Storage
	clock   func() time.Time
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage, clock: time.Now}
}

// ReplaceAll swaps the full placement set of one record in a single write.
// An empty set removes the record. The first write for a document flips its
// status to SIGNED; removing the last record flips it back to the status it
// had before signing. Returns the stored record, or nil when the write
// removed it.
func (s *Store) ReplaceAll(ctx context.Context, documentID, recipientEmail string, placements []models.SignaturePlacement, expectedVersion int64) (*models.SignatureRecord, []string, error) {
	key, err := NewRecordKey(documentID, recipientEmail)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock().UTC()
	kept, warnings := SanitizePlacements(placements, now)
	if len(placements) > 0 && len(kept) == 0 {
		return nil, warnings, &ValidationError{Reason: "every placement in the request failed validation"}
	}

	var result *models.SignatureRecord
	err = s.storage.Update(ctx, func(tx Tx) error {
		existing, err := recordOrNil(tx, key)
		if err != nil {
			return err
		}
		if err := checkVersion(key, existing, expectedVersion); err != nil {
			return err
		}

		if len(kept) == 0 {
			if existing == nil {
				// Clearing what is not there is a no-op, not an error.
				return nil
			}
			return s.removeRecord(tx, key)
		}

		state, err := tx.DocumentState(key.DocumentID)
		if err != nil {
			return err
		}

		rec := &models.SignatureRecord{
			SchemaVersion:  models.SignatureSchemaVersion,
			DocumentID:     key.DocumentID,
			RecipientEmail: key.Recipient,
			Status:         models.RecordStatusSigned,
			SignedAt:       now,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
			Placements:     kept,
		}
		if existing != nil {
			rec.CreatedAt = existing.CreatedAt
			if !existing.SignedAt.IsZero() {
				rec.SignedAt = existing.SignedAt
			}
			rec.Version = existing.Version + 1
		}

		if err := tx.PutRecord(rec); err != nil {
			return err
		}
		if state.Known && state.Status != models.StatusSigned {
			if err := tx.SetDocumentStatus(key.DocumentID, models.StatusSigned, state.Status); err != nil {
				return err
			}
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}
	return result, warnings, nil
}

// UpdateOne patches a single placement in place and bumps the record version.
func (s *Store) UpdateOne(ctx context.Context, documentID, recipientEmail, placementID string, patch models.PlacementPatch, expectedVersion int64) (*models.SignatureRecord, error) {
	key, err := NewRecordKey(documentID, recipientEmail)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(placementID) == "" {
		return nil, &ValidationError{Reason: "placement id is required"}
	}

	var result *models.SignatureRecord
	err = s.storage.Update(ctx, func(tx Tx) error {
		existing, err := tx.Record(key)
		if err != nil {
			return err
		}
		if err := checkVersion(key, existing, expectedVersion); err != nil {
			return err
		}
		idx := placementIndex(existing, placementID)
		if idx < 0 {
			return fmt.Errorf("placement %s on %s/%s: %w", placementID, key.DocumentID, key.Recipient, ErrPlacementNotFound)
		}

		updated := cloneRecord(existing)
		if err := ApplyPatch(&updated.Placements[idx], patch); err != nil {
			return err
		}
		updated.Version++
		updated.UpdatedAt = s.clock().UTC()
		if err := tx.PutRecord(updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteOne removes a single placement. Removing the last placement removes
// the whole record, exactly as a replace-all with an empty set would.
// Returns the remaining record, or nil when the record is gone.
func (s *Store) DeleteOne(ctx context.Context, documentID, recipientEmail, placementID string, expectedVersion int64) (*models.SignatureRecord, error) {
	key, err := NewRecordKey(documentID, recipientEmail)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(placementID) == "" {
		return nil, &ValidationError{Reason: "placement id is required"}
	}

	var result *models.SignatureRecord
	err = s.storage.Update(ctx, func(tx Tx) error {
		existing, err := tx.Record(key)
		if err != nil {
			return err
		}
		if err := checkVersion(key, existing, expectedVersion); err != nil {
			return err
		}
		idx := placementIndex(existing, placementID)
		if idx < 0 {
			return fmt.Errorf("placement %s on %s/%s: %w", placementID, key.DocumentID, key.Recipient, ErrPlacementNotFound)
		}

		if len(existing.Placements) == 1 {
			return s.removeRecord(tx, key)
		}

		updated := cloneRecord(existing)
		updated.Placements = append(updated.Placements[:idx], updated.Placements[idx+1:]...)
		updated.Version++
		updated.UpdatedAt = s.clock().UTC()
		if err := tx.PutRecord(updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClearAll removes the record of one recipient, or of every recipient when
// recipient is AllRecipients. Clearing records that do not exist is a no-op.
// Returns the number of records removed.
func (s *Store) ClearAll(ctx context.Context, documentID, recipient string) (int, error) {
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return 0, &ValidationError{Reason: "document id is required"}
	}

	removed := 0
	if recipient == AllRecipients {
		err := s.storage.Update(ctx, func(tx Tx) error {
			keys, err := tx.RecordKeys(docID)
			if err != nil {
				return err
			}
			state, err := tx.DocumentState(docID)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := tx.DeleteRecord(k); err != nil {
					return err
				}
			}
			if len(keys) > 0 {
				if err := restorePriorStatus(tx, docID, state); err != nil {
					return err
				}
			}
			removed = len(keys)
			return nil
		})
		return removed, err
	}

	key, err := NewRecordKey(docID, recipient)
	if err != nil {
		return 0, err
	}
	err = s.storage.Update(ctx, func(tx Tx) error {
		existing, err := recordOrNil(tx, key)
		if err != nil || existing == nil {
			return err
		}
		if err := s.removeRecord(tx, key); err != nil {
			return err
		}
		removed = 1
		return nil
	})
	return removed, err
}

// Get returns the record under (documentID, recipientEmail), or nil when the
// recipient has not signed. Absence is a normal answer here, not an error.
func (s *Store) Get(ctx context.Context, documentID, recipientEmail string) (*models.SignatureRecord, error) {
	key, err := NewRecordKey(documentID, recipientEmail)
	if err != nil {
		return nil, err
	}

	var result *models.SignatureRecord
	err = s.storage.View(ctx, func(tx ReadTx) error {
		rec, err := tx.Record(key)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return nil
			}
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// removeRecord deletes the record under key and, when it was the document's
// last one, hands the document back to the status it had before signing.
// The key's record must exist.
func (s *Store) removeRecord(tx Tx, key RecordKey) error {
	keys, err := tx.RecordKeys(key.DocumentID)
	if err != nil {
		return err
	}
	state, err := tx.DocumentState(key.DocumentID)
	if err != nil {
		return err
	}
	if err := tx.DeleteRecord(key); err != nil {
		return err
	}
	if len(keys) == 1 && keys[0] == key {
		return restorePriorStatus(tx, key.DocumentID, state)
	}
	return nil
}

func restorePriorStatus(tx Tx, documentID string, state DocumentState) error {
	if !state.Known || state.Status != models.StatusSigned {
		return nil
	}
	prior := state.Prior
	if prior == "" {
		prior = models.StatusReady
	}
	return tx.SetDocumentStatus(documentID, prior, "")
}

func recordOrNil(tx ReadTx, key RecordKey) (*models.SignatureRecord, error) {
	rec, err := tx.Record(key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func checkVersion(key RecordKey, existing *models.SignatureRecord, expected int64) error {
	if expected == 0 {
		return nil
	}
	var current int64
	if existing != nil {
		current = existing.Version
	}
	if current != expected {
		return &ConflictError{Key: key, Presented: expected, Current: current}
	}
	return nil
}

func placementIndex(rec *models.SignatureRecord, placementID string) int {
	for i := range rec.Placements {
		if rec.Placements[i].ID == placementID {
			return i
		}
	}
	return -1
}
