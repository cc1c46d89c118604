package signatures

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// MemoryStorage keeps signature records in process memory. It backs tests and
// local runs. Writes made inside Update are buffered and only committed when
// the callback succeeds, matching the transactional contract of the Firestore
// implementation.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[RecordKey]*models.SignatureRecord
	docs    map[string]DocumentState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[RecordKey]*models.SignatureRecord),
		docs:    make(map[string]DocumentState),
	}
}

// SeedDocument registers a document status so the signing status machine has
// a record to flip. Unknown documents are tolerated by the store, so seeding
// is optional.
func (m *MemoryStorage) SeedDocument(documentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[documentID] = DocumentState{Known: true, Status: status}
}

// DocumentStateFor reports the current state of a seeded document.
func (m *MemoryStorage) DocumentStateFor(documentID string) DocumentState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs[documentID]
}

func (m *MemoryStorage) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{storage: m}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryStorage) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{storage: m})
}

type statusWrite struct {
	documentID string
	status     string
	prior      string
}

// memoryTx reads committed state and buffers writes until commit.
type memoryTx struct {
	storage      *MemoryStorage
	putRecords   []*models.SignatureRecord
	delRecords   []RecordKey
	statusWrites []statusWrite
}

func (t *memoryTx) Record(key RecordKey) (*models.SignatureRecord, error) {
	rec, ok := t.storage.records[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", key.DocumentID, key.Recipient, ErrRecordNotFound)
	}
	return cloneRecord(rec), nil
}

func (t *memoryTx) RecordKeys(documentID string) ([]RecordKey, error) {
	var keys []RecordKey
	for k := range t.storage.records {
		if k.DocumentID == documentID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Recipient < keys[j].Recipient })
	return keys, nil
}

func (t *memoryTx) DocumentState(documentID string) (DocumentState, error) {
	return t.storage.docs[documentID], nil
}

func (t *memoryTx) PutRecord(rec *models.SignatureRecord) error {
	t.putRecords = append(t.putRecords, cloneRecord(rec))
	return nil
}

func (t *memoryTx) DeleteRecord(key RecordKey) error {
	t.delRecords = append(t.delRecords, key)
	return nil
}

func (t *memoryTx) SetDocumentStatus(documentID, status, prior string) error {
	t.statusWrites = append(t.statusWrites, statusWrite{documentID: documentID, status: status, prior: prior})
	return nil
}

func (t *memoryTx) commit() {
	for _, key := range t.delRecords {
		delete(t.storage.records, key)
	}
	for _, rec := range t.putRecords {
		key := RecordKey{DocumentID: rec.DocumentID, Recipient: rec.RecipientEmail}
		t.storage.records[key] = rec
	}
	for _, w := range t.statusWrites {
		t.storage.docs[w.documentID] = DocumentState{Known: true, Status: w.status, Prior: w.prior}
	}
}
