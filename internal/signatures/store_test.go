package signatures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

const (
	testDoc       = "doc-1"
	testRecipient = "signer@example.com"
)

func newTestStore(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	storage.SeedDocument(testDoc, models.StatusReady)
	store := NewStore(storage)
	store.clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return store, storage
}

func TestReplaceAllCreatesRecordAndSignsDocument(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	rec, warnings, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{
		validPlacement("a"), validPlacement("b"),
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, models.RecordStatusSigned, rec.Status)
	assert.Equal(t, models.SignatureSchemaVersion, rec.SchemaVersion)
	assert.Len(t, rec.Placements, 2)
	assert.False(t, rec.SignedAt.IsZero())

	state := storage.DocumentStateFor(testDoc)
	assert.Equal(t, models.StatusSigned, state.Status)
	assert.Equal(t, models.StatusReady, state.Prior)
}

func TestReplaceAllRewritesWholeSetAndBumpsVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	store.clock = func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}
	second, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{
		validPlacement("x"), validPlacement("y"),
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(2), second.Version)
	require.Len(t, second.Placements, 2)
	assert.Equal(t, "x", second.Placements[0].ID)

	// First-signing times survive the rewrite.
	assert.Equal(t, first.SignedAt, second.SignedAt)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestReplaceAllStaleVersionConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)
	_, _, err = store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("b")}, 1)
	require.NoError(t, err)

	// A writer still holding version 1 must not clobber version 2.
	_, _, err = store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("c")}, 1)
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Presented)
	assert.Equal(t, int64(2), conflict.Current)

	// The stored record is untouched.
	rec, err := store.Get(ctx, testDoc, testRecipient)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, "b", rec.Placements[0].ID)
}

func TestReplaceAllEmptyRemovesRecordAndRestoresStatus(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSigned, storage.DocumentStateFor(testDoc).Status)

	rec, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, rec)

	got, err := store.Get(ctx, testDoc, testRecipient)
	require.NoError(t, err)
	assert.Nil(t, got)

	state := storage.DocumentStateFor(testDoc)
	assert.Equal(t, models.StatusReady, state.Status)
	assert.Empty(t, state.Prior)
}

func TestReplaceAllEmptyOnAbsentRecordIsNoOp(t *testing.T) {
	store, storage := newTestStore(t)

	rec, warnings, err := store.ReplaceAll(context.Background(), testDoc, testRecipient, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, warnings)
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Status)
}

func TestReplaceAllKeepsValidDropsInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	bad := validPlacement("bad")
	bad.Content = ""

	rec, warnings, err := store.ReplaceAll(context.Background(), testDoc, testRecipient,
		[]models.SignaturePlacement{bad, validPlacement("good")}, 0)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Len(t, rec.Placements, 1)
	assert.Equal(t, "good", rec.Placements[0].ID)
}

func TestReplaceAllFailsWhenNothingSurvives(t *testing.T) {
	store, storage := newTestStore(t)

	bad := validPlacement("bad")
	bad.Content = ""

	_, warnings, err := store.ReplaceAll(context.Background(), testDoc, testRecipient,
		[]models.SignaturePlacement{bad}, 0)
	require.Error(t, err)
	assert.Len(t, warnings, 1)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	// Nothing was written, the document never flipped to SIGNED.
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Status)
}

func TestUpdateOnePatchesPlacement(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{
		validPlacement("a"), validPlacement("b"),
	}, 0)
	require.NoError(t, err)

	page := 5
	x := 77.0
	rec, err := store.UpdateOne(ctx, testDoc, testRecipient, "b", models.PlacementPatch{Page: &page, X: &x}, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), rec.Version)
	require.Len(t, rec.Placements, 2)
	assert.Equal(t, 5, rec.Placements[1].Page)
	assert.Equal(t, 77.0, rec.Placements[1].X)

	// The sibling placement is untouched.
	assert.Equal(t, 1, rec.Placements[0].Page)
}

func TestUpdateOneUnknownPlacement(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	x := 1.0
	_, err = store.UpdateOne(ctx, testDoc, testRecipient, "nope", models.PlacementPatch{X: &x}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlacementNotFound))
}

func TestUpdateOneUnknownRecord(t *testing.T) {
	store, _ := newTestStore(t)

	x := 1.0
	_, err := store.UpdateOne(context.Background(), testDoc, "ghost@example.com", "a", models.PlacementPatch{X: &x}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestUpdateOneStaleVersionConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	x := 1.0
	_, err = store.UpdateOne(ctx, testDoc, testRecipient, "a", models.PlacementPatch{X: &x}, 7)
	require.Error(t, err)

	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateOneBadPatchLeavesRecordUntouched(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	badPage := -2
	_, err = store.UpdateOne(ctx, testDoc, testRecipient, "a", models.PlacementPatch{Page: &badPage}, 0)
	require.Error(t, err)

	rec, err := store.Get(ctx, testDoc, testRecipient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, 1, rec.Placements[0].Page)
}

func TestDeleteOneRemovesSinglePlacement(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{
		validPlacement("a"), validPlacement("b"),
	}, 0)
	require.NoError(t, err)

	rec, err := store.DeleteOne(ctx, testDoc, testRecipient, "a", 1)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.Version)
	require.Len(t, rec.Placements, 1)
	assert.Equal(t, "b", rec.Placements[0].ID)

	// Still signed: one placement remains.
	assert.Equal(t, models.StatusSigned, storage.DocumentStateFor(testDoc).Status)
}

func TestDeleteOneLastPlacementRemovesRecord(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	rec, err := store.DeleteOne(ctx, testDoc, testRecipient, "a", 0)
	require.NoError(t, err)
	assert.Nil(t, rec)

	got, err := store.Get(ctx, testDoc, testRecipient)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Status)
}

func TestDeleteOneUnknownPlacement(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	_, err = store.DeleteOne(ctx, testDoc, testRecipient, "nope", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlacementNotFound))
}

func TestClearOneRecipientLeavesOthersSigned(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, "first@example.com", []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)
	_, _, err = store.ReplaceAll(ctx, testDoc, "second@example.com", []models.SignaturePlacement{validPlacement("b")}, 0)
	require.NoError(t, err)

	// The second signing must not overwrite the remembered prior status.
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Prior)

	removed, err := store.ClearAll(ctx, testDoc, "first@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	rec, err := store.Get(ctx, testDoc, "second@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, models.StatusSigned, storage.DocumentStateFor(testDoc).Status)

	// Removing the last record hands the document back to its prior status.
	removed, err = store.ClearAll(ctx, testDoc, "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Status)
}

func TestClearAllRecipients(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, "first@example.com", []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)
	_, _, err = store.ReplaceAll(ctx, testDoc, "second@example.com", []models.SignaturePlacement{validPlacement("b")}, 0)
	require.NoError(t, err)

	removed, err := store.ClearAll(ctx, testDoc, AllRecipients)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for _, recipient := range []string{"first@example.com", "second@example.com"} {
		rec, err := store.Get(ctx, testDoc, recipient)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	assert.Equal(t, models.StatusReady, storage.DocumentStateFor(testDoc).Status)
}

func TestClearAllOnEmptyDocumentIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)

	removed, err := store.ClearAll(context.Background(), testDoc, AllRecipients)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.ClearAll(context.Background(), testDoc, "ghost@example.com")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRecipientLookupIsCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.ReplaceAll(ctx, testDoc, " Signer@Example.COM ", []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)

	rec, err := store.Get(ctx, testDoc, "signer@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "signer@example.com", rec.RecipientEmail)
}

func TestUnknownDocumentIsTolerated(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage)
	ctx := context.Background()

	rec, _, err := store.ReplaceAll(ctx, "untracked-doc", testRecipient, []models.SignaturePlacement{validPlacement("a")}, 0)
	require.NoError(t, err)
	require.NotNil(t, rec)

	// No document record exists, so the status machine stays out of it.
	assert.False(t, storage.DocumentStateFor("untracked-doc").Known)

	_, _, err = store.ReplaceAll(ctx, "untracked-doc", testRecipient, nil, 0)
	require.NoError(t, err)
}

func TestGetReturnsNilForAbsentRecord(t *testing.T) {
	store, _ := newTestStore(t)

	rec, err := store.Get(context.Background(), testDoc, "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
