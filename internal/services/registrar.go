package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/assembly"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/gcp"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

type RegistrarConfig struct {
	ProjectID      string
	CollectionName string
	MaxRawBytes    int64
}

// RegistrarFunction ingests uploaded PDFs. It validates the bytes, registers
// a master document record and marks it READY for transforms and signing;
// anything unusable ends up FAILED with the reason on the record.
type RegistrarFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	config          RegistrarConfig
}

// GCSEvent is the payload of a GCS object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewRegistrar(ctx context.Context) (*RegistrarFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	maxMB, err := strconv.Atoi(gcp.GetEnv("MAX_DOCUMENT_MB", "50"))
	if err != nil || maxMB <= 0 {
		return nil, fmt.Errorf("MAX_DOCUMENT_MB must be a positive integer")
	}
	config := RegistrarConfig{
		ProjectID:      projectID,
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		MaxRawBytes:    int64(maxMB) << 20,
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &RegistrarFunction{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		config:          config,
	}
	slog.Info("Document registrar logic initialized.", "collection", config.CollectionName)
	return f, nil
}

// Process registers one uploaded object. A re-upload of identical bytes is
// detected by content hash and skipped cleanly, which keeps the registration
// idempotent across event redeliveries.
func (f *RegistrarFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	data, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := hashBytes(data)
	logCtx = logCtx.With("fileHash", fileHash)

	isDuplicate, docID, err := f.isDuplicate(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", docID)
		return nil // Clean exit for a duplicate
	}

	docRef, err := f.createInitialDocument(ctx, fileHash, e)
	if err != nil {
		logCtx.Error("Failed to create initial Firestore document", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docRef.ID)
	logCtx.Info("Created master document in Firestore.")

	if int64(len(data)) > f.config.MaxRawBytes {
		sizeErr := fmt.Errorf("document of %.1fMB exceeds the %dMB limit",
			float64(len(data))/(1<<20), f.config.MaxRawBytes>>20)
		return f.handleError(ctx, logCtx, docRef, "uploaded document is too large", sizeErr)
	}

	doc, err := assembly.Load(data)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "uploaded document is not a valid PDF", err)
	}

	location := fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name)
	if err := f.finalizeDocument(ctx, docRef, doc.PageCount(), location); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to mark document READY", err)
	}

	logCtx.Info("Document registered and ready.", "pageCount", doc.PageCount())
	return nil
}

func (f *RegistrarFunction) isDuplicate(ctx context.Context, fileHash string) (bool, string, error) {
	docs, err := f.firestoreClient.Collection(f.config.CollectionName).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return true, docs[0].Ref.ID, nil
	}
	return false, "", nil
}

func (f *RegistrarFunction) createInitialDocument(ctx context.Context, fileHash string, e GCSEvent) (*firestore.DocumentRef, error) {
	newDoc := models.Document{
		FileHash:         fileHash,
		OriginalFilename: e.Name,
		SourceBucket:     e.Bucket,
		SourceObject:     e.Name,
		Status:           models.StatusValidating,
		CreatedAt:        time.Now(),
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, newDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to create master document: %w", err)
	}
	return docRef, nil
}

// finalizeDocument flips the record to READY at revision 1, pointing at the
// uploaded object as the document's current bytes.
func (f *RegistrarFunction) finalizeDocument(ctx context.Context, docRef *firestore.DocumentRef, pageCount int, location string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusReady},
		{Path: "pageCount", Value: pageCount},
		{Path: "revision", Value: int64(1)},
		{Path: "latestObject", Value: location},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	_, err := docRef.Update(ctx, updates)
	return err
}

func (f *RegistrarFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.updateStatus(ctx, docRef, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}

func (f *RegistrarFunction) updateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := docRef.Update(ctx, updates)
	return err
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
