package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/assembly"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/gcp"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/transport"
)

type TransformerConfig struct {
	ProjectID       string
	DocumentsBucket string
	CollectionName  string
}

// BlobStore persists transformed document bytes and returns a retrievable
// URL. Implemented by gcp.BucketStore.
type BlobStore interface {
	Save(ctx context.Context, object string, data []byte, contentType string) (string, error)
}

// DocumentIndex commits new document revisions. Implemented by
// gcp.DocumentIndex.
type DocumentIndex interface {
	CommitRevision(ctx context.Context, documentID string, expectedRevision int64, pageCount int, location string) (int64, error)
}

// TransformerFunction serves the rotate, merge and reorder endpoints. Every
// transform is in-memory and copy-on-write: the request carries the document
// bytes, the response carries new bytes, and the input is never modified.
// When a request names a tracked document the result is additionally written
// to the documents bucket and committed as a new revision.
type TransformerFunction struct {
	codec  *transport.Codec
	blobs  BlobStore
	index  DocumentIndex
	config TransformerConfig
}

func NewTransformer(ctx context.Context) (*TransformerFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := TransformerConfig{
		ProjectID:       projectID,
		DocumentsBucket: gcp.GetEnv("DOCUMENTS_BUCKET", ""),
		CollectionName:  gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
	}
	if config.DocumentsBucket == "" {
		return nil, fmt.Errorf("DOCUMENTS_BUCKET environment variable must be set")
	}
	maxMB, err := strconv.Atoi(gcp.GetEnv("MAX_DOCUMENT_MB", "50"))
	if err != nil || maxMB <= 0 {
		return nil, fmt.Errorf("MAX_DOCUMENT_MB must be a positive integer")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &TransformerFunction{
		codec:  transport.NewCodec(int64(maxMB) << 20),
		blobs:  gcp.NewBucketStore(storageClient, config.DocumentsBucket),
		index:  gcp.NewDocumentIndex(firestoreClient, config.CollectionName),
		config: config,
	}
	slog.Info("Page transformer logic initialized.", "documentsBucket", config.DocumentsBucket, "maxDocumentMB", maxMB)
	return f, nil
}

// Rotate applies absolute page rotations to the document in the request.
func (f *TransformerFunction) Rotate(ctx context.Context, req *models.RotateRequest) *models.TransformResponse {
	logCtx := slog.With("operation", "rotate", "documentId", req.DocumentID)

	doc, failed := f.loadDocument(logCtx, req.Document)
	if failed != nil {
		return failed
	}
	rotations := make([]assembly.PageRotation, 0, len(req.Rotations))
	for _, r := range req.Rotations {
		rotations = append(rotations, assembly.PageRotation{PageNumber: r.PageNumber, Rotation: r.Rotation})
	}

	out, warnings, err := assembly.Rotate(doc, rotations)
	if err != nil {
		return failedTransform(logCtx, "Rotation failed.", err, warnings)
	}
	return f.finishTransform(ctx, logCtx, req.DocumentID, req.ExpectedRevision, out, nil, warnings)
}

// Merge lays additional documents into the main document as one block.
func (f *TransformerFunction) Merge(ctx context.Context, req *models.MergeRequest) *models.TransformResponse {
	logCtx := slog.With("operation", "merge", "documentId", req.DocumentID)

	pos, err := assembly.ParseInsertPosition(req.InsertPosition)
	if err != nil {
		return failedTransform(logCtx, "Invalid merge request.", err, nil)
	}
	main, failed := f.loadDocument(logCtx, req.Document)
	if failed != nil {
		return failed
	}

	var warnings []string
	additional := make([][]byte, 0, len(req.Additional))
	for i, encoded := range req.Additional {
		data, err := f.codec.Decode(encoded)
		if err != nil {
			// The uniform size ceiling is not negotiable, but an otherwise
			// undecodable attachment only costs itself.
			var sizeErr *transport.SizeLimitError
			if errors.As(err, &sizeErr) {
				return failedTransform(logCtx, "Additional document exceeds the size limit.", err, warnings)
			}
			logCtx.Warn("Skipping additional document that failed to decode.", "index", i, "error", err)
			warnings = append(warnings, fmt.Sprintf("additional document %d skipped: %v", i, err))
			continue
		}
		additional = append(additional, data)
	}

	out, descriptors, mergeWarnings, err := assembly.Merge(main, additional, pos)
	warnings = append(warnings, mergeWarnings...)
	if err != nil {
		return failedTransform(logCtx, "Merge failed.", err, warnings)
	}
	return f.finishTransform(ctx, logCtx, req.DocumentID, req.ExpectedRevision, out, descriptors, warnings)
}

// Reorder rebuilds the document in the page order the request describes.
func (f *TransformerFunction) Reorder(ctx context.Context, req *models.ReorderRequest) *models.TransformResponse {
	logCtx := slog.With("operation", "reorder", "documentId", req.DocumentID)

	doc, failed := f.loadDocument(logCtx, req.Document)
	if failed != nil {
		return failed
	}
	out, descriptors, err := assembly.Reorder(doc, req.PageOrder)
	if err != nil {
		return failedTransform(logCtx, "Reorder failed.", err, nil)
	}
	return f.finishTransform(ctx, logCtx, req.DocumentID, req.ExpectedRevision, out, descriptors, nil)
}

func (f *TransformerFunction) loadDocument(logCtx *slog.Logger, encoded string) (*assembly.Document, *models.TransformResponse) {
	data, err := f.codec.Decode(encoded)
	if err != nil {
		return nil, failedTransform(logCtx, "Failed to decode document.", err, nil)
	}
	doc, err := assembly.Load(data)
	if err != nil {
		return nil, failedTransform(logCtx, "Failed to parse document.", err, nil)
	}
	return doc, nil
}

// finishTransform packages the transformed document and, when the request
// names a tracked document, persists it as a new revision. The transformed
// bytes are returned to the caller even when persistence fails; Error then
// tells the caller that the stored copy is stale.
func (f *TransformerFunction) finishTransform(ctx context.Context, logCtx *slog.Logger, documentID string, expectedRevision int64, out *assembly.Document, pages []models.PageDescriptor, warnings []string) *models.TransformResponse {
	resp := &models.TransformResponse{
		Success:   true,
		Document:  f.codec.Encode(out.Bytes()),
		PageCount: out.PageCount(),
		Pages:     pages,
		Warnings:  warnings,
	}
	if documentID == "" || f.blobs == nil || f.index == nil {
		// Stateless call: the caller owns persistence.
		return resp
	}

	object := fmt.Sprintf("documents/%s/%s.pdf", documentID, uuid.NewString())
	location, err := f.blobs.Save(ctx, object, out.Bytes(), "application/pdf")
	if err != nil {
		logCtx.Error("Failed to persist transformed document, returning bytes to the caller.", "error", err)
		resp.Success = false
		resp.Error = persistenceDetail(err)
		return resp
	}
	revision, err := f.index.CommitRevision(ctx, documentID, expectedRevision, out.PageCount(), location)
	if err != nil {
		logCtx.Error("Failed to commit document revision, returning bytes to the caller.", "error", err)
		resp.Success = false
		resp.Error = persistenceDetail(err)
		return resp
	}

	resp.URL = location
	resp.Revision = revision
	logCtx.Info("Transformed document persisted.", "gcsObject", object, "revision", revision, "pageCount", out.PageCount())
	return resp
}
