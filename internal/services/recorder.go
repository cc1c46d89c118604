package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/gcp"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/signatures"
)

type RecorderConfig struct {
	ProjectID        string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
}

// RecorderFunction serves the signature placement endpoints. Placement writes
// go through the signatures store; the first successful signing of a document
// additionally hands the document off to the post-signing workflow when one
// is configured.
type RecorderFunction struct {
	store            *signatures.Store
	executionsClient *executions.Client
	config           RecorderConfig
}

func NewRecorder(ctx context.Context) (*RecorderFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := RecorderConfig{
		ProjectID:        projectID,
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	f := &RecorderFunction{
		store:  signatures.NewStore(signatures.NewFirestoreStorage(firestoreClient, config.CollectionName)),
		config: config,
	}
	if config.WorkflowID != "" {
		executionsClient, err := executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		f.executionsClient = executionsClient
	}
	slog.Info("Signature recorder logic initialized.", "collection", config.CollectionName, "workflowId", config.WorkflowID)
	return f, nil
}

// ReplaceAll swaps a recipient's whole placement set atomically.
func (f *RecorderFunction) ReplaceAll(ctx context.Context, req *models.ReplaceSignaturesRequest) *models.SignatureResponse {
	logCtx := slog.With("operation", "replaceSignatures", "documentId", req.DocumentID, "recipient", req.RecipientEmail)

	rec, warnings, err := f.store.ReplaceAll(ctx, req.DocumentID, req.RecipientEmail, req.Placements, req.ExpectedVersion)
	if err != nil {
		return failedSignature(logCtx, "Failed to replace signature placements.", err, warnings)
	}

	resp := &models.SignatureResponse{Success: true, Record: rec, Warnings: warnings}
	if rec != nil {
		resp.Version = rec.Version
		logCtx.Info("Signature placements replaced.", "placementCount", len(rec.Placements), "version", rec.Version)
		if rec.Version == 1 {
			f.notifySigned(ctx, logCtx, rec)
		}
	} else {
		logCtx.Info("Signature record removed.")
	}
	return resp
}

// UpdateOne merges a partial position into a single placement.
func (f *RecorderFunction) UpdateOne(ctx context.Context, req *models.UpdateSignatureRequest) *models.SignatureResponse {
	logCtx := slog.With("operation", "updateSignature", "documentId", req.DocumentID, "recipient", req.RecipientEmail, "placementId", req.PlacementID)

	rec, err := f.store.UpdateOne(ctx, req.DocumentID, req.RecipientEmail, req.PlacementID, req.Position, req.ExpectedVersion)
	if err != nil {
		return failedSignature(logCtx, "Failed to update signature placement.", err, nil)
	}
	logCtx.Info("Signature placement updated.", "version", rec.Version)
	return &models.SignatureResponse{Success: true, Record: rec, Version: rec.Version}
}

// DeleteOne removes a single placement.
func (f *RecorderFunction) DeleteOne(ctx context.Context, req *models.DeleteSignatureRequest) *models.SignatureResponse {
	logCtx := slog.With("operation", "deleteSignature", "documentId", req.DocumentID, "recipient", req.RecipientEmail, "placementId", req.PlacementID)

	rec, err := f.store.DeleteOne(ctx, req.DocumentID, req.RecipientEmail, req.PlacementID, req.ExpectedVersion)
	if err != nil {
		return failedSignature(logCtx, "Failed to delete signature placement.", err, nil)
	}

	resp := &models.SignatureResponse{Success: true, Record: rec}
	if rec != nil {
		resp.Version = rec.Version
		logCtx.Info("Signature placement deleted.", "remaining", len(rec.Placements))
	} else {
		logCtx.Info("Last placement deleted, signature record removed.")
	}
	return resp
}

// Clear removes a recipient's record, or every record of the document.
func (f *RecorderFunction) Clear(ctx context.Context, req *models.ClearSignaturesRequest) *models.SignatureResponse {
	logCtx := slog.With("operation", "clearSignatures", "documentId", req.DocumentID, "recipient", req.RecipientEmail, "allRecipients", req.AllRecipients)

	recipient := req.RecipientEmail
	if req.AllRecipients {
		recipient = signatures.AllRecipients
	}
	removed, err := f.store.ClearAll(ctx, req.DocumentID, recipient)
	if err != nil {
		return failedSignature(logCtx, "Failed to clear signature placements.", err, nil)
	}
	logCtx.Info("Signature records cleared.", "removed", removed)
	return &models.SignatureResponse{Success: true}
}

// Get fetches the record for one (document, recipient) pair. An absent record
// is a normal answer: Success with no Record.
func (f *RecorderFunction) Get(ctx context.Context, req *models.GetSignaturesRequest) *models.SignatureResponse {
	logCtx := slog.With("operation", "getSignatures", "documentId", req.DocumentID, "recipient", req.RecipientEmail)

	rec, err := f.store.Get(ctx, req.DocumentID, req.RecipientEmail)
	if err != nil {
		return failedSignature(logCtx, "Failed to read signature record.", err, nil)
	}
	resp := &models.SignatureResponse{Success: true, Record: rec}
	if rec != nil {
		resp.Version = rec.Version
	}
	return resp
}

// notifySigned hands a freshly signed document off to the post-signing
// workflow. The signature write has already committed, so a failed hand-off
// only logs; it never fails the request.
func (f *RecorderFunction) notifySigned(ctx context.Context, logCtx *slog.Logger, rec *models.SignatureRecord) {
	if f.executionsClient == nil {
		return
	}

	payload := map[string]interface{}{
		"documentId":     rec.DocumentID,
		"recipientEmail": rec.RecipientEmail,
		"placementCount": len(rec.Placements),
		"signedAt":       rec.SignedAt,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		logCtx.Warn("Failed to marshal workflow payload, skipping hand-off.", "error", err)
		return
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := f.executionsClient.CreateExecution(ctx, req); err != nil {
		logCtx.Warn("Post-signing workflow hand-off failed.", "workflowId", f.config.WorkflowID, "error", err)
		return
	}
	logCtx.Info("Post-signing workflow triggered.", "workflowId", f.config.WorkflowID)
}
