package services

import (
	"errors"
	"log/slog"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/assembly"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/gcp"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/signatures"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/transport"
)

// Stable machine-readable failure codes carried in every error response.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeSizeLimit   = "SIZE_LIMIT_EXCEEDED"
	codeTransport   = "TRANSPORT_ERROR"
	codeParse       = "PARSE_ERROR"
	codePersistence = "PERSISTENCE_ERROR"
	codeConflict    = "VERSION_CONFLICT"
	codeNotFound    = "NOT_FOUND"
	codeInternal    = "INTERNAL"
)

// errorDetail classifies err into the wire taxonomy. Anything unrecognized
// is INTERNAL.
func errorDetail(err error) *models.ErrorDetail {
	var (
		assemblyValidation  *assembly.ValidationError
		signatureValidation *signatures.ValidationError
		parseErr            *assembly.ParseError
		sizeErr             *transport.SizeLimitError
		transportErr        *transport.TransportError
		signatureConflict   *signatures.ConflictError
		revisionConflict    *gcp.RevisionConflictError
	)

	code := codeInternal
	switch {
	case errors.As(err, &assemblyValidation), errors.As(err, &signatureValidation):
		code = codeValidation
	case errors.As(err, &sizeErr):
		code = codeSizeLimit
	case errors.As(err, &transportErr):
		code = codeTransport
	case errors.As(err, &parseErr):
		code = codeParse
	case errors.As(err, &signatureConflict), errors.As(err, &revisionConflict):
		code = codeConflict
	case errors.Is(err, signatures.ErrRecordNotFound),
		errors.Is(err, signatures.ErrPlacementNotFound),
		errors.Is(err, gcp.ErrDocumentNotFound):
		code = codeNotFound
	}
	return &models.ErrorDetail{Code: code, Message: err.Error()}
}

// persistenceDetail classifies a failure on the persistence path. Conflicts
// and lookups keep their own codes; everything else becomes
// PERSISTENCE_ERROR rather than INTERNAL, because the transform itself
// already succeeded.
func persistenceDetail(err error) *models.ErrorDetail {
	detail := errorDetail(err)
	if detail.Code == codeInternal {
		detail.Code = codePersistence
	}
	return detail
}

func failedTransform(logCtx *slog.Logger, message string, err error, warnings []string) *models.TransformResponse {
	logCtx.Error(message, "error", err)
	return &models.TransformResponse{
		Success:  false,
		Warnings: warnings,
		Error:    errorDetail(err),
	}
}

func failedSignature(logCtx *slog.Logger, message string, err error, warnings []string) *models.SignatureResponse {
	logCtx.Error(message, "error", err)
	return &models.SignatureResponse{
		Success:  false,
		Warnings: warnings,
		Error:    errorDetail(err),
	}
}
