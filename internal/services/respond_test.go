package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/assembly"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/gcp"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/signatures"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/transport"
)

func TestErrorDetailClassification(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"assemblyValidation":  {&assembly.ValidationError{Reason: "bad"}, "VALIDATION_ERROR"},
		"signatureValidation": {&signatures.ValidationError{Reason: "bad"}, "VALIDATION_ERROR"},
		"sizeLimit":           {&transport.SizeLimitError{RawBytes: 99, LimitBytes: 1}, "SIZE_LIMIT_EXCEEDED"},
		"transport":           {&transport.TransportError{Expected: "base64", Found: "junk"}, "TRANSPORT_ERROR"},
		"parse":               {&assembly.ParseError{Reason: "not a pdf"}, "PARSE_ERROR"},
		"signatureConflict":   {&signatures.ConflictError{Presented: 1, Current: 2}, "VERSION_CONFLICT"},
		"revisionConflict":    {&gcp.RevisionConflictError{Presented: 1, Current: 2}, "VERSION_CONFLICT"},
		"recordNotFound":      {signatures.ErrRecordNotFound, "NOT_FOUND"},
		"placementNotFound":   {signatures.ErrPlacementNotFound, "NOT_FOUND"},
		"documentNotFound":    {gcp.ErrDocumentNotFound, "NOT_FOUND"},
		"unknown":             {errors.New("boom"), "INTERNAL"},

		// Wrapping must not hide the classification.
		"wrappedConflict": {fmt.Errorf("commit failed: %w", &gcp.RevisionConflictError{}), "VERSION_CONFLICT"},
		"wrappedNotFound": {fmt.Errorf("placement x: %w", signatures.ErrPlacementNotFound), "NOT_FOUND"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			detail := errorDetail(tc.err)
			assert.Equal(t, tc.code, detail.Code)
			assert.NotEmpty(t, detail.Message)
		})
	}
}

func TestPersistenceDetail(t *testing.T) {
	// A plain failure on the persistence path is PERSISTENCE_ERROR, not
	// INTERNAL: the transform itself already succeeded.
	detail := persistenceDetail(errors.New("bucket unavailable"))
	assert.Equal(t, "PERSISTENCE_ERROR", detail.Code)

	// Recognized failures keep their own codes.
	detail = persistenceDetail(&gcp.RevisionConflictError{DocumentID: "d", Presented: 1, Current: 2})
	assert.Equal(t, "VERSION_CONFLICT", detail.Code)

	detail = persistenceDetail(fmt.Errorf("commit: %w", gcp.ErrDocumentNotFound))
	assert.Equal(t, "NOT_FOUND", detail.Code)
}
