package models

import "time"

// Document lifecycle statuses. A document enters VALIDATING when the registrar
// picks up a fresh upload, becomes READY once it parses, and moves to SIGNED as
// soon as one recipient has a non-empty signature record. PriorStatus remembers
// the pre-signing status so removing the last signature can restore it.
const (
	StatusValidating = "VALIDATING"
	StatusReady      = "READY"
	StatusSigned     = "SIGNED"
	StatusFailed     = "FAILED"
)

// Document is the master record for an uploaded PDF in Firestore. It tracks the
// current bytes (bucket object + revision) and the overall lifecycle status.
type Document struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	SourceBucket     string    `firestore:"sourceBucket,omitempty"`
	SourceObject     string    `firestore:"sourceObject,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	PriorStatus      string    `firestore:"priorStatus,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	Revision         int64     `firestore:"revision,omitempty"`
	LatestObject     string    `firestore:"latestObject,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty"`
}
