package models

import "time"

// PlacementSource says how a signature image was captured.
type PlacementSource string

const (
	PlacementSourceCanvas PlacementSource = "canvas"
	PlacementSourceUpload PlacementSource = "upload"
)

// SignatureSchemaVersion is written into every SignatureRecord so future
// migrations can tell aggregates apart.
const SignatureSchemaVersion = 1

// RecordStatusSigned is the only terminal status a signature record carries; a
// record with zero placements is deleted rather than kept in an unsigned state.
const RecordStatusSigned = "signed"

// SignaturePlacement is one recorded signature rectangle on a page. Absolute
// coordinates are in PDF points against the page's media box; the relative
// fields are the same rectangle expressed as fractions of page width/height so
// the placement survives rendering at a different scale. Content carries the
// signature image payload (a data URL) and must be non-empty for the placement
// to count as signed.
type SignaturePlacement struct {
	ID             string          `json:"id" firestore:"id"`
	Source         PlacementSource `json:"source" firestore:"source"`
	Timestamp      time.Time       `json:"timestamp" firestore:"timestamp"`
	Content        string          `json:"content" firestore:"content"`
	Page           int             `json:"page" firestore:"page"`
	X              float64         `json:"x" firestore:"x"`
	Y              float64         `json:"y" firestore:"y"`
	Width          float64         `json:"width" firestore:"width"`
	Height         float64         `json:"height" firestore:"height"`
	RelativeX      float64         `json:"relativeX" firestore:"relativeX"`
	RelativeY      float64         `json:"relativeY" firestore:"relativeY"`
	RelativeWidth  float64         `json:"relativeWidth" firestore:"relativeWidth"`
	RelativeHeight float64         `json:"relativeHeight" firestore:"relativeHeight"`
}

// SignatureRecord is the aggregate of every placement one recipient holds on
// one document. Exactly one record exists per (DocumentID, RecipientEmail):
// it is created on the first placement, rewritten wholesale on every edit and
// deleted when the placement list empties. Version increments on every write
// and is the token optimistic writers must present.
type SignatureRecord struct {
	SchemaVersion  int                  `json:"schemaVersion" firestore:"schemaVersion"`
	DocumentID     string               `json:"documentId" firestore:"documentId"`
	RecipientEmail string               `json:"recipientEmail" firestore:"recipientEmail"`
	Status         string               `json:"status" firestore:"status"`
	SignedAt       time.Time            `json:"signedAt" firestore:"signedAt"`
	CreatedAt      time.Time            `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt" firestore:"updatedAt"`
	Version        int64                `json:"version" firestore:"version"`
	Placements     []SignaturePlacement `json:"placements" firestore:"placements"`
}
