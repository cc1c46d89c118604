package models

// These structs define the JSON payloads for HTTP requests and responses
// of the page-transformer and signature-recorder functions. Documents travel
// as base64 data-URL text inside the JSON body.

// PageRotationRequest names one page and its absolute target rotation.
type PageRotationRequest struct {
	PageNumber int `json:"pageNumber"`
	Rotation   int `json:"rotation"`
}

// RotateRequest is the input for the /rotate endpoint. DocumentID and
// ExpectedRevision are optional: when DocumentID is set the transformed bytes
// are persisted and the document record's revision is bumped, and a non-zero
// ExpectedRevision must match the stored revision.
type RotateRequest struct {
	DocumentID       string                `json:"documentId,omitempty"`
	ExpectedRevision int64                 `json:"expectedRevision,omitempty"`
	Document         string                `json:"document"`
	Rotations        []PageRotationRequest `json:"rotations"`
}

// MergeRequest is the input for the /merge endpoint. Additional documents are
// laid into the output as one block, prepended (insertPosition "start") or
// appended ("end", the default) to the main document's pages.
type MergeRequest struct {
	DocumentID       string   `json:"documentId,omitempty"`
	ExpectedRevision int64    `json:"expectedRevision,omitempty"`
	Document         string   `json:"document"`
	Additional       []string `json:"additional,omitempty"`
	InsertPosition   string   `json:"insertPosition,omitempty"`
}

// ReorderRequest is the input for the /reorder endpoint. PageOrder must list a
// descriptor for every page of the document in the desired display order.
type ReorderRequest struct {
	DocumentID       string           `json:"documentId,omitempty"`
	ExpectedRevision int64            `json:"expectedRevision,omitempty"`
	Document         string           `json:"document"`
	PageOrder        []PageDescriptor `json:"pageOrder"`
}

// ErrorDetail is the structured error carried by failed responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransformResponse is the output of every transform endpoint. Document always
// carries the transformed bytes when the transform itself succeeded, even if
// persisting them failed (Error then explains what went wrong).
type TransformResponse struct {
	Success   bool             `json:"success"`
	Document  string           `json:"document,omitempty"`
	PageCount int              `json:"pageCount,omitempty"`
	Pages     []PageDescriptor `json:"pages,omitempty"`
	URL       string           `json:"url,omitempty"`
	Revision  int64            `json:"revision,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Error     *ErrorDetail     `json:"error,omitempty"`
}

// ReplaceSignaturesRequest replaces every placement a recipient holds on a
// document in one atomic step. An empty Placements list deletes the record.
type ReplaceSignaturesRequest struct {
	DocumentID      string               `json:"documentId"`
	RecipientEmail  string               `json:"recipientEmail"`
	ExpectedVersion int64                `json:"expectedVersion,omitempty"`
	Placements      []SignaturePlacement `json:"placements"`
}

// PlacementPatch carries the position fields of a single placement update;
// nil fields are left untouched.
type PlacementPatch struct {
	Page           *int     `json:"page,omitempty"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	RelativeX      *float64 `json:"relativeX,omitempty"`
	RelativeY      *float64 `json:"relativeY,omitempty"`
	RelativeWidth  *float64 `json:"relativeWidth,omitempty"`
	RelativeHeight *float64 `json:"relativeHeight,omitempty"`
}

// UpdateSignatureRequest merges a partial position into one placement.
type UpdateSignatureRequest struct {
	DocumentID      string         `json:"documentId"`
	RecipientEmail  string         `json:"recipientEmail"`
	PlacementID     string         `json:"placementId"`
	ExpectedVersion int64          `json:"expectedVersion,omitempty"`
	Position        PlacementPatch `json:"position"`
}

// DeleteSignatureRequest removes one placement.
type DeleteSignatureRequest struct {
	DocumentID      string `json:"documentId"`
	RecipientEmail  string `json:"recipientEmail"`
	PlacementID     string `json:"placementId"`
	ExpectedVersion int64  `json:"expectedVersion,omitempty"`
}

// ClearSignaturesRequest removes every placement for one recipient, or for
// every recipient on the document when AllRecipients is set.
type ClearSignaturesRequest struct {
	DocumentID     string `json:"documentId"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
	AllRecipients  bool   `json:"allRecipients,omitempty"`
}

// GetSignaturesRequest fetches the record for one (document, recipient) pair.
type GetSignaturesRequest struct {
	DocumentID     string `json:"documentId"`
	RecipientEmail string `json:"recipientEmail"`
}

// SignatureResponse is the output of every signature-recorder endpoint. Record
// is nil when the operation leaves no record behind (or none existed).
type SignatureResponse struct {
	Success  bool             `json:"success"`
	Record   *SignatureRecord `json:"record,omitempty"`
	Version  int64            `json:"version,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    *ErrorDetail     `json:"error,omitempty"`
}
