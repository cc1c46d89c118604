// Package signatures persists signature placements per document and
// recipient. A record is the whole set of placements for one
// (document, recipient) pair; writes always replace, patch or delete within
// that aggregate atomically, so readers never observe a half-written set.
package signatures

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// Fallback signature box in PDF points, matching the default box the editor
// draws when a client submits unusable geometry.
const (
	fallbackBoxWidth  = 200.0
	fallbackBoxHeight = 80.0
)

// RecordKey identifies one signature record. The recipient email is
// normalized so lookups are case and whitespace insensitive.
type RecordKey struct {
	DocumentID string
	Recipient  string
}

// NewRecordKey validates and normalizes the addressing pair.
func NewRecordKey(documentID, recipientEmail string) (RecordKey, error) {
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return RecordKey{}, &ValidationError{Reason: "document id is required"}
	}
	recipient := strings.ToLower(strings.TrimSpace(recipientEmail))
	if recipient == "" {
		return RecordKey{}, &ValidationError{Reason: "recipient email is required"}
	}
	return RecordKey{DocumentID: docID, Recipient: recipient}, nil
}

// SanitizePlacements normalizes placements for a replace-all write.
//
// A placement without signature content or without a positive page number
// cannot be rendered at all and is dropped with a warning rather than
// failing the batch. Missing ids, sources and timestamps are filled in.
// Non-finite coordinates fall back to the top-left corner, non-finite or
// non-positive box sizes to the default signature box, and relative values
// are clamped to [0, 1].
func SanitizePlacements(in []models.SignaturePlacement, now time.Time) ([]models.SignaturePlacement, []string) {
	kept := make([]models.SignaturePlacement, 0, len(in))
	var warnings []string
	for i, p := range in {
		ref := p.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
		}
		if strings.TrimSpace(p.Content) == "" {
			warnings = append(warnings, fmt.Sprintf("placement %s dropped: no signature content", ref))
			continue
		}
		if p.Page < 1 {
			warnings = append(warnings, fmt.Sprintf("placement %s dropped: page %d is not a valid page number", ref, p.Page))
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Source == "" {
			p.Source = models.PlacementSourceCanvas
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		p.X = finiteOr(p.X, 0)
		p.Y = finiteOr(p.Y, 0)
		p.Width = positiveOr(p.Width, fallbackBoxWidth)
		p.Height = positiveOr(p.Height, fallbackBoxHeight)
		p.RelativeX = clamp01(finiteOr(p.RelativeX, 0))
		p.RelativeY = clamp01(finiteOr(p.RelativeY, 0))
		p.RelativeWidth = clamp01(finiteOr(p.RelativeWidth, 0))
		p.RelativeHeight = clamp01(finiteOr(p.RelativeHeight, 0))
		kept = append(kept, p)
	}
	return kept, warnings
}

// ApplyPatch merges the non-nil fields of patch into p. Unlike a replace-all
// write there is no fallback here: a supplied value must be usable or the
// whole patch is rejected.
func ApplyPatch(p *models.SignaturePlacement, patch models.PlacementPatch) error {
	if patch.Page != nil {
		if *patch.Page < 1 {
			return &ValidationError{Reason: fmt.Sprintf("page %d is not a valid page number", *patch.Page)}
		}
		p.Page = *patch.Page
	}
	absolute := []struct {
		name string
		dst  *float64
		src  *float64
	}{
		{"x", &p.X, patch.X},
		{"y", &p.Y, patch.Y},
		{"width", &p.Width, patch.Width},
		{"height", &p.Height, patch.Height},
	}
	for _, f := range absolute {
		if f.src == nil {
			continue
		}
		if !isFinite(*f.src) {
			return &ValidationError{Reason: fmt.Sprintf("%s must be a finite number", f.name)}
		}
		*f.dst = *f.src
	}
	relative := []struct {
		name string
		dst  *float64
		src  *float64
	}{
		{"relativeX", &p.RelativeX, patch.RelativeX},
		{"relativeY", &p.RelativeY, patch.RelativeY},
		{"relativeWidth", &p.RelativeWidth, patch.RelativeWidth},
		{"relativeHeight", &p.RelativeHeight, patch.RelativeHeight},
	}
	for _, f := range relative {
		if f.src == nil {
			continue
		}
		if !isFinite(*f.src) {
			return &ValidationError{Reason: fmt.Sprintf("%s must be a finite number", f.name)}
		}
		*f.dst = clamp01(*f.src)
	}
	return nil
}

func cloneRecord(rec *models.SignatureRecord) *models.SignatureRecord {
	out := *rec
	out.Placements = make([]models.SignaturePlacement, len(rec.Placements))
	copy(out.Placements, rec.Placements)
	return &out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return v
}

func positiveOr(v, fallback float64) float64 {
	if !isFinite(v) || v <= 0 {
		return fallback
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
