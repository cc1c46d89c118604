package assembly

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageRotation names one page and its absolute target orientation in degrees.
type PageRotation struct {
	PageNumber int
	Rotation   int
}

// Rotate sets the named pages to their absolute target rotations and returns
// the re-serialized document. Applying the same batch twice yields the same
// orientations, unlike a relative turn.
//
// A target that is not a multiple of 90 fails the whole batch. A page number
// outside [1, PageCount] is skipped with a warning so the rest of the batch
// still lands. When a page appears more than once, the last entry wins.
func Rotate(doc *Document, rotations []PageRotation) (*Document, []string, error) {
	if doc == nil {
		return nil, nil, &ValidationError{Reason: "document is required"}
	}
	if len(rotations) == 0 {
		return nil, nil, &ValidationError{Reason: "no rotations requested"}
	}

	targets := make(map[int]int, len(rotations))
	var warnings []string
	for _, r := range rotations {
		if !ValidRotation(r.Rotation) {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("rotation %d is not a multiple of 90", r.Rotation)}
		}
		if r.PageNumber < 1 || r.PageNumber > doc.PageCount() {
			slog.Warn("Skipping rotation for out-of-range page.", "pageNumber", r.PageNumber, "pageCount", doc.PageCount())
			warnings = append(warnings, fmt.Sprintf("page %d out of range [1, %d], rotation skipped", r.PageNumber, doc.PageCount()))
			continue
		}
		targets[r.PageNumber] = NormalizeRotation(r.Rotation)
	}
	if len(targets) == 0 {
		return nil, warnings, &ValidationError{Reason: "every requested page is out of range"}
	}

	unchanged := true
	for nr, target := range targets {
		if doc.pages[nr-1].Rotation != target {
			unchanged = false
			break
		}
	}
	if unchanged {
		return doc, warnings, nil
	}

	ctx, err := readContext(doc.Bytes())
	if err != nil {
		return nil, warnings, err
	}
	for nr, target := range targets {
		pageDict, _, _, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, warnings, &ParseError{Reason: fmt.Sprintf("page %d is unreadable", nr), Err: err}
		}
		if pageDict == nil {
			return nil, warnings, &ParseError{Reason: fmt.Sprintf("page %d has no page dictionary", nr)}
		}
		// The Rotate entry may be inherited from a pages node; writing the
		// leaf dictionary pins the absolute value for exactly this page.
		pageDict["Rotate"] = types.Integer(target)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, warnings, fmt.Errorf("failed to serialize rotated document: %w", err)
	}
	out, err := Load(buf.Bytes())
	if err != nil {
		return nil, warnings, fmt.Errorf("rotated document failed to re-load: %w", err)
	}
	return out, warnings, nil
}
