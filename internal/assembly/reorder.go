package assembly

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// Reorder rebuilds the document so its pages appear in the order given by
// newOrder, then applies each descriptor's rotation as an absolute target.
// newOrder must cover every page of the document exactly once; anything less
// than a full permutation is rejected before any page moves, so the result is
// all-or-nothing.
//
// Which physical page a descriptor refers to is resolved through provenance,
// not through the descriptor's previous position: sorting the set by
// (SourceIndex, OriginalIndex) reproduces the buffer layout, so the request
// stays correct even when the caller reordered pages visually many times
// before submitting.
//
// The returned descriptors are the requested ones renumbered 1..N with
// normalized rotations.
func Reorder(source *Document, newOrder []models.PageDescriptor) (*Document, []models.PageDescriptor, error) {
	if source == nil {
		return nil, nil, &ValidationError{Reason: "document is required"}
	}
	n := source.PageCount()
	if len(newOrder) == 0 {
		return nil, nil, &ValidationError{Reason: "page order is empty"}
	}
	if len(newOrder) != n {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("page order lists %d pages, document has %d", len(newOrder), n)}
	}

	seenID := make(map[string]struct{}, n)
	seenOrigin := make(map[[2]int]struct{}, n)
	for i, d := range newOrder {
		if d.ID == "" {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("page order entry %d has no id", i)}
		}
		if _, dup := seenID[d.ID]; dup {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("page %s appears more than once in the page order", d.ID)}
		}
		seenID[d.ID] = struct{}{}
		origin := [2]int{d.SourceIndex, d.OriginalIndex}
		if _, dup := seenOrigin[origin]; dup {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("source page %d/%d appears more than once in the page order", d.SourceIndex, d.OriginalIndex)}
		}
		seenOrigin[origin] = struct{}{}
		if !ValidRotation(d.Rotation) {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("rotation %d for page %s is not a multiple of 90", d.Rotation, d.ID)}
		}
	}

	// Recover each descriptor's current buffer position from provenance.
	canonical := make([]models.PageDescriptor, n)
	copy(canonical, newOrder)
	sort.Slice(canonical, func(i, j int) bool {
		if canonical[i].SourceIndex != canonical[j].SourceIndex {
			return canonical[i].SourceIndex < canonical[j].SourceIndex
		}
		return canonical[i].OriginalIndex < canonical[j].OriginalIndex
	})
	bufferPage := make(map[string]int, n)
	for idx, d := range canonical {
		bufferPage[d.ID] = idx + 1
	}

	identity := true
	selection := make([]string, 0, n)
	var rotations []PageRotation
	for outIdx, want := range newOrder {
		pageNr := bufferPage[want.ID]
		if pageNr != outIdx+1 {
			identity = false
		}
		selection = append(selection, strconv.Itoa(pageNr))

		target := NormalizeRotation(want.Rotation)
		current := source.pages[pageNr-1].Rotation
		if target != current {
			rotations = append(rotations, PageRotation{PageNumber: outIdx + 1, Rotation: target})
		}
	}

	out := source
	if !identity {
		var collected bytes.Buffer
		if err := api.Collect(bytes.NewReader(source.Bytes()), &collected, selection, configuration()); err != nil {
			return nil, nil, fmt.Errorf("failed to collect pages in the requested order: %w", err)
		}
		reordered, err := Load(collected.Bytes())
		if err != nil {
			return nil, nil, fmt.Errorf("reordered document failed to re-load: %w", err)
		}
		if reordered.PageCount() != n {
			return nil, nil, fmt.Errorf("reordered document has %d pages, expected %d", reordered.PageCount(), n)
		}
		out = reordered
	}

	if len(rotations) > 0 {
		rotated, _, err := Rotate(out, rotations)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply rotations during reorder: %w", err)
		}
		out = rotated
	}

	result := make([]models.PageDescriptor, n)
	copy(result, newOrder)
	for i := range result {
		result[i].Position = i + 1
		result[i].Rotation = NormalizeRotation(result[i].Rotation)
	}
	return out, result, nil
}
