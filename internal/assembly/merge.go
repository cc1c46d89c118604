package assembly

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
)

// InsertPosition says where the additional block lands relative to the main
// document's pages.
type InsertPosition string

const (
	InsertAtStart InsertPosition = "start"
	InsertAtEnd   InsertPosition = "end"
)

// ParseInsertPosition maps request text onto an InsertPosition. Empty text
// means InsertAtEnd.
func ParseInsertPosition(s string) (InsertPosition, error) {
	switch s {
	case "", string(InsertAtEnd):
		return InsertAtEnd, nil
	case string(InsertAtStart):
		return InsertAtStart, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("insert position %q must be %q or %q", s, InsertAtStart, InsertAtEnd)}
}

const maxConcurrentParses = 4

// Merge lays the pages of the additional documents into the main document as
// one contiguous block, either before or after the main pages. An additional
// buffer that does not parse as a page-based document is skipped with a
// warning; the page count of the result always equals the sum of the page
// counts of the documents that made it in.
//
// The returned descriptors cover every output page in order, renumbered
// 1..N. Source indexes are assigned in final layout order, so sorting the
// descriptors by (SourceIndex, OriginalIndex) always reproduces the buffer
// layout regardless of where the block was inserted.
func Merge(main *Document, additional [][]byte, pos InsertPosition) (*Document, []models.PageDescriptor, []string, error) {
	if main == nil {
		return nil, nil, nil, &ValidationError{Reason: "main document is required"}
	}

	parsed := make([]*Document, len(additional))
	parseErrs := make([]error, len(additional))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentParses)
	for i, data := range additional {
		i, data := i, data
		g.Go(func() error {
			doc, err := Load(data)
			if err != nil {
				parseErrs[i] = err
				return nil
			}
			parsed[i] = doc
			return nil
		})
	}
	// The workers only record their outcome, they never fail the group.
	_ = g.Wait()

	var warnings []string
	valid := make([]*Document, 0, len(parsed))
	for i, doc := range parsed {
		if doc == nil {
			slog.Warn("Skipping additional document that is not a valid PDF.", "index", i, "error", parseErrs[i])
			warnings = append(warnings, fmt.Sprintf("additional document %d skipped: %v", i, parseErrs[i]))
			continue
		}
		valid = append(valid, doc)
	}

	if len(valid) == 0 {
		// Nothing to merge; the main document passes through untouched.
		return main, DescribePages(main), warnings, nil
	}

	var sources []*Document
	switch pos {
	case InsertAtStart:
		sources = append(valid, main)
	case InsertAtEnd:
		sources = append([]*Document{main}, valid...)
	default:
		return nil, nil, warnings, &ValidationError{Reason: fmt.Sprintf("unknown insert position %q", pos)}
	}

	total := 0
	readers := make([]io.ReadSeeker, len(sources))
	for i, src := range sources {
		total += src.PageCount()
		readers[i] = bytes.NewReader(src.Bytes())
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, configuration()); err != nil {
		return nil, nil, warnings, fmt.Errorf("failed to assemble merged document: %w", err)
	}
	out, err := Load(buf.Bytes())
	if err != nil {
		return nil, nil, warnings, fmt.Errorf("merged document failed to re-load: %w", err)
	}
	if out.PageCount() != total {
		return nil, nil, warnings, fmt.Errorf("merged document has %d pages, expected %d", out.PageCount(), total)
	}

	return out, describeSources(sources), warnings, nil
}

// DescribePages returns fresh provenance descriptors for a document treated
// as a single source with index 0.
func DescribePages(doc *Document) []models.PageDescriptor {
	return describeSources([]*Document{doc})
}

func describeSources(sources []*Document) []models.PageDescriptor {
	n := 0
	for _, src := range sources {
		n += src.PageCount()
	}
	descriptors := make([]models.PageDescriptor, 0, n)
	position := 0
	for sourceIndex, src := range sources {
		for pageIndex, page := range src.pages {
			position++
			descriptors = append(descriptors, models.PageDescriptor{
				ID:            uuid.NewString(),
				SourceIndex:   sourceIndex,
				OriginalIndex: pageIndex,
				Position:      position,
				Rotation:      page.Rotation,
			})
		}
	}
	return descriptors
}
