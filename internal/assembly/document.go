package assembly

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// US Letter in points, used when a page carries no usable media box.
const (
	fallbackPageWidth  = 612.0
	fallbackPageHeight = 792.0
)

// PageInfo describes one page of a loaded document.
type PageInfo struct {
	Rotation int     // normalized to 0, 90, 180 or 270
	Width    float64 // media box width in points
	Height   float64 // media box height in points
}

// Document is a page-addressable view over a serialized PDF buffer.
// Transforms never mutate a Document; they return a new one, so a caller
// can keep the input around for retries or comparisons.
type Document struct {
	data  []byte
	pages []PageInfo
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func readContext(data []byte) (*model.Context, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, &ParseError{Reason: "document is not a valid PDF", Err: err}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &ParseError{Reason: "document has no readable page tree", Err: err}
	}
	return ctx, nil
}

// Load parses raw bytes into a Document. The buffer is retained as-is, not
// copied; callers must not modify it afterwards.
func Load(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &ParseError{Reason: "document buffer is empty"}
	}
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}
	pages, err := collectPageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &Document{data: data, pages: pages}, nil
}

func collectPageInfo(ctx *model.Context) ([]PageInfo, error) {
	pages := make([]PageInfo, 0, ctx.PageCount)
	for nr := 1; nr <= ctx.PageCount; nr++ {
		_, _, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("page %d is unreadable", nr), Err: err}
		}
		info := PageInfo{Width: fallbackPageWidth, Height: fallbackPageHeight}
		if inh != nil {
			info.Rotation = NormalizeRotation(inh.Rotate)
			box := inh.MediaBox
			if box == nil {
				box = inh.CropBox
			}
			if box != nil {
				info.Width = box.Width()
				info.Height = box.Height()
			}
		}
		pages = append(pages, info)
	}
	return pages, nil
}

// Bytes returns the serialized document.
func (d *Document) Bytes() []byte { return d.data }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the metadata of the 1-indexed page nr.
func (d *Document) Page(nr int) (PageInfo, error) {
	if nr < 1 || nr > len(d.pages) {
		return PageInfo{}, &ValidationError{Reason: fmt.Sprintf("page %d out of range [1, %d]", nr, len(d.pages))}
	}
	return d.pages[nr-1], nil
}

// Pages returns the metadata of every page in buffer order.
func (d *Document) Pages() []PageInfo {
	out := make([]PageInfo, len(d.pages))
	copy(out, d.pages)
	return out
}

// NormalizeRotation maps any multiple of 90, including negatives and values
// beyond a full turn, onto {0, 90, 180, 270}.
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ValidRotation reports whether deg is a quarter-turn multiple.
func ValidRotation(deg int) bool {
	return deg%90 == 0
}
