// Package pdftest builds small but structurally valid PDF documents for
// tests. Pages are given distinct media box dimensions so a test can tell
// which source page ended up where after a merge or reorder without looking
// at content streams.
package pdftest

import (
	"bytes"
	"fmt"
)

// PageSpec describes one page of a generated document.
type PageSpec struct {
	Width  int
	Height int
	Rotate int
}

// Pages returns n page specs with widths base, base+10, base+20, ... so each
// page is identifiable by its media box width.
func Pages(n, base int) []PageSpec {
	specs := make([]PageSpec, n)
	for i := range specs {
		specs[i] = PageSpec{Width: base + 10*i, Height: 800}
	}
	return specs
}

// Doc serializes a document with the given pages. Each page gets its own
// content stream and an explicit media box; a non-zero Rotate lands in the
// page dictionary.
func Doc(pages ...PageSpec) []byte {
	var buf bytes.Buffer
	var offsets []int

	writeObj := func(obj string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	buf.WriteString("%PDF-1.7\n")

	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [ %s] /Count %d >>\nendobj\n", kids.String(), len(pages)))

	for i, p := range pages {
		pageNum := 3 + 2*i
		contentNum := pageNum + 1
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << >> /Contents %d 0 R%s >>\nendobj\n",
			pageNum, p.Width, p.Height, contentNum, rotate))
		stream := "q Q\n"
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n", contentNum, len(stream), stream))
	}

	// Cross-reference entries are exactly 20 bytes each.
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)

	return buf.Bytes()
}
