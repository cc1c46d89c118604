package models

// PageDescriptor identifies one page of an assembled document. SourceIndex and
// OriginalIndex record provenance: which source document the page came from
// (numbered in the order the sources were laid into the output) and the page's
// 0-based index within that source. Position is the 1-based display position in
// the assembled document and is renumbered to a contiguous 1..N sequence after
// every merge or reorder. Rotation is the page's absolute rotation in degrees.
//
// Sorting a complete descriptor set by (SourceIndex, OriginalIndex) recovers
// the order in which the pages were laid into the current byte buffer, which is
// how the reorder engine resolves a descriptor back to a buffer index.
type PageDescriptor struct {
	ID            string `json:"id"`
	SourceIndex   int    `json:"sourceIndex"`
	OriginalIndex int    `json:"originalIndex"`
	Position      int    `json:"position"`
	Rotation      int    `json:"rotation"`
}
