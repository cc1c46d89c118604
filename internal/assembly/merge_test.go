package assembly_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgarciait/fast-sign-ch-sub003/internal/assembly"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/models"
	"github.com/jgarciait/fast-sign-ch-sub003/internal/pdftest"
)

func provenanceOf(descriptors []models.PageDescriptor) [][2]int {
	out := make([][2]int, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, [2]int{d.SourceIndex, d.OriginalIndex})
	}
	return out
}

func requireDescriptorBasics(t *testing.T, descriptors []models.PageDescriptor, wantLen int) {
	t.Helper()
	require.Len(t, descriptors, wantLen)
	ids := make(map[string]struct{}, wantLen)
	for i, d := range descriptors {
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, i+1, d.Position)
		ids[d.ID] = struct{}{}
	}
	assert.Len(t, ids, wantLen, "descriptor ids must be unique")
}

func TestMergeAppendsAtEnd(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(2, 500)...)
	extra := pdftest.Doc(pdftest.Pages(3, 600)...)

	out, descriptors, warnings, err := assembly.Merge(main, [][]byte{extra}, assembly.InsertAtEnd)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Equal(t, 5, out.PageCount())
	assert.InDeltaSlice(t, []float64{500, 510, 600, 610, 620}, widthsOf(out), 0.01)

	requireDescriptorBasics(t, descriptors, 5)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {1, 2}}, provenanceOf(descriptors))
}

func TestMergePrependsAtStart(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(2, 500)...)
	extra := pdftest.Doc(pdftest.Pages(3, 600)...)

	out, descriptors, warnings, err := assembly.Merge(main, [][]byte{extra}, assembly.InsertAtStart)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Equal(t, 5, out.PageCount())
	assert.InDeltaSlice(t, []float64{600, 610, 620, 500, 510}, widthsOf(out), 0.01)

	// Source indexes follow final layout order: the prepended block is 0.
	requireDescriptorBasics(t, descriptors, 5)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}}, provenanceOf(descriptors))
}

func TestMergeMultipleAdditionals(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(1, 500)...)
	extraA := pdftest.Doc(pdftest.Pages(2, 600)...)
	extraB := pdftest.Doc(pdftest.Pages(1, 700)...)

	out, descriptors, _, err := assembly.Merge(main, [][]byte{extraA, extraB}, assembly.InsertAtEnd)
	require.NoError(t, err)

	require.Equal(t, 4, out.PageCount())
	assert.InDeltaSlice(t, []float64{500, 600, 610, 700}, widthsOf(out), 0.01)
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {1, 1}, {2, 0}}, provenanceOf(descriptors))
}

func TestMergeWithoutAdditionalsPassesMainThrough(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(2, 500)...)

	out, descriptors, warnings, err := assembly.Merge(main, nil, assembly.InsertAtEnd)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.True(t, bytes.Equal(main.Bytes(), out.Bytes()), "main document bytes must pass through untouched")
	requireDescriptorBasics(t, descriptors, 2)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}}, provenanceOf(descriptors))
}

func TestMergeSkipsInvalidAdditional(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(2, 500)...)
	extra := pdftest.Doc(pdftest.Pages(3, 600)...)

	out, descriptors, warnings, err := assembly.Merge(main, [][]byte{[]byte("junk"), extra}, assembly.InsertAtEnd)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "additional document 0")

	// The skipped buffer consumes no source index.
	require.Equal(t, 5, out.PageCount())
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {1, 2}}, provenanceOf(descriptors))
}

func TestMergeAllAdditionalsInvalidPassesMainThrough(t *testing.T) {
	main := loadDoc(t, pdftest.Pages(2, 500)...)

	out, descriptors, warnings, err := assembly.Merge(main, [][]byte{[]byte("junk"), nil}, assembly.InsertAtEnd)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	assert.True(t, bytes.Equal(main.Bytes(), out.Bytes()))
	requireDescriptorBasics(t, descriptors, 2)
}

func TestMergeCarriesRotationsIntoDescriptors(t *testing.T) {
	main := loadDoc(t,
		pdftest.PageSpec{Width: 500, Height: 700},
		pdftest.PageSpec{Width: 510, Height: 700, Rotate: 90},
	)
	extra := pdftest.Doc(pdftest.PageSpec{Width: 600, Height: 700, Rotate: 180})

	out, descriptors, _, err := assembly.Merge(main, [][]byte{extra}, assembly.InsertAtEnd)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 90, 180}, rotationsOf(out))
	require.Len(t, descriptors, 3)
	assert.Equal(t, 0, descriptors[0].Rotation)
	assert.Equal(t, 90, descriptors[1].Rotation)
	assert.Equal(t, 180, descriptors[2].Rotation)
}

func TestMergeRequiresMainDocument(t *testing.T) {
	_, _, _, err := assembly.Merge(nil, nil, assembly.InsertAtEnd)
	require.Error(t, err)

	var vErr *assembly.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestParseInsertPosition(t *testing.T) {
	pos, err := assembly.ParseInsertPosition("")
	require.NoError(t, err)
	assert.Equal(t, assembly.InsertAtEnd, pos)

	pos, err = assembly.ParseInsertPosition("start")
	require.NoError(t, err)
	assert.Equal(t, assembly.InsertAtStart, pos)

	pos, err = assembly.ParseInsertPosition("end")
	require.NoError(t, err)
	assert.Equal(t, assembly.InsertAtEnd, pos)

	_, err = assembly.ParseInsertPosition("middle")
	require.Error(t, err)
}
