package layout

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drawBlob(g *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			g.Pix[y*g.Stride+x] = 0
		}
	}
}

func TestSegmentLinesGroupsAndSplits(t *testing.T) {
	page := whitePage(300, 100)
	// First line: two words close together, then one after a wide gap.
	drawBlob(page, 10, 10, 30, 20)
	drawBlob(page, 35, 10, 55, 20)
	drawBlob(page, 110, 10, 130, 20)
	// Second line, well below the first.
	drawBlob(page, 10, 50, 40, 60)

	lines := SegmentLines(page, DefaultSegmentConfig())

	require.Len(t, lines, 2)
	assert.Less(t, lines[0].Y, lines[1].Y)
	// Word widths average 20px, so the 55px gap splits a cell while the
	// 5px gap does not.
	assert.Len(t, lines[0].Cells, 2)
	assert.Len(t, lines[1].Cells, 1)
}

func TestSegmentLinesPadsCropBoxes(t *testing.T) {
	page := whitePage(200, 100)
	drawBlob(page, 50, 40, 90, 55)

	lines := SegmentLines(page, DefaultSegmentConfig())

	require.Len(t, lines, 1)
	require.Len(t, lines[0].Cells, 1)
	cell := lines[0].Cells[0]
	assert.InDelta(t, 40, cell.MinX, 1e-9)
	assert.InDelta(t, 30, cell.MinY, 1e-9)
	assert.InDelta(t, 100, cell.MaxX, 1e-9)
	assert.InDelta(t, 65, cell.MaxY, 1e-9)
}

func TestSegmentLinesIgnoresNoise(t *testing.T) {
	page := whitePage(200, 100)
	drawBlob(page, 10, 10, 13, 13) // 9px, below the contour floor

	assert.Nil(t, SegmentLines(page, DefaultSegmentConfig()))
}

func TestSegmentLinesEmptyPage(t *testing.T) {
	assert.Nil(t, SegmentLines(whitePage(100, 100), DefaultSegmentConfig()))
}
