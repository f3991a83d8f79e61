package layout

import (
	"image"
	"sort"

	"github.com/fieldops/ticketscan/internal/imgproc"
	"github.com/fieldops/ticketscan/internal/utils"
)

// SegmentConfig holds thresholds for free-text line segmentation. As with
// table detection, the constants are empirically tuned and kept
// configurable instead of re-derived.
type SegmentConfig struct {
	MinContourArea   int     // word blobs below this pixel count are noise
	LineHeightFactor float64 // center distance per avg glyph height for same-line grouping
	CellGapFactor    float64 // gaps beyond this many avg glyph widths split cells
	CropPadding      float64 // padding around each cell crop
	HeightSample     int     // number of leading boxes sampled for avg glyph height
}

// DefaultSegmentConfig returns the default segmentation configuration.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		MinContourArea:   15,
		LineHeightFactor: 1.0,
		CellGapFactor:    2.0,
		CropPadding:      10,
		HeightSample:     50,
	}
}

// SegmentLines finds word-level components outside the table area, groups
// them into text lines by vertical proximity, and splits each line into
// cells wherever the horizontal gap between consecutive words exceeds the
// configured multiple of the average glyph width. The input page should
// already have any table area whited out and ruling lines removed.
func SegmentLines(bin *image.Gray, cfg SegmentConfig) []LineRegion {
	comps := imgproc.Components(imgproc.Invert(bin), cfg.MinContourArea)
	if len(comps) == 0 {
		return nil
	}

	words := make([]utils.Box, len(comps))
	for i, c := range comps {
		words[i] = c.Box
	}
	sort.Slice(words, func(i, j int) bool { return words[i].MinY < words[j].MinY })

	avgHeight := averageHeight(words, cfg.HeightSample)
	lines := groupLines(words, avgHeight*cfg.LineHeightFactor)
	gap := averageWidth(words, avgHeight) * cfg.CellGapFactor

	b := bin.Bounds()
	pageW, pageH := float64(b.Dx()), float64(b.Dy())

	out := make([]LineRegion, 0, len(lines))
	for _, line := range lines {
		cells := splitCells(line, gap)
		region := LineRegion{Y: line[0].MinY}
		for _, cellWords := range cells {
			box := cellWords[0]
			for _, wb := range cellWords[1:] {
				box = box.Union(wb)
			}
			region.Cells = append(region.Cells, box.Pad(cfg.CropPadding, pageW, pageH))
		}
		out = append(out, region)
	}
	return out
}

// groupLines walks word boxes in y-order; a box joins the current line when
// its vertical center is within tolerance of the previous box's center.
func groupLines(words []utils.Box, tolerance float64) [][]utils.Box {
	var lines [][]utils.Box
	current := []utils.Box{words[0]}
	for _, box := range words[1:] {
		last := current[len(current)-1]
		if abs(box.CenterY()-last.CenterY()) < tolerance {
			current = append(current, box)
		} else {
			lines = append(lines, sortByX(current))
			current = []utils.Box{box}
		}
	}
	lines = append(lines, sortByX(current))
	return lines
}

// splitCells splits an x-sorted line of word boxes into cells at gaps wider
// than gapThreshold.
func splitCells(line []utils.Box, gapThreshold float64) [][]utils.Box {
	cells := [][]utils.Box{{line[0]}}
	for i := 1; i < len(line); i++ {
		gap := line[i].MinX - line[i-1].MaxX
		if gap > gapThreshold {
			cells = append(cells, []utils.Box{line[i]})
		} else {
			last := len(cells) - 1
			cells[last] = append(cells[last], line[i])
		}
	}
	return cells
}

// averageHeight samples the first n boxes (already y-sorted) for the
// average glyph height.
func averageHeight(words []utils.Box, n int) float64 {
	if len(words) < n {
		n = len(words)
	}
	if n == 0 {
		return 20
	}
	var sum float64
	for _, box := range words[:n] {
		sum += box.Height()
	}
	return sum / float64(n)
}

// averageWidth averages the width of boxes at least half the average glyph
// height tall, so punctuation and noise fragments don't skew the estimate.
func averageWidth(words []utils.Box, avgHeight float64) float64 {
	var sum float64
	count := 0
	for _, box := range words {
		if box.Height() > avgHeight*0.5 {
			sum += box.Width()
			count++
		}
	}
	if count == 0 {
		return 10
	}
	return sum / float64(count)
}

func sortByX(boxes []utils.Box) []utils.Box {
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].MinX < boxes[j].MinX })
	return boxes
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
