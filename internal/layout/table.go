package layout

import (
	"image"
	"sort"

	"github.com/fieldops/ticketscan/internal/imgproc"
	"github.com/fieldops/ticketscan/internal/utils"
)

// TableConfig holds thresholds for morphological table reconstruction.
// The values are empirically tuned; they are exposed as configuration
// rather than re-derived.
type TableConfig struct {
	MinAreaFrac   float64 // outer border must exceed this fraction of page area
	RowOverlap    float64 // min vertical-span overlap ratio for same-row grouping
	MinCellArea   float64 // cells smaller than this are discarded
	MinCellSide   float64 // cells narrower/shorter than this are discarded
	CoarseDivisor int     // page dim / divisor = outer line kernel length
	FineDivisor   int     // crop dim / divisor = inner line kernel length
	BoxPadding    float64 // padding applied around the table's outer box
}

// DefaultTableConfig returns the default table detection configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		MinAreaFrac:   0.05,
		RowOverlap:    0.5,
		MinCellArea:   100,
		MinCellSide:   10,
		CoarseDivisor: 15,
		FineDivisor:   10,
		BoxPadding:    10,
	}
}

// CellDetector produces per-cell bounding boxes for the ruled table on a
// preprocessed page, or nil when the page has no table. An external
// object-detection model and the morphological reconstruction below are
// interchangeable behind this interface.
type CellDetector interface {
	DetectCells(bin *image.Gray) ([]utils.Box, error)
}

// MorphDetector reconstructs table cells purely from line morphology:
// long line masks at a coarse scale locate the outer table border, then a
// finer-scale pass inside the cropped border finds the inner cell borders.
type MorphDetector struct {
	cfg TableConfig
}

// NewMorphDetector creates a morphological cell detector.
func NewMorphDetector(cfg TableConfig) *MorphDetector {
	return &MorphDetector{cfg: cfg}
}

// DetectCells implements CellDetector. A nil result with nil error means
// no table was found, which is a valid outcome for pages without one.
func (d *MorphDetector) DetectCells(bin *image.Gray) ([]utils.Box, error) {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	inv := imgproc.Invert(bin)

	coarse := imgproc.LineMask(inv, kernelLen(w, d.cfg.CoarseDivisor, 50), kernelLen(h, d.cfg.CoarseDivisor, 50))
	border := largestComponentBox(coarse)
	if border == nil || border.Area() < d.cfg.MinAreaFrac*float64(w)*float64(h) {
		return nil, nil
	}

	crop := imgproc.Crop(inv, border.ToRect(b))
	cb := crop.Bounds()
	fine := imgproc.LineMask(crop,
		kernelLen(cb.Dx(), d.cfg.FineDivisor, 20),
		kernelLen(cb.Dy(), d.cfg.FineDivisor, 20))

	// Cells are the regions the inner lines partition the crop into.
	cells := imgproc.Components(imgproc.Invert(fine), int(d.cfg.MinCellArea))
	cropArea := float64(cb.Dx()) * float64(cb.Dy())

	var boxes []utils.Box
	for _, c := range cells {
		if c.Box.Width() < d.cfg.MinCellSide || c.Box.Height() < d.cfg.MinCellSide {
			continue
		}
		if c.Box.Area() > 0.9*cropArea {
			continue // unenclosed background, not a cell
		}
		boxes = append(boxes, utils.NewBox(
			c.Box.MinX+border.MinX, c.Box.MinY+border.MinY,
			c.Box.MaxX+border.MinX, c.Box.MaxY+border.MinY))
	}
	if len(boxes) < 2 {
		return nil, nil
	}
	return boxes, nil
}

// DetectTable runs a cell detector and reconstructs the grid structure.
// Returns nil when the detector reports no table.
func DetectTable(bin *image.Gray, det CellDetector, cfg TableConfig) (*TableGrid, error) {
	boxes, err := det.DetectCells(bin)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, nil
	}
	b := bin.Bounds()
	return BuildGrid(boxes, float64(b.Dx()), float64(b.Dy()), cfg), nil
}

// BuildGrid assembles detected cell boxes into a row/column grid. Boxes
// fully contained in a larger box are discarded, rows are formed by greedy
// vertical-overlap grouping, and cells within a row are ordered left to
// right. The invariant that no two cells share a (row, column) pair holds
// by construction.
func BuildGrid(boxes []utils.Box, pageW, pageH float64, cfg TableConfig) *TableGrid {
	boxes = dropContained(boxes)
	if len(boxes) == 0 {
		return nil
	}

	rows := groupRows(boxes, cfg.RowOverlap)

	outer := boxes[0]
	var heightSum float64
	count := 0
	for _, row := range rows {
		for _, box := range row {
			outer = outer.Union(box)
			heightSum += box.Height()
			count++
		}
	}

	return &TableGrid{
		Rows:          rows,
		Box:           outer.Pad(cfg.BoxPadding, pageW, pageH),
		AvgCellHeight: heightSum / float64(count),
	}
}

// groupRows groups boxes into rows: scanning boxes sorted by top-y, a box
// joins the current row when its vertical span overlaps any already-grouped
// box by more than minOverlap relative to the shorter box.
func groupRows(boxes []utils.Box, minOverlap float64) [][]utils.Box {
	sorted := append([]utils.Box(nil), boxes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinY < sorted[j].MinY })

	used := make([]bool, len(sorted))
	var rows [][]utils.Box
	for i, box := range sorted {
		if used[i] {
			continue
		}
		used[i] = true
		row := []utils.Box{box}
		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			if utils.YOverlapRatio(box, sorted[j]) > minOverlap {
				row = append(row, sorted[j])
				used[j] = true
			}
		}
		sort.Slice(row, func(a, b int) bool { return row[a].MinX < row[b].MinX })
		rows = append(rows, row)
	}
	return rows
}

// dropContained removes boxes fully contained within a larger box.
func dropContained(boxes []utils.Box) []utils.Box {
	out := make([]utils.Box, 0, len(boxes))
	for i, b := range boxes {
		contained := false
		for j, other := range boxes {
			if i == j {
				continue
			}
			if other.Contains(b) && other.Area() > b.Area() {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, b)
		}
	}
	return out
}

func kernelLen(dim, divisor, floor int) int {
	k := dim / divisor
	if k < floor {
		k = floor
	}
	return k
}

func largestComponentBox(mask *image.Gray) *utils.Box {
	comps := imgproc.Components(mask, 1)
	if len(comps) == 0 {
		return nil
	}
	best := comps[0].Box
	for _, c := range comps[1:] {
		if c.Box.Area() > best.Area() {
			best = c.Box
		}
	}
	return &best
}
