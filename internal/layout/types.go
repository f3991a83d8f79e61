package layout

import "github.com/fieldops/ticketscan/internal/utils"

// RegionKind classifies a detected region of a page.
type RegionKind string

const (
	TableCell    RegionKind = "table_cell"
	FreeTextCell RegionKind = "free_text_cell"
)

// DetectedRegion is a rectangular area of interest within a page. Row and
// column indices are assigned during grid or line reconstruction, not
// inherent to the pixel data.
type DetectedRegion struct {
	Box  utils.Box
	Kind RegionKind
	Row  int
	Col  int
}

// RecognizedCell pairs a detected region with its recognized text.
type RecognizedCell struct {
	Region DetectedRegion
	Text   string
}

// TableGrid is the geometric reconstruction of a ruled table before any
// text is attached: cell boxes grouped into rows, the table's outer box,
// and the average cell height used as interleaving tolerance.
type TableGrid struct {
	Rows          [][]utils.Box
	Box           utils.Box
	AvgCellHeight float64
}

// TopY returns the pixel y-coordinate of the table's top edge.
func (g *TableGrid) TopY() float64 { return g.Box.MinY }

// PageTable is a table with recognized cell text filled in. Absent tables
// are represented by a nil *PageTable.
type PageTable struct {
	Rows          [][]string
	TopY          float64
	AvgCellHeight float64
}

// TextLine is one non-tabular text line: its cell texts ordered left to
// right and the pixel y-coordinate of its top edge.
type TextLine struct {
	Cells []string
	Y     float64
}

// LineRegion is a text line before recognition: the padded crop boxes of
// its cells and the line's y-coordinate.
type LineRegion struct {
	Cells []utils.Box
	Y     float64
}
