// Package assemble merges recognized table rows and free-text lines back
// into document order and renders the combined text blob for a submission.
package assemble

import (
	"fmt"
	"strings"

	"github.com/fieldops/ticketscan/internal/extract"
	"github.com/fieldops/ticketscan/internal/layout"
)

// tableMargin shifts the insertion point slightly above the table's top
// edge, in units of average cell height, to absorb detection jitter.
const tableMargin = 0.8

// tableRowCells is the non-empty-cell count that marks a row as
// structurally tabular during sandwich correction.
const tableRowCells = 8

// EmptyDocumentText is persisted when a submission yields no text at all,
// so the upload survives and the operator can fill fields in manually.
const EmptyDocumentText = "No text could be extracted from the document."

// Page holds the recognized content of one submitted page.
type Page struct {
	Number int
	Table  *layout.PageTable
	Lines  []layout.TextLine
}

// MergeRows interleaves a page's table rows among its free-text lines by
// vertical position. The table is spliced in, whole and exactly once,
// before the first line whose y-coordinate reaches the table's top edge
// minus the jitter margin; if no line reaches it, the table goes at the
// end. Lines are expected in y-order.
func MergeRows(p Page) [][]string {
	var rows [][]string
	inserted := p.Table == nil

	var threshold float64
	if p.Table != nil {
		threshold = p.Table.TopY - tableMargin*p.Table.AvgCellHeight
	}
	for _, line := range p.Lines {
		if !inserted && line.Y >= threshold {
			rows = append(rows, p.Table.Rows...)
			inserted = true
		}
		rows = append(rows, line.Cells)
	}
	if !inserted {
		rows = append(rows, p.Table.Rows...)
	}
	return fixSandwichedHeader(rows)
}

// fixSandwichedHeader moves a stray single-cell caption that landed
// directly above the table span to just after the table's last row. Rows
// with many non-empty cells anchor the span.
func fixSandwichedHeader(rows [][]string) [][]string {
	first, last := -1, -1
	for i, row := range rows {
		if nonEmptyCells(row) >= tableRowCells {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first <= 0 || nonEmptyCells(rows[first-1]) != 1 {
		return rows
	}

	moved := rows[first-1]
	out := make([][]string, 0, len(rows))
	out = append(out, rows[:first-1]...)
	out = append(out, rows[first:last+1]...)
	out = append(out, moved)
	out = append(out, rows[last+1:]...)
	return out
}

// PadRows pads every row with empty cells to the widest row's width so the
// stored grid is rectangular.
func PadRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}

// Document renders the merged pages as the persisted text blob. Currency
// correction is applied per cell before anything downstream sees the text.
func Document(pages []Page) string {
	var sb strings.Builder
	for _, p := range pages {
		merged := MergeRows(p)
		if len(merged) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n--- PAGE %d ---\n", p.Number)
		for _, row := range merged {
			corrected := make([]string, len(row))
			for i, cell := range row {
				corrected[i] = extract.CorrectCurrency(cell)
			}
			sb.WriteString(strings.Join(corrected, " | "))
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 {
		return EmptyDocumentText
	}
	return sb.String()
}

// TableData collects the recognized table rows of every page into one
// rectangular, currency-corrected grid for persistence. Free-text lines are
// not part of the structured grid.
func TableData(pages []Page) [][]string {
	var grid [][]string
	for _, p := range pages {
		if p.Table == nil {
			continue
		}
		for _, row := range p.Table.Rows {
			corrected := make([]string, len(row))
			for i, cell := range row {
				corrected[i] = extract.CorrectCurrency(cell)
			}
			grid = append(grid, corrected)
		}
	}
	if len(grid) == 0 {
		return nil
	}
	return PadRows(grid)
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
