// Package scan orchestrates the full ticket pipeline for one submission:
// decode, preprocess, table and line segmentation, recognition, reassembly,
// field extraction, version resolution, and persistence.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/fieldops/ticketscan/internal/assemble"
	"github.com/fieldops/ticketscan/internal/enhance"
	"github.com/fieldops/ticketscan/internal/extract"
	"github.com/fieldops/ticketscan/internal/imgproc"
	"github.com/fieldops/ticketscan/internal/layout"
	"github.com/fieldops/ticketscan/internal/notify"
	"github.com/fieldops/ticketscan/internal/recognize"
	"github.com/fieldops/ticketscan/internal/ticket"
)

// cellPadding is the extra margin around each table cell crop.
const cellPadding = 2

// ErrNoValidPages is returned when every page of a submission fails to decode.
var ErrNoValidPages = errors.New("scan: no valid page images")

// Store is the slice of the ticket store the pipeline needs.
type Store interface {
	InsertTicket(ctx context.Context, r *ticket.Record) error
	TicketNumberExists(ctx context.Context, number string) (bool, error)
	TicketNumbersWithBase(ctx context.Context, base string) ([]string, error)
}

// File is one uploaded page image.
type File struct {
	Name string
	Data []byte
}

// Submission is the validated input to one pipeline run.
type Submission struct {
	ForemanID   int64
	Timesheet   ticket.Timesheet
	Category    string
	SubCategory string
	Files       []File
}

// Config holds the pipeline's tuning knobs.
type Config struct {
	Table    layout.TableConfig
	Segment  layout.SegmentConfig
	Enhance  enhance.Config
	MediaDir string
}

// Pipeline processes submissions end to end. One Process call handles one
// submission sequentially; separate submissions may run concurrently since
// the pipeline keeps no per-run state.
type Pipeline struct {
	cfg        Config
	detector   layout.CellDetector
	recognizer *recognize.BatchRecognizer
	store      Store
	notifier   notify.Notifier
	logger     *slog.Logger
}

// NewPipeline wires the pipeline's collaborators together.
func NewPipeline(cfg Config, detector layout.CellDetector, rec *recognize.BatchRecognizer,
	store Store, notifier notify.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		detector:   detector,
		recognizer: rec,
		store:      store,
		notifier:   notifier,
		logger:     logger,
	}
}

// Process runs the full pipeline for one submission and returns the
// persisted record. All temporary files live in a per-run directory that
// is removed on every exit path.
func (p *Pipeline) Process(ctx context.Context, sub Submission) (*ticket.Record, error) {
	workDir, err := os.MkdirTemp("", "ticketscan-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn("failed to remove work dir", "dir", workDir, "error", err)
		}
	}()

	var decoded []image.Image
	var pages []assemble.Page
	for i, file := range sub.Files {
		img, err := imaging.Decode(bytes.NewReader(file.Data))
		if err != nil {
			p.logger.Warn("skipping undecodable page",
				"page", i+1, "file", file.Name, "error", err)
			continue
		}
		decoded = append(decoded, img)

		// Numbered by upload position so separators stay aligned with the
		// submitted order even when a page is skipped.
		page, err := p.processPage(ctx, img, i+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	if len(decoded) == 0 {
		return nil, ErrNoValidPages
	}

	text := assemble.Document(pages)
	grid := assemble.TableData(pages)
	fields := extract.Extract(text)

	var detected string
	duplicate := false
	if fields.TicketNumber != nil {
		detected = *fields.TicketNumber
		assigned, dup, err := ticket.ResolveNumber(ctx, p.store, detected)
		if err != nil {
			return nil, fmt.Errorf("resolve ticket number: %w", err)
		}
		fields.TicketNumber = &assigned
		duplicate = dup
		if dup {
			duplicateNumbersTotal.Inc()
		}
	}

	pdfPath, err := BuildPDF(decoded, workDir, p.cfg.MediaDir, p.artifactName(sub))
	if err != nil {
		return nil, err
	}

	record := &ticket.Record{
		ForemanID:    sub.ForemanID,
		TimesheetID:  sub.Timesheet.ID,
		JobPhaseID:   sub.Timesheet.JobPhaseID,
		Category:     sub.Category,
		SubCategory:  sub.SubCategory,
		ImagePath:    pdfPath,
		RawText:      text,
		TableData:    grid,
		TicketNumber: fields.TicketNumber,
		TicketDate:   fields.TicketDate,
		HaulVendor:   fields.HaulVendor,
		TruckNumber:  fields.TruckNumber,
		Material:     fields.Material,
		JobNumber:    fields.JobNumber,
		PhaseCode:    fields.PhaseCode,
		Zone:         fields.Zone,
		Hours:        fields.Hours,
	}
	if err := p.store.InsertTicket(ctx, record); err != nil {
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	if p.notifier != nil {
		assigned := ""
		if record.TicketNumber != nil {
			assigned = *record.TicketNumber
		}
		if duplicate {
			p.notifier.DuplicateTicket(sub.ForemanID, record.ID, detected, assigned)
		} else {
			p.notifier.TicketProcessed(sub.ForemanID, record.ID, assigned)
		}
	}

	p.logger.Info("submission processed",
		"ticket_id", record.ID,
		"foreman_id", sub.ForemanID,
		"pages", len(decoded),
		"duplicate", duplicate)
	return record, nil
}

// processPage runs segmentation and recognition for one decoded page.
func (p *Pipeline) processPage(ctx context.Context, img image.Image, number int) (assemble.Page, error) {
	page := assemble.Page{Number: number}

	bin, err := imgproc.Preprocess(img)
	if err != nil {
		return page, fmt.Errorf("preprocess page %d: %w", number, err)
	}

	grid, err := layout.DetectTable(bin, p.detector, p.cfg.Table)
	if err != nil {
		return page, fmt.Errorf("detect table on page %d: %w", number, err)
	}
	if grid != nil {
		page.Table = p.recognizeTable(ctx, bin, grid)
		// White out the table so its text is not picked up again as
		// free text.
		imgproc.FillRect(bin, grid.Box.ToRect(bin.Bounds()), 255)
	}

	cleaned := imgproc.RemoveLines(bin)
	page.Lines = p.recognizeLines(ctx, cleaned, layout.SegmentLines(cleaned, p.cfg.Segment))
	return page, nil
}

// recognizeTable crops, enhances, and recognizes every cell of a detected
// grid. Rejected (blank) cells keep their place as empty strings so the
// grid shape survives.
func (p *Pipeline) recognizeTable(ctx context.Context, bin *image.Gray, grid *layout.TableGrid) *layout.PageTable {
	cleaned := imgproc.RemoveLines(bin)
	b := cleaned.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	var crops []image.Image
	type pos struct{ row, col int }
	var positions []pos

	rows := make([][]string, len(grid.Rows))
	for i, row := range grid.Rows {
		rows[i] = make([]string, len(row))
		for j, box := range row {
			crop := imgproc.Crop(cleaned, box.Pad(cellPadding, w, h).ToRect(b))
			if cell := enhance.Cell(crop, p.cfg.Enhance); cell != nil {
				crops = append(crops, cell)
				positions = append(positions, pos{i, j})
			}
		}
	}

	texts := p.recognize(ctx, crops)
	for k, text := range texts {
		rows[positions[k].row][positions[k].col] = strings.TrimSpace(text)
	}

	return &layout.PageTable{
		Rows:          rows,
		TopY:          grid.TopY(),
		AvgCellHeight: grid.AvgCellHeight,
	}
}

// recognizeLines enhances and recognizes the free-text line cells.
func (p *Pipeline) recognizeLines(ctx context.Context, cleaned *image.Gray, regions []layout.LineRegion) []layout.TextLine {
	if len(regions) == 0 {
		return nil
	}
	b := cleaned.Bounds()

	var crops []image.Image
	type pos struct{ line, cell int }
	var positions []pos

	lines := make([]layout.TextLine, len(regions))
	for i, region := range regions {
		lines[i] = layout.TextLine{Cells: make([]string, len(region.Cells)), Y: region.Y}
		for j, box := range region.Cells {
			crop := imgproc.Crop(cleaned, box.ToRect(b))
			if cell := enhance.Cell(crop, p.cfg.Enhance); cell != nil {
				crops = append(crops, cell)
				positions = append(positions, pos{i, j})
			}
		}
	}

	texts := p.recognize(ctx, crops)
	for k, text := range texts {
		lines[positions[k].line].Cells[positions[k].cell] = strings.TrimSpace(text)
	}
	return lines
}

// recognize times one batched model call.
func (p *Pipeline) recognize(ctx context.Context, crops []image.Image) []string {
	if len(crops) == 0 {
		return nil
	}
	start := time.Now()
	texts := p.recognizer.Recognize(ctx, crops)
	recognitionDuration.Observe(time.Since(start).Seconds())
	return texts
}

// artifactName derives the PDF base name from the first uploaded filename,
// the foreman, and a timestamp, mirroring how operators find artifacts on
// disk later.
func (p *Pipeline) artifactName(sub Submission) string {
	raw := "scanned_doc"
	if len(sub.Files) > 0 && sub.Files[0].Name != "" {
		base := filepath.Base(sub.Files[0].Name)
		raw = strings.TrimSuffix(base, filepath.Ext(base))
	}
	name := TrimPageSuffix(SanitizeFilename(raw))
	return fmt.Sprintf("%s_f%d_%s", time.Now().Format("20060102150405"), sub.ForemanID, name)
}
