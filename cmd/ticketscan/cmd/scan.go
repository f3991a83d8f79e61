package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldops/ticketscan/internal/layout"
	"github.com/fieldops/ticketscan/internal/recognize"
	"github.com/fieldops/ticketscan/internal/scan"
	"github.com/fieldops/ticketscan/internal/ticket"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [flags] image...",
	Short: "Run the ticket pipeline on page images without a database",
	Long: `Process one or more scanned ticket pages locally and print the result.

All images are treated as pages of a single ticket. The combined PDF is
written to the output directory; the recognized text and extracted fields
go to stdout.

Examples:
  ticketscan scan ticket.jpg
  ticketscan scan page1.png page2.png --format json -o ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

// localStore satisfies the pipeline's store without persisting anything,
// so the scan command works with no database around.
type localStore struct {
	record *ticket.Record
}

func (s *localStore) InsertTicket(_ context.Context, r *ticket.Record) error {
	r.ID = 1
	s.record = r
	return nil
}

func (s *localStore) TicketNumberExists(context.Context, string) (bool, error) {
	return false, nil
}

func (s *localStore) TicketNumbersWithBase(context.Context, string) ([]string, error) {
	return nil, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	recCfg := cfg.Recognizer.ONNXConfig()
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		recCfg.ModelPath = v
	}
	if v, _ := cmd.Flags().GetString("dict"); v != "" {
		recCfg.DictPath = v
	}
	if v, _ := cmd.Flags().GetString("onnx-lib"); v != "" {
		recCfg.LibraryPath = v
	}
	outputDir, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	model, err := recognize.NewONNXModel(recCfg)
	if err != nil {
		return fmt.Errorf("failed to load recognition model: %w", err)
	}
	recognizer := recognize.NewBatchRecognizer(model, slog.Default())
	defer func() { _ = recognizer.Close() }()

	var files []scan.File
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, scan.File{Name: filepath.Base(path), Data: data})
	}

	store := &localStore{}
	pipeline := scan.NewPipeline(scan.Config{
		Table:    cfg.Pipeline.TableConfig(),
		Segment:  cfg.Pipeline.SegmentConfig(),
		Enhance:  cfg.Pipeline.EnhanceConfig(),
		MediaDir: outputDir,
	}, layout.NewMorphDetector(cfg.Pipeline.TableConfig()), recognizer, store, nil, slog.Default())

	record, err := pipeline.Process(cmd.Context(), scan.Submission{Files: files})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(scanResult(record))
	}

	fmt.Fprintln(out, record.RawText)
	fmt.Fprintf(out, "PDF: %s\n", record.ImagePath)
	printField(out, "Ticket number", record.TicketNumber)
	printField(out, "Date", record.TicketDate)
	printField(out, "Vendor", record.HaulVendor)
	printField(out, "Truck", record.TruckNumber)
	printField(out, "Material", record.Material)
	printField(out, "Job number", record.JobNumber)
	printField(out, "Phase code", record.PhaseCode)
	printField(out, "Zone", record.Zone)
	if record.Hours != nil {
		fmt.Fprintf(out, "Hours: %g\n", *record.Hours)
	}
	return nil
}

func scanResult(r *ticket.Record) map[string]any {
	return map[string]any{
		"pdf_path":         r.ImagePath,
		"raw_text_content": r.RawText,
		"table_data":       r.TableData,
		"ticket_number":    r.TicketNumber,
		"ticket_date":      r.TicketDate,
		"haul_vendor":      r.HaulVendor,
		"truck_number":     r.TruckNumber,
		"material":         r.Material,
		"job_number":       r.JobNumber,
		"phase_code":       r.PhaseCode,
		"zone":             r.Zone,
		"hours":            r.Hours,
	}
}

func printField(out io.Writer, label string, v *string) {
	if v != nil {
		fmt.Fprintf(out, "%s: %s\n", label, *v)
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("output", "o", ".", "directory for the combined PDF")
	scanCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	scanCmd.Flags().String("model", "", "override recognition model path")
	scanCmd.Flags().String("dict", "", "override recognition dictionary path")
	scanCmd.Flags().String("onnx-lib", "", "override ONNX Runtime shared library path")
}
