// Package config defines the ticketscan configuration and its loading from
// files, environment variables, and defaults.
package config

import (
	"fmt"

	"github.com/fieldops/ticketscan/internal/enhance"
	"github.com/fieldops/ticketscan/internal/layout"
	"github.com/fieldops/ticketscan/internal/recognize"
)

// DefaultConfig returns the configuration used when nothing else is set.
// The pipeline thresholds mirror the package-level defaults so a config
// file only needs to name the values it changes.
func DefaultConfig() Config {
	table := layout.DefaultTableConfig()
	segment := layout.DefaultSegmentConfig()
	enh := enhance.DefaultConfig()
	rec := recognize.DefaultONNXConfig()

	return Config{
		LogLevel: "info",
		MediaDir: "media/ticket_pdfs",
		Pipeline: PipelineConfig{
			Table: TableConfig{
				MinAreaFrac:   table.MinAreaFrac,
				RowOverlap:    table.RowOverlap,
				MinCellArea:   table.MinCellArea,
				MinCellSide:   table.MinCellSide,
				CoarseDivisor: table.CoarseDivisor,
				FineDivisor:   table.FineDivisor,
				BoxPadding:    table.BoxPadding,
			},
			Segment: SegmentConfig{
				MinContourArea:   segment.MinContourArea,
				LineHeightFactor: segment.LineHeightFactor,
				CellGapFactor:    segment.CellGapFactor,
				CropPadding:      segment.CropPadding,
			},
			Enhance: EnhanceConfig{
				TargetHeight: enh.TargetHeight,
				ClipLimit:    enh.ClipLimit,
				TileGrid:     enh.TileGrid,
				MinDensity:   enh.MinDensity,
				MinDimension: enh.MinDimension,
			},
		},
		Recognizer: RecognizerConfig{
			ImageHeight: rec.ImageHeight,
			MaxWidth:    rec.MaxWidth,
		},
		Database: DatabaseConfig{
			DSN: "ticketscan:ticketscan@tcp(localhost:3306)/ticketscan?parseTime=true",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
		Worker: WorkerConfig{
			Workers:   2,
			QueueSize: 64,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Worker.Workers)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Pipeline.Enhance.TargetHeight <= 0 {
		return fmt.Errorf("enhance target_height must be positive, got %d", c.Pipeline.Enhance.TargetHeight)
	}
	if c.Pipeline.Table.RowOverlap <= 0 || c.Pipeline.Table.RowOverlap >= 1 {
		return fmt.Errorf("table row_overlap must be in (0,1), got %g", c.Pipeline.Table.RowOverlap)
	}
	return nil
}

// TableConfig converts to the layout package's form.
func (c *PipelineConfig) TableConfig() layout.TableConfig {
	return layout.TableConfig{
		MinAreaFrac:   c.Table.MinAreaFrac,
		RowOverlap:    c.Table.RowOverlap,
		MinCellArea:   c.Table.MinCellArea,
		MinCellSide:   c.Table.MinCellSide,
		CoarseDivisor: c.Table.CoarseDivisor,
		FineDivisor:   c.Table.FineDivisor,
		BoxPadding:    c.Table.BoxPadding,
	}
}

// SegmentConfig converts to the layout package's form.
func (c *PipelineConfig) SegmentConfig() layout.SegmentConfig {
	cfg := layout.DefaultSegmentConfig()
	cfg.MinContourArea = c.Segment.MinContourArea
	cfg.LineHeightFactor = c.Segment.LineHeightFactor
	cfg.CellGapFactor = c.Segment.CellGapFactor
	cfg.CropPadding = c.Segment.CropPadding
	return cfg
}

// EnhanceConfig converts to the enhance package's form.
func (c *PipelineConfig) EnhanceConfig() enhance.Config {
	return enhance.Config{
		TargetHeight: c.Enhance.TargetHeight,
		ClipLimit:    c.Enhance.ClipLimit,
		TileGrid:     c.Enhance.TileGrid,
		MinDensity:   c.Enhance.MinDensity,
		MinDimension: c.Enhance.MinDimension,
	}
}

// ONNXConfig converts to the recognize package's form.
func (c *RecognizerConfig) ONNXConfig() recognize.ONNXConfig {
	return recognize.ONNXConfig{
		ModelPath:   c.ModelPath,
		DictPath:    c.DictPath,
		ImageHeight: c.ImageHeight,
		MaxWidth:    c.MaxWidth,
		NumThreads:  c.NumThreads,
		LibraryPath: c.LibraryPath,
	}
}
