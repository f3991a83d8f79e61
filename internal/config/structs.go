package config

// Config is the complete configuration for the ticketscan service and CLI,
// loadable from configuration files, environment variables, and flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// MediaDir is where combined ticket PDFs are written.
	MediaDir string `mapstructure:"media_dir" yaml:"media_dir" json:"media_dir"`

	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database" json:"database"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Worker     WorkerConfig     `mapstructure:"worker" yaml:"worker" json:"worker"`
}

// PipelineConfig contains the segmentation and enhancement thresholds.
type PipelineConfig struct {
	Table   TableConfig   `mapstructure:"table" yaml:"table" json:"table"`
	Segment SegmentConfig `mapstructure:"segment" yaml:"segment" json:"segment"`
	Enhance EnhanceConfig `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
}

// TableConfig contains table detection settings.
type TableConfig struct {
	MinAreaFrac   float64 `mapstructure:"min_area_frac" yaml:"min_area_frac" json:"min_area_frac"`
	RowOverlap    float64 `mapstructure:"row_overlap" yaml:"row_overlap" json:"row_overlap"`
	MinCellArea   float64 `mapstructure:"min_cell_area" yaml:"min_cell_area" json:"min_cell_area"`
	MinCellSide   float64 `mapstructure:"min_cell_side" yaml:"min_cell_side" json:"min_cell_side"`
	CoarseDivisor int     `mapstructure:"coarse_divisor" yaml:"coarse_divisor" json:"coarse_divisor"`
	FineDivisor   int     `mapstructure:"fine_divisor" yaml:"fine_divisor" json:"fine_divisor"`
	BoxPadding    float64 `mapstructure:"box_padding" yaml:"box_padding" json:"box_padding"`
}

// SegmentConfig contains free-text segmentation settings.
type SegmentConfig struct {
	MinContourArea   int     `mapstructure:"min_contour_area" yaml:"min_contour_area" json:"min_contour_area"`
	LineHeightFactor float64 `mapstructure:"line_height_factor" yaml:"line_height_factor" json:"line_height_factor"`
	CellGapFactor    float64 `mapstructure:"cell_gap_factor" yaml:"cell_gap_factor" json:"cell_gap_factor"`
	CropPadding      float64 `mapstructure:"crop_padding" yaml:"crop_padding" json:"crop_padding"`
}

// EnhanceConfig contains cell enhancement settings.
type EnhanceConfig struct {
	TargetHeight int     `mapstructure:"target_height" yaml:"target_height" json:"target_height"`
	ClipLimit    float64 `mapstructure:"clip_limit" yaml:"clip_limit" json:"clip_limit"`
	TileGrid     int     `mapstructure:"tile_grid" yaml:"tile_grid" json:"tile_grid"`
	MinDensity   float64 `mapstructure:"min_density" yaml:"min_density" json:"min_density"`
	MinDimension int     `mapstructure:"min_dimension" yaml:"min_dimension" json:"min_dimension"`
}

// RecognizerConfig contains handwriting recognition model settings.
type RecognizerConfig struct {
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath    string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth    int    `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
}

// DatabaseConfig contains MySQL connection settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// WorkerConfig contains background scan worker settings.
type WorkerConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
}
