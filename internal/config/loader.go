package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "ticketscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "TICKETSCAN"
)

// Loader handles loading configuration from files and the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader on the global viper instance so
// cobra flag bindings take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths, environment variables,
// and defaults, then validates the result. A missing config file is fine;
// defaults and environment variables carry the load.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/ticketscan")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "ticketscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "ticketscan"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("media_dir", defaults.MediaDir)

	l.v.SetDefault("pipeline.table.min_area_frac", defaults.Pipeline.Table.MinAreaFrac)
	l.v.SetDefault("pipeline.table.row_overlap", defaults.Pipeline.Table.RowOverlap)
	l.v.SetDefault("pipeline.table.min_cell_area", defaults.Pipeline.Table.MinCellArea)
	l.v.SetDefault("pipeline.table.min_cell_side", defaults.Pipeline.Table.MinCellSide)
	l.v.SetDefault("pipeline.table.coarse_divisor", defaults.Pipeline.Table.CoarseDivisor)
	l.v.SetDefault("pipeline.table.fine_divisor", defaults.Pipeline.Table.FineDivisor)
	l.v.SetDefault("pipeline.table.box_padding", defaults.Pipeline.Table.BoxPadding)

	l.v.SetDefault("pipeline.segment.min_contour_area", defaults.Pipeline.Segment.MinContourArea)
	l.v.SetDefault("pipeline.segment.line_height_factor", defaults.Pipeline.Segment.LineHeightFactor)
	l.v.SetDefault("pipeline.segment.cell_gap_factor", defaults.Pipeline.Segment.CellGapFactor)
	l.v.SetDefault("pipeline.segment.crop_padding", defaults.Pipeline.Segment.CropPadding)

	l.v.SetDefault("pipeline.enhance.target_height", defaults.Pipeline.Enhance.TargetHeight)
	l.v.SetDefault("pipeline.enhance.clip_limit", defaults.Pipeline.Enhance.ClipLimit)
	l.v.SetDefault("pipeline.enhance.tile_grid", defaults.Pipeline.Enhance.TileGrid)
	l.v.SetDefault("pipeline.enhance.min_density", defaults.Pipeline.Enhance.MinDensity)
	l.v.SetDefault("pipeline.enhance.min_dimension", defaults.Pipeline.Enhance.MinDimension)

	l.v.SetDefault("recognizer.model_path", defaults.Recognizer.ModelPath)
	l.v.SetDefault("recognizer.dict_path", defaults.Recognizer.DictPath)
	l.v.SetDefault("recognizer.image_height", defaults.Recognizer.ImageHeight)
	l.v.SetDefault("recognizer.max_width", defaults.Recognizer.MaxWidth)
	l.v.SetDefault("recognizer.num_threads", defaults.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.library_path", defaults.Recognizer.LibraryPath)

	l.v.SetDefault("database.dsn", defaults.Database.DSN)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	l.v.SetDefault("worker.workers", defaults.Worker.Workers)
	l.v.SetDefault("worker.queue_size", defaults.Worker.QueueSize)
}
