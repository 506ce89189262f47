package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SkeletonRule selects a skeleton description for input files whose stem
// matches a glob pattern.
type SkeletonRule struct {
	Match string `json:"match" yaml:"match" validate:"required"`
	Path  string `json:"path" yaml:"path" validate:"required"`
}

// Config holds all configurable paths and import settings.
type Config struct {
	// Paths
	BaseDir   string         `json:"base_dir" yaml:"base_dir"`
	InputDir  string         `json:"input_dir" yaml:"input_dir"`
	OutputDir string         `json:"output_dir" yaml:"output_dir" validate:"required"`
	Skeleton  string         `json:"skeleton" yaml:"skeleton" validate:"required_without=Skeletons"`
	Skeletons []SkeletonRule `json:"skeletons" yaml:"skeletons" validate:"dive"`

	// Import settings
	Extensions []string `json:"extensions" yaml:"extensions" validate:"dive,startswith=."`
	FPS        float64  `json:"fps" yaml:"fps" validate:"gte=1,lte=240"`
	Workers    int      `json:"workers" yaml:"workers" validate:"min=1"`
	Compress   bool     `json:"compress" yaml:"compress"`

	// Preview settings
	Preview       bool   `json:"preview" yaml:"preview"`
	PreviewWidth  int    `json:"preview_width" yaml:"preview_width" validate:"min=16,max=8192"`
	PreviewHeight int    `json:"preview_height" yaml:"preview_height" validate:"min=16,max=8192"`
	Supersample   int    `json:"supersample" yaml:"supersample" validate:"min=1,max=8"`
	PreviewFormat string `json:"preview_format" yaml:"preview_format" validate:"oneof=webp tga"`

	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`
}

// Defaults applied by Resolve.
const (
	DefaultFPS           = 30
	DefaultPreviewWidth  = 512
	DefaultPreviewHeight = 256
	DefaultSupersample   = 2
	DefaultPreviewFormat = "webp"
)

var validate = validator.New()

// Load reads a JSON or YAML config file and returns Config.
// Fields not set in the file keep their zero values; BaseDir defaults to
// the directory holding the file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	InputDir  string
	OutputDir string
	Skeleton  string
	FPS       float64
	Workers   int
	Compress  bool
	Preview   bool
	Format    string
	Metrics   string
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty. Relative paths from the
// config file are resolved against BaseDir; flag paths are used as given.
func (c *Config) Resolve(flags Flags) {
	c.InputDir = c.abs(c.InputDir)
	c.OutputDir = c.abs(c.OutputDir)
	c.Skeleton = c.abs(c.Skeleton)
	c.MetricsFile = c.abs(c.MetricsFile)
	for i := range c.Skeletons {
		c.Skeletons[i].Path = c.abs(c.Skeletons[i].Path)
	}

	// CLI flags override config file
	if flags.InputDir != "" {
		c.InputDir = flags.InputDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Skeleton != "" {
		c.Skeleton = flags.Skeleton
	}
	if flags.FPS > 0 {
		c.FPS = flags.FPS
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Format != "" {
		c.PreviewFormat = strings.ToLower(flags.Format)
	}
	if flags.Metrics != "" {
		c.MetricsFile = flags.Metrics
	}
	c.Compress = c.Compress || flags.Compress
	c.Preview = c.Preview || flags.Preview

	if c.OutputDir == "" && c.InputDir != "" {
		c.OutputDir = filepath.Join(c.InputDir, "clips")
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".ska"}
	}
	for i, e := range c.Extensions {
		c.Extensions[i] = strings.ToLower(e)
	}

	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = DefaultPreviewWidth
	}
	if c.PreviewHeight <= 0 {
		c.PreviewHeight = DefaultPreviewHeight
	}
	if c.Supersample <= 0 {
		c.Supersample = DefaultSupersample
	}
	if c.PreviewFormat == "" {
		c.PreviewFormat = DefaultPreviewFormat
	}
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Validate checks a resolved config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
