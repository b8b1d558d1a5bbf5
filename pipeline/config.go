package pipeline

import (
	"fmt"
	"os"

	"github.com/carbocation/gwasingest/manhattan"
	"github.com/carbocation/gwasingest/sigpolicy"
	"github.com/carbocation/gwasingest/tophit"
	"github.com/carbocation/pfx"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config holds the tunables of a run. Zero MaxBadLines or MaxBadLineRatio
// disables that limit.
type Config struct {
	MaxBadLines     int     `yaml:"max_bad_lines" envconfig:"GWAS_MAX_BAD_LINES"`
	MaxBadLineRatio float64 `yaml:"max_bad_line_ratio" envconfig:"GWAS_MAX_BAD_LINE_RATIO"`

	BinWidth      int     `yaml:"bin_width" envconfig:"GWAS_BIN_WIDTH"`
	PeakThreshold float64 `yaml:"peak_threshold" envconfig:"GWAS_PEAK_THRESHOLD"`
	MaxPeaks      int     `yaml:"max_peaks" envconfig:"GWAS_MAX_PEAKS"`
	Flank         int     `yaml:"flank" envconfig:"GWAS_FLANK"`
	MaxRegion     int     `yaml:"max_region" envconfig:"GWAS_MAX_REGION"`

	// SignificancePolicy is "exclude" or "clip". ClipValue is the ceiling
	// used by "clip".
	SignificancePolicy string  `yaml:"significance_policy" envconfig:"GWAS_SIGNIFICANCE_POLICY"`
	ClipValue          float64 `yaml:"clip_value" envconfig:"GWAS_CLIP_VALUE"`

	// Required aggregation steps whose failure fails the run. Other
	// aggregation failures leave the run incomplete.
	Required []Step `yaml:"required" envconfig:"GWAS_REQUIRED"`
}

const DefaultMaxRegion = 500000

func DefaultConfig() Config {
	return Config{
		MaxBadLines:        1000,
		BinWidth:           manhattan.DefaultBinWidth,
		PeakThreshold:      manhattan.DefaultPeakThreshold,
		MaxPeaks:           manhattan.DefaultMaxPeaks,
		Flank:              tophit.DefaultFlank,
		MaxRegion:          DefaultMaxRegion,
		SignificancePolicy: "exclude",
		ClipValue:          300,
	}
}

// LoadConfig layers an optional YAML file and then GWAS_* environment
// variables over DefaultConfig. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, pfx.Err(err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Check()
}

func (c Config) Check() error {
	if c.MaxBadLines < 0 {
		return fmt.Errorf("max_bad_lines must be non-negative, got %d", c.MaxBadLines)
	}
	if c.MaxBadLineRatio < 0 || c.MaxBadLineRatio > 1 {
		return fmt.Errorf("max_bad_line_ratio must be within [0, 1], got %g", c.MaxBadLineRatio)
	}
	if c.BinWidth <= 0 {
		return fmt.Errorf("bin_width must be positive, got %d", c.BinWidth)
	}
	if c.MaxPeaks < 0 {
		return fmt.Errorf("max_peaks must be non-negative, got %d", c.MaxPeaks)
	}
	if c.Flank < 0 {
		return fmt.Errorf("flank must be non-negative, got %d", c.Flank)
	}
	if c.MaxRegion <= 0 {
		return fmt.Errorf("max_region must be positive, got %d", c.MaxRegion)
	}
	for _, s := range c.Required {
		if !s.aggregation() {
			return fmt.Errorf("required step %q is not an aggregation step", s)
		}
	}
	if _, err := c.Policy(); err != nil {
		return err
	}

	return nil
}

func (c Config) Policy() (sigpolicy.Policy, error) {
	return sigpolicy.ByName(c.SignificancePolicy, c.ClipValue)
}

func (c Config) required(s Step) bool {
	for _, r := range c.Required {
		if r == s {
			return true
		}
	}
	return false
}
