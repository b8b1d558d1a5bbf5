package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Config is the serialized form of Options, as stored next to an upload.
// Column numbers are 1-based and MAFCol is 0 when absent. If Layout is set,
// the named layout is used and the column fields are ignored.
type Config struct {
	Layout      string `mapstructure:"layout" yaml:"layout,omitempty"`
	ChromCol    int    `mapstructure:"chrom_col" yaml:"chrom_col,omitempty"`
	PosCol      int    `mapstructure:"pos_col" yaml:"pos_col,omitempty"`
	RefCol      int    `mapstructure:"ref_col" yaml:"ref_col,omitempty"`
	AltCol      int    `mapstructure:"alt_col" yaml:"alt_col,omitempty"`
	PvalCol     int    `mapstructure:"pval_col" yaml:"pval_col,omitempty"`
	MAFCol      int    `mapstructure:"maf_col" yaml:"maf_col,omitempty"`
	IsLogPval   bool   `mapstructure:"is_log_pval" yaml:"is_log_pval"`
	Delimiter   string `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	SkipRows    *int   `mapstructure:"skip_rows" yaml:"skip_rows,omitempty"`
	Compression string `mapstructure:"compression" yaml:"compression,omitempty"`
}

// ConfigFromMap decodes a loosely typed options dictionary, such as one
// decoded from JSON.
func ConfigFromMap(m map[string]interface{}) (Config, error) {
	var c Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &c,
	})
	if err != nil {
		return c, pfx.Err(err)
	}

	if err := dec.Decode(m); err != nil {
		return c, fmt.Errorf("parser options: %w", err)
	}

	return c, nil
}

// LoadConfig reads a YAML parser-options file.
func LoadConfig(path string) (Config, error) {
	var c Config

	f, err := os.Open(path)
	if err != nil {
		return c, pfx.Err(err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Options converts the serialized form into validated runtime options.
func (c Config) Options() (Options, error) {
	var o Options

	if c.Layout != "" {
		l, err := Layout(c.Layout)
		if err != nil {
			return o, err
		}
		o = l
	} else {
		if c.ChromCol < 1 || c.PosCol < 1 || c.RefCol < 1 || c.AltCol < 1 || c.PvalCol < 1 {
			return o, fmt.Errorf("chrom_col, pos_col, ref_col, alt_col and pval_col are required (1-based)")
		}
		o = Options{
			Delimiter:   '\t',
			SkipRows:    1,
			Compression: CompressionAuto,
			IsLogPvalue: c.IsLogPval,
			ColChrom:    c.ChromCol - 1,
			ColPos:      c.PosCol - 1,
			ColRef:      c.RefCol - 1,
			ColAlt:      c.AltCol - 1,
			ColPvalue:   c.PvalCol - 1,
			ColMAF:      c.MAFCol - 1,
		}
		if c.Delimiter != "" {
			d, err := parseDelimiter(c.Delimiter)
			if err != nil {
				return o, err
			}
			o.Delimiter = d
		}
	}

	if c.SkipRows != nil {
		o.SkipRows = *c.SkipRows
	}
	if c.Compression != "" {
		o.Compression = Compression(strings.ToLower(c.Compression))
	}

	return o, o.Check()
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "space", "whitespace":
		return ' ', nil
	case "comma":
		return ',', nil
	}

	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}

	return r[0], nil
}
