package parser

import (
	"fmt"
	"sort"
	"strings"
)

type Compression string

const (
	CompressionAuto  Compression = "auto"
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionBGZip Compression = "bgzip"
)

// Options maps the columns of one summary-statistics file onto Variant fields.
// Column indices are 0-based; ColMAF is -1 when the file has no frequency
// column. A Delimiter of ' ' splits on any run of whitespace.
type Options struct {
	Delimiter   rune
	SkipRows    int
	Compression Compression
	IsLogPvalue bool

	ColChrom  int
	ColPos    int
	ColRef    int
	ColAlt    int
	ColPvalue int
	ColMAF    int

	// Header holds the expected header label at each checked column. When nil,
	// the canonical #chrom/pos/ref/alt/(log)pvalue names are expected at the
	// mapped columns.
	Header map[int]string
}

var Layouts = map[string]Options{
	"STANDARD": {
		Delimiter:   '\t',
		SkipRows:    1,
		Compression: CompressionAuto,
		IsLogPvalue: true,
		ColChrom:    0,
		ColPos:      1,
		ColRef:      2,
		ColAlt:      3,
		ColPvalue:   4,
		ColMAF:      -1,
	},
	"STANDARD_PVALUE": {
		Delimiter:   '\t',
		SkipRows:    1,
		Compression: CompressionAuto,
		IsLogPvalue: false,
		ColChrom:    0,
		ColPos:      1,
		ColRef:      2,
		ColAlt:      3,
		ColPvalue:   4,
		ColMAF:      -1,
	},
	// REGENIE ALLELE1 is the reference/effect allele; ALLELE0 is alt.
	"REGENIE": {
		Delimiter:   ' ',
		SkipRows:    1,
		Compression: CompressionAuto,
		IsLogPvalue: true,
		ColChrom:    0,
		ColPos:      1,
		ColRef:      4,
		ColAlt:      3,
		ColPvalue:   12,
		ColMAF:      5,
		Header: map[int]string{
			0:  "CHROM",
			1:  "GENPOS",
			3:  "ALLELE0",
			4:  "ALLELE1",
			5:  "A1FREQ",
			12: "LOG10P",
		},
	},
	// BOLT-LMM 2.3.x, using P_BOLT_LMM.
	"BOLT": {
		Delimiter:   '\t',
		SkipRows:    1,
		Compression: CompressionAuto,
		IsLogPvalue: false,
		ColChrom:    1,
		ColPos:      2,
		ColRef:      4,
		ColAlt:      5,
		ColPvalue:   15,
		ColMAF:      6,
		Header: map[int]string{
			1:  "CHR",
			2:  "BP",
			4:  "ALLELE1",
			5:  "ALLELE0",
			6:  "A1FREQ",
			15: "P_BOLT_LMM",
		},
	},
	"SAIGE": {
		Delimiter:   ' ',
		SkipRows:    1,
		Compression: CompressionAuto,
		IsLogPvalue: false,
		ColChrom:    0,
		ColPos:      1,
		ColRef:      4,
		ColAlt:      5,
		ColPvalue:   13,
		ColMAF:      7,
		Header: map[int]string{
			0:  "CHR",
			1:  "POS",
			4:  "Allele1",
			5:  "Allele2",
			7:  "AF_Allele2",
			13: "p.value",
		},
	},
}

// LayoutNames lists the registered layouts, sorted.
func LayoutNames() string {
	names := make([]string, 0, len(Layouts))
	for m := range Layouts {
		names = append(names, m)
	}
	sort.Strings(names)

	return strings.Join(names, ", ")
}

// Layout returns a copy of a registered layout.
func Layout(name string) (Options, error) {
	l, exists := Layouts[strings.ToUpper(name)]
	if !exists {
		return Options{}, fmt.Errorf("Layout %s is not found. Valid layout names include: %s", name, LayoutNames())
	}

	return l, nil
}

// ExpectedHeader returns the header label required at each checked column.
func (o Options) ExpectedHeader() map[int]string {
	if o.Header != nil {
		return o.Header
	}

	sig := "pvalue"
	if o.IsLogPvalue {
		sig = "logpvalue"
	}

	return map[int]string{
		o.ColChrom:  "#chrom",
		o.ColPos:    "pos",
		o.ColRef:    "ref",
		o.ColAlt:    "alt",
		o.ColPvalue: sig,
	}
}

func (o Options) HasMAF() bool {
	return o.ColMAF >= 0
}

// Check reports a malformed column mapping.
func (o Options) Check() error {
	if o.Delimiter == 0 || o.Delimiter == '\n' || o.Delimiter == '\r' {
		return fmt.Errorf("invalid delimiter %q", o.Delimiter)
	}
	if o.SkipRows < 0 {
		return fmt.Errorf("skip rows must be non-negative, got %d", o.SkipRows)
	}

	switch o.Compression {
	case "", CompressionAuto, CompressionNone, CompressionGzip, CompressionBGZip:
	default:
		return fmt.Errorf("unknown compression %q", o.Compression)
	}

	seen := make(map[int]string)
	cols := []struct {
		name string
		col  int
	}{
		{"chrom", o.ColChrom},
		{"pos", o.ColPos},
		{"ref", o.ColRef},
		{"alt", o.ColAlt},
		{"pvalue", o.ColPvalue},
	}
	if o.HasMAF() {
		cols = append(cols, struct {
			name string
			col  int
		}{"maf", o.ColMAF})
	}

	for _, c := range cols {
		if c.col < 0 {
			return fmt.Errorf("%s column must be non-negative, got %d", c.name, c.col)
		}
		if other, dup := seen[c.col]; dup {
			return fmt.Errorf("%s and %s both map to column %d", other, c.name, c.col)
		}
		seen[c.col] = c.name
	}

	return nil
}

func (o Options) minFields() int {
	max := o.ColChrom
	for _, c := range []int{o.ColPos, o.ColRef, o.ColAlt, o.ColPvalue, o.ColMAF} {
		if c > max {
			max = c
		}
	}

	return max + 1
}
