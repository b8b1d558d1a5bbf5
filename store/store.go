// Package store writes and reads the normalized, BGZF-compressed and
// tabix-indexed summary-statistics file.
package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"gopkg.in/guregu/null.v3"
)

const (
	headerLine    = "#chrom\tpos\tref\talt\tneg_log_pvalue"
	headerLineMAF = headerLine + "\tmaf"

	// IndexSuffix is appended to the store path to name its tabix index.
	IndexSuffix = ".tbi"

	missing = "."
)

var (
	ErrNotFound    = errors.New("normalized store not found")
	ErrRowTooLong  = errors.New("row does not fit in one BGZF block")
	ErrCommitted   = errors.New("store has already been finalized")
	ErrCorruptLine = errors.New("malformed store line")
)

// Header returns the header line, without newline.
func Header(withMAF bool) string {
	if withMAF {
		return headerLineMAF
	}
	return headerLine
}

func formatNullFloat(f null.Float) string {
	if !f.Valid || math.IsNaN(f.Float64) {
		return missing
	}

	// Shortest representation that parses back to the same float64.
	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}

func parseNullFloat(s string) (null.Float, error) {
	if s == missing {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(v), nil
}

// AppendLine appends the tab-separated form of v, with trailing newline.
func AppendLine(dst []byte, v parser.Variant, withMAF bool) []byte {
	dst = append(dst, v.Chrom...)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(v.Pos), 10)
	dst = append(dst, '\t')
	dst = append(dst, v.Ref...)
	dst = append(dst, '\t')
	dst = append(dst, v.Alt...)
	dst = append(dst, '\t')
	dst = append(dst, formatNullFloat(v.NegLogPvalue)...)
	if withMAF {
		dst = append(dst, '\t')
		dst = append(dst, formatNullFloat(v.MAF)...)
	}

	return append(dst, '\n')
}

// ParseLine reads one data line written by AppendLine.
func ParseLine(line string) (parser.Variant, error) {
	var v parser.Variant

	fields := strings.Split(line, "\t")
	if len(fields) != 5 && len(fields) != 6 {
		return v, fmt.Errorf("%w: expected 5 or 6 columns, found %d", ErrCorruptLine, len(fields))
	}

	if _, ok := chrom.Rank(fields[0]); !ok {
		return v, fmt.Errorf("%w: %v", ErrCorruptLine, &chrom.UnsupportedError{Label: fields[0]})
	}
	v.Chrom = fields[0]

	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return v, fmt.Errorf("%w: position: %v", ErrCorruptLine, err)
	}
	v.Pos = pos
	v.Ref = fields[2]
	v.Alt = fields[3]

	if v.NegLogPvalue, err = parseNullFloat(fields[4]); err != nil {
		return v, fmt.Errorf("%w: neg_log_pvalue: %v", ErrCorruptLine, err)
	}
	if len(fields) == 6 {
		if v.MAF, err = parseNullFloat(fields[5]); err != nil {
			return v, fmt.Errorf("%w: maf: %v", ErrCorruptLine, err)
		}
	}

	return v, nil
}

// Width of a tabix linear-index tile.
const tileWidth = 1 << 14

// record satisfies tabix.Record. Tabix intervals are 0-based half-open.
type record struct {
	chrom string
	pos   int
}

func (r record) RefName() string {
	return r.chrom
}

func (r record) Start() int {
	if r.pos < 1 {
		return 0
	}
	return r.pos - 1
}

// End is pulled back onto Start's tile at a tile boundary. biogo/hts files a
// record's linear-index entry under End/tileWidth and panics when that tile
// follows an already recorded one, but a one-base record lies in Start's tile.
func (r record) End() int {
	if r.pos < 1 {
		return 1
	}
	if r.pos%tileWidth == 0 {
		return r.pos - 1
	}
	return r.pos
}
