// Package validate checks that a parsed summary-statistics stream can be
// normalized: the header is the expected one, coordinates are sorted and at
// least one row is usable.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/gwasingest"
	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
)

var (
	ErrNoUsableData = errors.New("no usable rows")
	ErrParse        = errors.New("file could not be parsed")
)

// HeaderError reports a header that does not match the expected columns.
type HeaderError struct {
	Got      []string
	Expected map[int]string
	Rows     int
}

func (e *HeaderError) Error() string {
	if e.Rows != 1 {
		return fmt.Sprintf("expected exactly one header row, found %d", e.Rows)
	}

	cols := make([]int, 0, len(e.Expected))
	for col := range e.Expected {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	want := make([]string, 0, len(cols))
	for _, col := range cols {
		want = append(want, fmt.Sprintf("%d:%s", col+1, e.Expected[col]))
	}

	return fmt.Sprintf("header %q does not match the expected columns %s", strings.Join(e.Got, " "), strings.Join(want, " "))
}

// Summary describes one validation pass.
type Summary struct {
	Rows        int
	ValidRows   int
	ErrorRows   int
	Chromosomes []string
}

// Validator checks a stream against the expected header. A nil Header means
// the header implied by the reader's options.
type Validator struct {
	Header map[int]string
}

// Validate consumes r in a single pass. Row-level parse errors are tolerated;
// stream-level errors make the file invalid.
func (v Validator) Validate(ctx context.Context, r *parser.Reader) (Summary, error) {
	var s Summary

	expected := v.Header
	width := 0
	if expected == nil {
		opts := r.Options()
		expected = opts.ExpectedHeader()
		// Canonical headers carry the mapped columns and nothing else.
		if opts.Header == nil {
			width = len(expected)
			if _, ok := expected[opts.ColMAF]; opts.HasMAF() && !ok {
				width++
			}
		}
	}

	var prevChrom string
	var prevPos int

	for r.Scan() {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		// The header is consumed before the first data row.
		if s.Rows == 0 {
			if err := checkHeader(r.Headers(), expected, width); err != nil {
				return s, err
			}
		}
		s.Rows++

		res := r.Result()
		if !res.OK() {
			s.ErrorRows++
			continue
		}

		cur := res.Variant
		if s.ValidRows > 0 && chrom.Compare(prevChrom, prevPos, cur.Chrom, cur.Pos) > 0 {
			return s, &chrom.OrderingError{
				Row:       r.Row(),
				PrevChrom: prevChrom,
				PrevPos:   prevPos,
				Chrom:     cur.Chrom,
				Pos:       cur.Pos,
			}
		}
		if s.ValidRows == 0 || cur.Chrom != prevChrom {
			s.Chromosomes = append(s.Chromosomes, cur.Chrom)
		}

		s.ValidRows++
		prevChrom, prevPos = cur.Chrom, cur.Pos
	}

	if err := r.Err(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if s.Rows == 0 {
		if err := checkHeader(r.Headers(), expected, width); err != nil {
			return s, err
		}
	}

	if s.ValidRows == 0 {
		return s, ErrNoUsableData
	}

	return s, nil
}

// checkHeader also requires exactly width fields when width is positive.
func checkHeader(headers [][]string, expected map[int]string, width int) error {
	if len(headers) != 1 {
		return &HeaderError{Expected: expected, Rows: len(headers)}
	}
	if !gwasingest.HeaderMatches(headers[0], expected) || (width > 0 && len(headers[0]) != width) {
		return &HeaderError{Got: headers[0], Expected: expected, Rows: 1}
	}

	return nil
}
