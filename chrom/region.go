package chrom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRegion = errors.New("invalid region")

// Region is a 1-based, inclusive genomic interval on one chromosome.
type Region struct {
	Chrom string
	Start int
	End   int
}

// NewRegion normalizes the chromosome label and checks that the interval is
// non-empty and no wider than maxWidth. A maxWidth of 0 disables the width
// check.
func NewRegion(label string, start, end, maxWidth int) (Region, error) {
	c, err := Normalize(label)
	if err != nil {
		return Region{}, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}

	r := Region{Chrom: c, Start: start, End: end}

	return r, r.Check(maxWidth)
}

// Check enforces 0 <= start < end and end-start <= maxWidth (when maxWidth >
// 0).
func (r Region) Check(maxWidth int) error {
	if r.Start < 0 {
		return fmt.Errorf("%w: start %d is negative", ErrInvalidRegion, r.Start)
	}
	if r.End <= r.Start {
		return fmt.Errorf("%w: end %d must be greater than start %d", ErrInvalidRegion, r.End, r.Start)
	}
	if maxWidth > 0 && r.End-r.Start > maxWidth {
		return fmt.Errorf("%w: width %d exceeds the maximum of %d", ErrInvalidRegion, r.End-r.Start, maxWidth)
	}

	return nil
}

// Contains reports whether pos on chrom falls inside the region.
func (r Region) Contains(c string, pos int) bool {
	return c == r.Chrom && pos >= r.Start && pos <= r.End
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// ParseRegion reads the chrom:start-end form produced by String.
func ParseRegion(s string, maxWidth int) (Region, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Region{}, fmt.Errorf("%w: %q is not chrom:start-end", ErrInvalidRegion, s)
	}
	bounds := strings.SplitN(parts[1], "-", 2)
	if len(bounds) != 2 {
		return Region{}, fmt.Errorf("%w: %q is not chrom:start-end", ErrInvalidRegion, s)
	}

	start, err := strconv.Atoi(strings.ReplaceAll(bounds[0], ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("%w: start: %v", ErrInvalidRegion, err)
	}
	end, err := strconv.Atoi(strings.ReplaceAll(bounds[1], ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("%w: end: %v", ErrInvalidRegion, err)
	}

	return NewRegion(parts[0], start, end, maxWidth)
}
