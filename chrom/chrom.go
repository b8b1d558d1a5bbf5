// Package chrom holds the canonical chromosome ordering used to sort and
// validate summary statistics.
package chrom

import (
	"fmt"
	"strings"
)

// Order lists the admissible chromosome labels in genome order.
var Order = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
	"12", "13", "14", "15", "16", "17", "18", "19", "20", "21", "22",
	"X", "Y", "M",
}

var ranks = map[string]int{
	"1": 0, "2": 1, "3": 2, "4": 3, "5": 4, "6": 5, "7": 6, "8": 7,
	"9": 8, "10": 9, "11": 10, "12": 11, "13": 12, "14": 13, "15": 14,
	"16": 15, "17": 16, "18": 17, "19": 18, "20": 19, "21": 20, "22": 21,
	"X": 22, "Y": 23, "M": 24,
}

// Numeric and mitochondrial spellings seen in the wild (PLINK, BOLT, UCSC).
var aliases = map[string]string{
	"23": "X",
	"24": "Y",
	"25": "M",
	"MT": "M",
}

// UnsupportedError reports a chromosome label outside the canonical set.
type UnsupportedError struct {
	Label string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported chromosome: %q", e.Label)
}

// Normalize maps a raw chromosome label onto its canonical spelling. A "chr"
// prefix and leading zeroes are removed and letters are upper-cased.
func Normalize(label string) (string, error) {
	c := strings.TrimSpace(label)
	if len(c) > 3 && strings.EqualFold(c[:3], "chr") {
		c = c[3:]
	}
	c = strings.ToUpper(c)
	if len(c) > 1 {
		c = strings.TrimLeft(c, "0")
	}

	if alias, ok := aliases[c]; ok {
		c = alias
	}

	if _, ok := ranks[c]; !ok {
		return "", &UnsupportedError{Label: label}
	}

	return c, nil
}

// Rank returns the position of a canonical label within Order.
func Rank(label string) (int, bool) {
	r, ok := ranks[label]
	return r, ok
}

// Compare orders two canonical coordinates by chromosome rank, then position.
// Unknown labels sort after every known label.
func Compare(chromA string, posA int, chromB string, posB int) int {
	ra, ok := ranks[chromA]
	if !ok {
		ra = len(Order)
	}
	rb, ok := ranks[chromB]
	if !ok {
		rb = len(Order)
	}

	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	case posA < posB:
		return -1
	case posA > posB:
		return 1
	}

	return 0
}

// OrderingError reports a coordinate that sorts before its predecessor.
type OrderingError struct {
	Row       int
	PrevChrom string
	PrevPos   int
	Chrom     string
	Pos       int
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("row %d: %s:%d sorts before the previous row %s:%d; rows must be sorted by chromosome (1-22, X, Y, M) then position",
		e.Row, e.Chrom, e.Pos, e.PrevChrom, e.PrevPos)
}
