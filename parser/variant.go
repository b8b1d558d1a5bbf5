package parser

import (
	"fmt"

	"gopkg.in/guregu/null.v3"
)

// Variant is one successfully parsed summary-statistics row. Chrom is always
// a canonical label. NegLogPvalue is invalid (null) when the significance
// could not be computed, for example when p is 0 or reported as missing.
type Variant struct {
	Chrom        string
	Pos          int
	Ref          string
	Alt          string
	NegLogPvalue null.Float
	MAF          null.Float
}

func (v Variant) String() string {
	return fmt.Sprintf("%s:%d_%s/%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// ErrorEntry captures a row that could not be turned into a Variant.
type ErrorEntry struct {
	Row    int
	Reason string
	Line   string
}

func (e *ErrorEntry) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Result is either a Variant (Err == nil) or an ErrorEntry.
type Result struct {
	Variant Variant
	Err     *ErrorEntry
}

// OK reports whether the row produced a Variant.
func (r Result) OK() bool {
	return r.Err == nil
}
