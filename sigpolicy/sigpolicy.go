// Package sigpolicy decides which significance values feed the plot
// aggregations.
package sigpolicy

import (
	"fmt"
	"math"
	"strings"

	"github.com/carbocation/gwasingest/parser"
)

// Policy returns the significance to aggregate for v, or false to leave v
// out.
type Policy interface {
	Apply(v parser.Variant) (float64, bool)
}

// Exclude drops undefined and non-finite significance values.
type Exclude struct{}

func (Exclude) Apply(v parser.Variant) (float64, bool) {
	if !v.NegLogPvalue.Valid {
		return 0, false
	}
	x := v.NegLogPvalue.Float64
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}

	return x, true
}

func (Exclude) String() string {
	return "exclude"
}

// Clip keeps infinite significance values, clipped to [0, Max]. Undefined
// values are still dropped.
type Clip struct {
	Max float64
}

func (c Clip) Apply(v parser.Variant) (float64, bool) {
	if !v.NegLogPvalue.Valid || math.IsNaN(v.NegLogPvalue.Float64) {
		return 0, false
	}

	x := v.NegLogPvalue.Float64
	if x > c.Max {
		x = c.Max
	}
	if x < 0 {
		x = 0
	}

	return x, true
}

func (c Clip) String() string {
	return fmt.Sprintf("clip(%g)", c.Max)
}

// ByName resolves a configured policy name. clipMax is used by "clip".
func ByName(name string, clipMax float64) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "exclude":
		return Exclude{}, nil
	case "clip":
		if clipMax <= 0 || math.IsNaN(clipMax) || math.IsInf(clipMax, 0) {
			return nil, fmt.Errorf("clip policy needs a finite positive maximum, got %g", clipMax)
		}
		return Clip{Max: clipMax}, nil
	}

	return nil, fmt.Errorf("unknown significance policy %q (valid: exclude, clip)", name)
}
