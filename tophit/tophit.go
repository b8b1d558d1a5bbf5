// Package tophit finds the most significant variant in a normalized store and
// the default view window around it.
package tophit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/sigpolicy"
	"github.com/carbocation/gwasingest/store"
)

const DefaultFlank = 100000

var ErrNoTopHitFound = errors.New("no variant has a usable p-value")

// Hit is the most significant variant with its view window [Start, End].
type Hit struct {
	Chrom        string  `json:"chrom"`
	Pos          int     `json:"pos"`
	Ref          string  `json:"ref"`
	Alt          string  `json:"alt"`
	NegLogPvalue float64 `json:"neg_log_pvalue"`
	PValue       string  `json:"pvalue"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
}

// Locator tracks the best variant seen so far. Only a strictly larger
// significance replaces the current best, so the first of several equal
// values wins. A significance of 0 (p = 1) never qualifies.
type Locator struct {
	Policy sigpolicy.Policy

	best  parser.Variant
	score float64
	found bool
}

func (l *Locator) Add(v parser.Variant) {
	policy := l.Policy
	if policy == nil {
		policy = sigpolicy.Exclude{}
	}

	x, ok := policy.Apply(v)
	if !ok || x <= 0 {
		return
	}
	if !l.found || x > l.score {
		l.best, l.score, l.found = v, x, true
	}
}

// Hit returns the best variant with a window of flank bases either side,
// clamped at 0.
func (l *Locator) Hit(flank int) (Hit, error) {
	if !l.found {
		return Hit{}, ErrNoTopHitFound
	}

	start := l.best.Pos - flank
	if start < 0 {
		start = 0
	}

	return Hit{
		Chrom:        l.best.Chrom,
		Pos:          l.best.Pos,
		Ref:          l.best.Ref,
		Alt:          l.best.Alt,
		NegLogPvalue: l.score,
		PValue:       NegLogPToScientificNotationP(l.score),
		Start:        start,
		End:          l.best.Pos + flank,
	}, nil
}

// Locate makes a single pass over the store at path.
func Locate(ctx context.Context, path string, policy sigpolicy.Policy, flank int) (Hit, error) {
	if flank < 0 {
		return Hit{}, fmt.Errorf("flank must be non-negative, got %d", flank)
	}

	l := &Locator{Policy: policy}
	if err := store.Each(ctx, path, func(v parser.Variant) error {
		l.Add(v)
		return nil
	}); err != nil {
		return Hit{}, err
	}

	return l.Hit(flank)
}

// NegLogPToScientificNotationP renders -log10(P) as a [Mantissa]E[Exponent]
// P-value, which stays representable far below the float64 range.
func NegLogPToScientificNotationP(negLogP float64) string {
	mantissa := math.Pow(10.0, math.Mod(-1*negLogP, 1.0))
	exponent := math.Ceil((-1 * negLogP) / 1.0)

	// Make it pretty (should get mantissa into the 1-10 range)

	// If you don't round during this comparison check, then you end up with
	// things like "10.0E-3" when the -logP is 2.001.

	// Via https://stackoverflow.com/a/49175144/199475 . This is overkill here,
	// but we certainly won't overflow this way...
	f := new(big.Float).SetMode(big.ToNearestEven).SetFloat64(mantissa)
	f = f.SetPrec(1)
	mantissaRounded, _ := f.Float64()
	if mantissaRounded < 1.0 {
		mantissa *= 10.0
		exponent -= 1.0
	}

	return fmt.Sprintf("%.1fE%.0f", mantissa, exponent)
}
