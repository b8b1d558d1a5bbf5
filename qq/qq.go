// Package qq computes observed-versus-expected quantiles of the significance
// distribution under a uniform null.
package qq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/sigpolicy"
	"github.com/carbocation/gwasingest/store"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MAF strata are quartiles of the sorted frequencies.
	NumStrata = 4

	confidence = 0.95
)

// Quantiles at which the genomic inflation factor is reported.
var GCQuantiles = []float64{0.5, 0.1, 0.01, 0.001}

var ErrNoData = errors.New("no variants with a usable significance")

type Point struct {
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
	Stratum  string  `json:"stratum,omitempty"`
}

// Band is the confidence interval for the expected value at X.
type Band struct {
	X    float64 `json:"x"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

type Stratum struct {
	Label  string  `json:"label"`
	MAFMin float64 `json:"maf_min"`
	MAFMax float64 `json:"maf_max"`
	Count  int     `json:"count"`
}

type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean_neg_log_pvalue"`
	Median float64 `json:"median_neg_log_pvalue"`
}

type Result struct {
	Overall  []Point            `json:"overall"`
	ByMAF    map[string][]Point `json:"by_maf,omitempty"`
	Strata   []Stratum          `json:"strata,omitempty"`
	CI       []Band             `json:"ci"`
	GCLambda map[string]float64 `json:"gc_lambda"`
	Summary  Summary            `json:"summary"`
}

// Build reads every usable significance from the store. Stratification is
// decided by whether the first usable variant carries a MAF.
func Build(ctx context.Context, path string, policy sigpolicy.Policy) (Result, error) {
	if policy == nil {
		policy = sigpolicy.Exclude{}
	}

	var observed, mafs []float64
	first := true
	stratify := false

	err := store.Each(ctx, path, func(v parser.Variant) error {
		x, ok := policy.Apply(v)
		if !ok {
			return nil
		}
		if first {
			stratify = v.MAF.Valid
			first = false
		}

		observed = append(observed, x)
		if stratify {
			if v.MAF.Valid {
				mafs = append(mafs, v.MAF.Float64)
			} else {
				mafs = append(mafs, math.NaN())
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Compute(observed, mafs)
}

// Compute builds the QQ summary. mafs is either nil or parallel to observed,
// with NaN marking a missing frequency. observed is not modified.
func Compute(observed, mafs []float64) (Result, error) {
	n := len(observed)
	if n == 0 {
		return Result{}, ErrNoData
	}
	if mafs != nil && len(mafs) != n {
		return Result{}, fmt.Errorf("got %d frequencies for %d observations", len(mafs), n)
	}

	sorted := append([]float64(nil), observed...)
	sort.Float64s(sorted)

	res := Result{
		Overall:  points(sorted, ""),
		GCLambda: gcLambda(sorted),
	}

	var err error
	res.Summary.N = n
	if res.Summary.Mean, err = stats.Mean(sorted); err != nil {
		return res, err
	}
	if res.Summary.Median, err = stats.Median(sorted); err != nil {
		return res, err
	}

	ciSize := n
	if mafs != nil {
		res.ByMAF, res.Strata = stratify(observed, mafs)
		if len(res.Strata) > 0 {
			ciSize = n / len(res.Strata)
		}
	}
	res.CI = Bands(ciSize)

	return res, nil
}

// points pairs ascending observed values with their expected quantiles:
// rank i of n gets -log10((n+1-i)/(n+1)), so both columns increase together.
func points(sorted []float64, stratum string) []Point {
	n := len(sorted)
	out := make([]Point, n)
	for i, x := range sorted {
		out[i] = Point{
			Observed: x,
			Expected: -math.Log10(float64(n-i) / float64(n+1)),
			Stratum:  stratum,
		}
	}

	return out
}

func stratify(observed, mafs []float64) (map[string][]Point, []Stratum) {
	idx := make([]int, 0, len(mafs))
	for i, m := range mafs {
		if !math.IsNaN(m) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, nil
	}
	sort.SliceStable(idx, func(a, b int) bool { return mafs[idx[a]] < mafs[idx[b]] })

	byMAF := make(map[string][]Point)
	var strata []Stratum

	m := len(idx)
	for s := 0; s < NumStrata; s++ {
		lo, hi := s*m/NumStrata, (s+1)*m/NumStrata
		if lo == hi {
			continue
		}
		members := idx[lo:hi]

		values := make([]float64, len(members))
		for j, i := range members {
			values[j] = observed[i]
		}
		sort.Float64s(values)

		label := "q" + strconv.Itoa(s+1)
		byMAF[label] = points(values, label)
		strata = append(strata, Stratum{
			Label:  label,
			MAFMin: mafs[members[0]],
			MAFMax: mafs[members[len(members)-1]],
			Count:  len(members),
		})
	}

	return byMAF, strata
}

// Bands returns confidence bounds for the order statistics of n uniform
// p-values, on a roughly geometric grid of ranks, sorted by ascending X. The
// k-th smallest of n uniforms follows Beta(k, n+1-k).
func Bands(n int) []Band {
	if n < 1 {
		return []Band{}
	}

	var ranks []int
	for k := 1; k <= n; k = int(float64(k)*1.05) + 1 {
		ranks = append(ranks, k)
	}
	if ranks[len(ranks)-1] != n {
		ranks = append(ranks, n)
	}

	doubt := (1 - confidence) / 2
	out := make([]Band, 0, len(ranks))
	for i := len(ranks) - 1; i >= 0; i-- {
		k := ranks[i]
		dist := distuv.Beta{Alpha: float64(k), Beta: float64(n + 1 - k)}
		out = append(out, Band{
			X:    round4(-math.Log10(float64(k) / float64(n+1))),
			YMin: round4(-math.Log10(dist.Quantile(1 - doubt))),
			YMax: round4(-math.Log10(dist.Quantile(doubt))),
		})
	}

	return out
}

// gcLambda is the genomic inflation factor at each of GCQuantiles, from
// ascending -log10(p) values.
func gcLambda(sorted []float64) map[string]float64 {
	out := make(map[string]float64)
	chi := distuv.ChiSquared{K: 1}
	n := len(sorted)

	for _, q := range GCQuantiles {
		// The q-th most significant value
		i := n - 1 - int(float64(n)*q)
		if i < 0 || i >= n {
			continue
		}
		p := math.Pow(10, -sorted[i])
		lambda := chi.Quantile(1-p) / chi.Quantile(1-q)
		if math.IsNaN(lambda) || math.IsInf(lambda, 0) {
			continue
		}
		out[strconv.FormatFloat(q, 'g', -1, 64)] = round4(lambda)
	}

	return out
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
