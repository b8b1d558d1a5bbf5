package manhattan

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/sigpolicy"
	"github.com/carbocation/gwasingest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func v(c string, pos int, nlp null.Float) parser.Variant {
	return parser.Variant{Chrom: c, Pos: pos, Ref: "A", Alt: "T", NegLogPvalue: nlp}
}

func randomGenome(seed int64, n int) []parser.Variant {
	rng := rand.New(rand.NewSource(seed))
	out := make([]parser.Variant, 0, n)
	for i := 0; i < n; i++ {
		c := chrom.Order[rng.Intn(len(chrom.Order))]
		nlp := null.FloatFrom(rng.ExpFloat64())
		switch rng.Intn(20) {
		case 0:
			nlp = null.Float{}
		case 1:
			nlp = null.FloatFrom(math.Inf(1))
		}
		out = append(out, v(c, rng.Intn(250000000), nlp))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return chrom.Compare(out[i].Chrom, out[i].Pos, out[j].Chrom, out[j].Pos) < 0
	})
	return out
}

func TestBinMaximum(t *testing.T) {
	vs := randomGenome(1, 20000)
	b, err := NewBinner(Config{BinWidth: DefaultBinWidth, PeakThreshold: 3, MaxPeaks: 50})
	require.NoError(t, err)
	for _, x := range vs {
		b.Add(x)
	}
	res := b.Result()

	type key struct {
		c   string
		idx int
	}
	want := map[key]float64{}
	for _, x := range vs {
		if !x.NegLogPvalue.Valid || math.IsInf(x.NegLogPvalue.Float64, 0) {
			continue
		}
		k := key{x.Chrom, x.Pos / DefaultBinWidth}
		if cur, ok := want[k]; !ok || x.NegLogPvalue.Float64 > cur {
			want[k] = x.NegLogPvalue.Float64
		}
	}

	seen := 0
	prevRank := -1
	for _, c := range res.Chromosomes {
		rank, ok := chrom.Rank(c.Chrom)
		require.True(t, ok)
		assert.Greater(t, rank, prevRank, "chromosomes out of genome order")
		prevRank = rank

		prevIdx := -1
		for _, bin := range c.Bins {
			assert.Greater(t, bin.Index, prevIdx)
			prevIdx = bin.Index
			assert.Equal(t, bin.Index*DefaultBinWidth, bin.Start)
			assert.Equal(t, bin.Start+DefaultBinWidth, bin.End)
			assert.Equal(t, want[key{c.Chrom, bin.Index}], bin.NegLogPvalue)
			seen++
		}
	}
	assert.Equal(t, len(want), seen)

	require.Len(t, res.Peaks, 50)
	for i := 1; i < len(res.Peaks); i++ {
		a, b := res.Peaks[i-1], res.Peaks[i]
		assert.LessOrEqual(t, chrom.Compare(a.Chrom, a.Pos, b.Chrom, b.Pos), 0)
	}
}

func TestHalfOpenBins(t *testing.T) {
	b, err := NewBinner(Config{BinWidth: 10})
	require.NoError(t, err)
	b.Add(v("1", 9, null.FloatFrom(1)))
	b.Add(v("1", 10, null.FloatFrom(2)))
	b.Add(v("1", 19, null.FloatFrom(0.5)))

	res := b.Result()
	require.Len(t, res.Chromosomes, 1)
	bins := res.Chromosomes[0].Bins
	require.Len(t, bins, 2)
	assert.Equal(t, Bin{Index: 0, Start: 0, End: 10, NegLogPvalue: 1, Variants: 1}, bins[0])
	assert.Equal(t, Bin{Index: 1, Start: 10, End: 20, NegLogPvalue: 2, Variants: 2}, bins[1])
	assert.Equal(t, 3, res.Chromosomes[0].Variants)
	assert.Empty(t, res.Peaks)
}

func TestClipPolicyKeepsInfinite(t *testing.T) {
	b, err := NewBinner(Config{BinWidth: 10, Policy: sigpolicy.Clip{Max: 300}})
	require.NoError(t, err)
	b.Add(v("1", 1, null.FloatFrom(math.Inf(1))))
	b.Add(v("1", 2, null.Float{}))

	res := b.Result()
	require.Len(t, res.Chromosomes, 1)
	assert.Equal(t, 300.0, res.Chromosomes[0].Bins[0].NegLogPvalue)
	assert.Equal(t, 1, res.Chromosomes[0].Bins[0].Variants)
}

func TestPeakTiesKeepEarliest(t *testing.T) {
	b, err := NewBinner(Config{BinWidth: 100, PeakThreshold: 5, MaxPeaks: 2})
	require.NoError(t, err)
	b.Add(v("1", 1, null.FloatFrom(8)))
	b.Add(v("1", 2, null.FloatFrom(8)))
	b.Add(v("1", 3, null.FloatFrom(8)))
	b.Add(v("1", 4, null.FloatFrom(4)))
	b.Add(v("2", 5, null.FloatFrom(9)))

	res := b.Result()
	require.Len(t, res.Peaks, 2)
	assert.Equal(t, 1, res.Peaks[0].Pos)
	assert.Equal(t, "2", res.Peaks[1].Chrom)
}

func TestBuildFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	w, err := store.Create(path, false)
	require.NoError(t, err)
	vs := randomGenome(2, 500)
	for _, x := range vs {
		require.NoError(t, w.Write(x))
	}
	require.NoError(t, w.Commit())

	got, err := Build(context.Background(), path, Config{BinWidth: DefaultBinWidth, PeakThreshold: 2, MaxPeaks: 10})
	require.NoError(t, err)

	b, err := NewBinner(Config{BinWidth: DefaultBinWidth, PeakThreshold: 2, MaxPeaks: 10})
	require.NoError(t, err)
	for _, x := range vs {
		b.Add(x)
	}
	assert.Equal(t, b.Result(), got)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewBinner(Config{BinWidth: 0})
	assert.Error(t, err)
}
