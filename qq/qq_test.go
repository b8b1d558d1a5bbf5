package qq

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

// uniformNegLogP draws -log10(p) for p ~ U(0,1).
func uniformNegLogP(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = -math.Log10(1 - rng.Float64())
	}
	return out
}

func TestOverallIsMonotone(t *testing.T) {
	obs := uniformNegLogP(1, 1000)
	res, err := Compute(obs, nil)
	require.NoError(t, err)

	require.Len(t, res.Overall, len(obs))
	for i := 1; i < len(res.Overall); i++ {
		assert.LessOrEqual(t, res.Overall[i-1].Expected, res.Overall[i].Expected)
		assert.LessOrEqual(t, res.Overall[i-1].Observed, res.Overall[i].Observed)
	}
	assert.InDelta(t, -math.Log10(1000.0/1001.0), res.Overall[0].Expected, 1e-12)
	assert.InDelta(t, -math.Log10(1.0/1001.0), res.Overall[999].Expected, 1e-12)
	assert.Nil(t, res.ByMAF)
	assert.Equal(t, 1000, res.Summary.N)
}

func TestComputeDoesNotModifyInput(t *testing.T) {
	obs := []float64{3, 1, 2}
	_, err := Compute(obs, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, obs)
}

func TestGCLambdaNearOneUnderNull(t *testing.T) {
	res, err := Compute(uniformNegLogP(2, 100000), nil)
	require.NoError(t, err)

	require.Contains(t, res.GCLambda, "0.5")
	assert.InDelta(t, 1.0, res.GCLambda["0.5"], 0.05)
	assert.Contains(t, res.GCLambda, "0.001")
}

func TestBands(t *testing.T) {
	bands := Bands(1000)
	require.NotEmpty(t, bands)

	for i, b := range bands {
		assert.LessOrEqual(t, b.YMin, b.X+1e-4, "band %d", i)
		assert.GreaterOrEqual(t, b.YMax, b.X-1e-4, "band %d", i)
		if i > 0 {
			assert.Greater(t, b.X, bands[i-1].X)
		}
	}
	// The most significant rank is last
	assert.Equal(t, round4(-math.Log10(1.0/1001.0)), bands[len(bands)-1].X)

	assert.Empty(t, Bands(0))
	assert.Len(t, Bands(1), 1)
}

func TestStratifiedByMAF(t *testing.T) {
	obs := uniformNegLogP(3, 103)
	mafs := make([]float64, len(obs))
	for i := range mafs {
		mafs[i] = float64(i%50) / 100
	}
	mafs[7] = math.NaN()

	res, err := Compute(obs, mafs)
	require.NoError(t, err)

	require.Len(t, res.Overall, 103)
	require.Len(t, res.Strata, NumStrata)
	total := 0
	prevMax := -1.0
	for _, s := range res.Strata {
		pts := res.ByMAF[s.Label]
		assert.Len(t, pts, s.Count)
		assert.LessOrEqual(t, s.MAFMin, s.MAFMax)
		assert.GreaterOrEqual(t, s.MAFMin, prevMax)
		prevMax = s.MAFMax
		for _, p := range pts {
			assert.Equal(t, s.Label, p.Stratum)
		}
		total += s.Count
	}
	assert.Equal(t, 102, total)

	// ci is sized n / number of strata
	assert.Equal(t, Bands(103/NumStrata), res.CI)
}

func TestNoData(t *testing.T) {
	_, err := Compute(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuildFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	w, err := store.Create(path, true)
	require.NoError(t, err)

	obs := uniformNegLogP(4, 200)
	for i, x := range obs {
		v := parser.Variant{Chrom: "1", Pos: i + 1, Ref: "A", Alt: "C", NegLogPvalue: null.FloatFrom(x), MAF: null.FloatFrom(0.01 * float64(i%40))}
		require.NoError(t, w.Write(v))
	}
	// Excluded from every aggregate
	require.NoError(t, w.Write(parser.Variant{Chrom: "2", Pos: 1, Ref: "A", Alt: "C", NegLogPvalue: null.FloatFrom(math.Inf(1))}))
	require.NoError(t, w.Write(parser.Variant{Chrom: "2", Pos: 2, Ref: "A", Alt: "C"}))
	require.NoError(t, w.Commit())

	res, err := Build(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Len(t, res.Overall, 200)
	assert.Len(t, res.Strata, NumStrata)

	// Serializable: every value is finite
	_, err = json.Marshal(res)
	assert.NoError(t, err)
}
