package sigpolicy

import (
	"math"
	"testing"

	"github.com/carbocation/gwasingest/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func withSig(f null.Float) parser.Variant {
	return parser.Variant{Chrom: "1", Pos: 1, Ref: "A", Alt: "C", NegLogPvalue: f}
}

func TestExclude(t *testing.T) {
	p := Exclude{}

	x, ok := p.Apply(withSig(null.FloatFrom(7.3)))
	assert.True(t, ok)
	assert.Equal(t, 7.3, x)

	for _, f := range []null.Float{{}, null.FloatFrom(math.Inf(1)), null.FloatFrom(math.NaN())} {
		_, ok := p.Apply(withSig(f))
		assert.False(t, ok)
	}
}

func TestClip(t *testing.T) {
	p := Clip{Max: 300}

	x, ok := p.Apply(withSig(null.FloatFrom(math.Inf(1))))
	assert.True(t, ok)
	assert.Equal(t, 300.0, x)

	x, ok = p.Apply(withSig(null.FloatFrom(2)))
	assert.True(t, ok)
	assert.Equal(t, 2.0, x)

	_, ok = p.Apply(withSig(null.Float{}))
	assert.False(t, ok)
}

func TestByName(t *testing.T) {
	p, err := ByName("", 0)
	require.NoError(t, err)
	assert.Equal(t, Exclude{}, p)

	p, err = ByName("CLIP", 320)
	require.NoError(t, err)
	assert.Equal(t, Clip{Max: 320}, p)

	_, err = ByName("clip", 0)
	assert.Error(t, err)
	_, err = ByName("round", 0)
	assert.Error(t, err)
}
