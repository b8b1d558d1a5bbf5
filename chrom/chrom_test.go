package chrom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"chr1", "1"},
		{"CHR22", "22"},
		{"01", "1"},
		{"x", "X"},
		{"chrX", "X"},
		{"23", "X"},
		{"24", "Y"},
		{"25", "M"},
		{"MT", "M"},
		{"chrM", "M"},
	}

	for _, c := range cases {
		got, err := Normalize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	for _, in := range []string{"", "0", "26", "chrUn_gl000220", "6_ssto_hap7", "chr"} {
		_, err := Normalize(in)
		var unsupported *UnsupportedError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Expected UnsupportedError for %q, got %v", in, err)
		}
	}
}

func TestOrderMatchesRanks(t *testing.T) {
	require.Len(t, ranks, len(Order))
	for i, label := range Order {
		r, ok := Rank(label)
		require.True(t, ok, label)
		assert.Equal(t, i, r, label)
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("1", 100, "2", 1))
	assert.Equal(t, -1, Compare("9", 100, "10", 1))
	assert.Equal(t, 1, Compare("X", 1, "1", 1))
	assert.Equal(t, -1, Compare("22", 5, "X", 1))
	assert.Equal(t, 1, Compare("1", 2, "1", 1))
	assert.Equal(t, 0, Compare("M", 7, "M", 7))
}

func TestRegion(t *testing.T) {
	r, err := NewRegion("chr1", 0, 100001, 500000)
	require.NoError(t, err)
	assert.Equal(t, Region{Chrom: "1", Start: 0, End: 100001}, r)
	assert.True(t, r.Contains("1", 1))
	assert.False(t, r.Contains("2", 1))
	assert.Equal(t, "1:0-100001", r.String())

	for _, bad := range []Region{
		{Chrom: "1", Start: 10, End: 10},
		{Chrom: "1", Start: 10, End: 9},
		{Chrom: "1", Start: -1, End: 9},
		{Chrom: "1", Start: 1, End: 500002},
	} {
		err := bad.Check(500000)
		assert.True(t, errors.Is(err, ErrInvalidRegion), bad.String())
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("X:1,000-2,000", 0)
	require.NoError(t, err)
	assert.Equal(t, Region{Chrom: "X", Start: 1000, End: 2000}, r)

	_, err = ParseRegion("X:2000", 0)
	assert.True(t, errors.Is(err, ErrInvalidRegion))
}

func TestOrderingErrorMessage(t *testing.T) {
	err := &OrderingError{Row: 3, PrevChrom: "X", PrevPos: 1, Chrom: "1", Pos: 1}
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "1:1")
	assert.Contains(t, err.Error(), "X:1")
}
