package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func variant(c string, pos int, nlp float64) parser.Variant {
	return parser.Variant{Chrom: c, Pos: pos, Ref: "A", Alt: "G", NegLogPvalue: null.FloatFrom(nlp)}
}

// genome spreads n variants over chromosomes 1, 2 and X.
func genome(n int) []parser.Variant {
	out := make([]parser.Variant, 0, n)
	labels := []string{"1", "2", "X"}
	for i := 0; i < n; i++ {
		c := labels[i*len(labels)/n]
		out = append(out, variant(c, 1000+i*37, float64(i%97)/7.0))
	}
	return out
}

func writeStore(t *testing.T, path string, vs []parser.Variant, withMAF bool) {
	t.Helper()
	w, err := Create(path, withMAF)
	require.NoError(t, err)
	for _, v := range vs {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Commit())
}

func readStore(t *testing.T, path string) []parser.Variant {
	t.Helper()
	var out []parser.Variant
	require.NoError(t, Each(context.Background(), path, func(v parser.Variant) error {
		out = append(out, v)
		return nil
	}))
	return out
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")

	vs := []parser.Variant{
		variant("1", 1, 7.3),
		variant("1", 2, 3.1),
		{Chrom: "1", Pos: 2, Ref: "AT", Alt: "A", NegLogPvalue: null.Float{}, MAF: null.FloatFrom(0.125)},
		{Chrom: "1", Pos: 3, Ref: "C", Alt: "T", NegLogPvalue: null.FloatFrom(math.Inf(1)), MAF: null.Float{}},
		{Chrom: "X", Pos: 10, Ref: "C", Alt: "T", NegLogPvalue: null.FloatFrom(0.1 + 0.2), MAF: null.FloatFrom(1.0 / 3)},
	}
	writeStore(t, path, vs, true)

	got := readStore(t, path)
	require.Equal(t, len(vs), len(got))
	for i := range vs {
		assert.Equal(t, vs[i], got[i], "row %d", i)
	}

	_, err := os.Stat(path + IndexSuffix)
	assert.NoError(t, err)
}

func TestNoTempFilesRemain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "norm.gz")
	writeStore(t, path, genome(10), false)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"norm.gz", "norm.gz.tbi"}, names)
}

func TestAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "norm.gz")

	w, err := Create(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(variant("1", 1, 1)))
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Open(path)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWriterRejectsUnsortedRows(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "norm.gz"), false)
	require.NoError(t, err)
	defer w.Abort()

	require.NoError(t, w.Write(variant("X", 1, 1)))
	err = w.Write(variant("1", 1, 1))
	var ordering *chrom.OrderingError
	require.True(t, errors.As(err, &ordering), "%v", err)
	assert.Equal(t, "X", ordering.PrevChrom)

	// Ties are allowed
	require.NoError(t, w.Write(variant("X", 1, 2)))
}

func TestWriterRejectsLongRows(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "norm.gz"), false)
	require.NoError(t, err)
	defer w.Abort()

	v := variant("1", 1, 1)
	v.Alt = strings.Repeat("A", 70000)
	assert.True(t, errors.Is(w.Write(v), ErrRowTooLong))
}

func TestByteStable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gz")
	b := filepath.Join(dir, "b.gz")
	vs := genome(20000)
	writeStore(t, a, vs, false)
	writeStore(t, b, vs, false)

	for _, suffix := range []string{"", IndexSuffix} {
		ab, err := os.ReadFile(a + suffix)
		require.NoError(t, err)
		bb, err := os.ReadFile(b + suffix)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(ab, bb), "suffix %q", suffix)
	}
}

func TestFetchSpansBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	vs := genome(30000)
	writeStore(t, path, vs, false)

	// Several BGZF blocks are needed for this many rows
	all := readStore(t, path)
	require.Len(t, all, len(vs))

	region := chrom.Region{Chrom: "2", Start: vs[15000].Pos, End: vs[15000].Pos + 37*50}
	got, err := Fetch(path, region, 500000)
	require.NoError(t, err)

	var want []parser.Variant
	for _, v := range vs {
		if region.Contains(v.Chrom, v.Pos) {
			want = append(want, v)
		}
	}
	require.Len(t, want, 51)
	assert.Equal(t, want, got)
}

func TestFetchEdgeCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	writeStore(t, path, genome(100), false)

	got, err := Fetch(path, chrom.Region{Chrom: "Y", Start: 1, End: 100}, 500000)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Fetch(path, chrom.Region{Chrom: "1", Start: 100, End: 100}, 500000)
	assert.True(t, errors.Is(err, chrom.ErrInvalidRegion))

	_, err = Fetch(path, chrom.Region{Chrom: "1", Start: 1, End: 500002}, 500000)
	assert.True(t, errors.Is(err, chrom.ErrInvalidRegion))

	_, err = Fetch(filepath.Join(t.TempDir(), "missing.gz"), chrom.Region{Chrom: "1", Start: 1, End: 100}, 500000)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEachHonoursCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	writeStore(t, path, genome(100), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Each(ctx, path, func(parser.Variant) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseLine(t *testing.T) {
	v, err := ParseLine("1\t5\tA\tC\t.")
	require.NoError(t, err)
	assert.False(t, v.NegLogPvalue.Valid)

	for _, bad := range []string{"1\t5\tA", "Q\t5\tA\tC\t1", "1\tx\tA\tC\t1", "1\t5\tA\tC\tz"} {
		_, err := ParseLine(bad)
		assert.True(t, errors.Is(err, ErrCorruptLine), bad)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "{}")
		return err
	}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	boom := errors.New("boom")
	err = WriteFileAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return boom
	})
	assert.Equal(t, boom, err)

	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIndexHasOneReferencePerChromosome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norm.gz")
	vs := []parser.Variant{
		variant("1", 100, 1),
		variant("1", 200, 2),
		variant("1", 300, 3),
		variant("1", 16383, 4),
		variant("1", 16384, 5),
		variant("1", 16385, 6),
		variant("1", 32768, 7),
		variant("2", 5, 8),
		variant("2", 50000, 9),
	}
	writeStore(t, path, vs, false)

	idx, err := readIndex(path + IndexSuffix)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, []string{"1", "2"}, idx.Names())
	assert.Equal(t, 2, idx.NumRefs())

	for _, v := range vs {
		region := chrom.Region{Chrom: v.Chrom, Start: v.Pos, End: v.Pos + 1}
		var want []parser.Variant
		for _, w := range vs {
			if region.Contains(w.Chrom, w.Pos) {
				want = append(want, w)
			}
		}
		got, err := Fetch(path, region, 500000)
		require.NoError(t, err, "%s", region)
		assert.Equal(t, want, got, "%s", region)
	}

	got, err := Fetch(path, chrom.Region{Chrom: "1", Start: 90, End: 16384}, 500000)
	require.NoError(t, err)
	assert.Equal(t, vs[:5], got)

	// Past the last indexed tile of chromosome 1
	got, err = Fetch(path, chrom.Region{Chrom: "1", Start: 200000, End: 200100}, 500000)
	require.NoError(t, err)
	assert.Empty(t, got)
}
