package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutsAreWellFormed(t *testing.T) {
	for name, l := range Layouts {
		require.NoError(t, l.Check(), name)
		for col := range l.ExpectedHeader() {
			assert.Less(t, col, l.minFields(), name)
		}
	}
}

func TestUnknownLayout(t *testing.T) {
	_, err := Layout("AVKNG2018")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STANDARD")
}

func TestExpectedHeader(t *testing.T) {
	l, err := Layout("STANDARD_PVALUE")
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "#chrom", 1: "pos", 2: "ref", 3: "alt", 4: "pvalue"}, l.ExpectedHeader())
}

func TestCheckRejectsDuplicateColumns(t *testing.T) {
	l := Layouts["STANDARD"]
	l.ColAlt = l.ColRef
	assert.Error(t, l.Check())

	l = Layouts["STANDARD"]
	l.Delimiter = 0
	assert.Error(t, l.Check())
}

func TestConfigFromMap(t *testing.T) {
	// Numbers arrive as float64 from JSON.
	c, err := ConfigFromMap(map[string]interface{}{
		"chrom_col":   float64(1),
		"pos_col":     float64(2),
		"ref_col":     float64(3),
		"alt_col":     float64(4),
		"pval_col":    float64(5),
		"maf_col":     float64(6),
		"is_log_pval": true,
		"delimiter":   "tab",
	})
	require.NoError(t, err)

	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, '\t', o.Delimiter)
	assert.Equal(t, 0, o.ColChrom)
	assert.Equal(t, 4, o.ColPvalue)
	assert.Equal(t, 5, o.ColMAF)
	assert.True(t, o.IsLogPvalue)
	assert.Equal(t, 1, o.SkipRows)
}

func TestConfigFromMapRejectsUnknownKeys(t *testing.T) {
	_, err := ConfigFromMap(map[string]interface{}{"chr_col": 1})
	assert.Error(t, err)
}

func TestConfigLayout(t *testing.T) {
	skip := 2
	o, err := Config{Layout: "bolt", SkipRows: &skip, Compression: "GZIP"}.Options()
	require.NoError(t, err)
	assert.Equal(t, 15, o.ColPvalue)
	assert.Equal(t, 2, o.SkipRows)
	assert.Equal(t, CompressionGzip, o.Compression)

	_, err = Config{ChromCol: 1}.Options()
	assert.Error(t, err)
}
