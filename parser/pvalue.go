package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// Tokens that mean "no value" rather than a malformed value.
var missingTokens = map[string]struct{}{
	"":     {},
	".":    {},
	"na":   {},
	"nan":  {},
	"null": {},
}

func isMissing(token string) bool {
	_, ok := missingTokens[strings.ToLower(token)]
	return ok
}

// NegLogPvalue converts a significance token into -log10(p). A missing token,
// or a raw p of exactly 0, yields a null value and no error. Tokens that are
// neither missing nor numeric are errors, as are raw p-values outside [0, 1]
// and negative -log10(p) values.
func NegLogPvalue(token string, isLog bool) (null.Float, error) {
	t := strings.TrimSpace(token)
	if isMissing(t) {
		return null.Float{}, nil
	}

	// Out-of-range values parse to +-Inf or 0 and are judged like any other.
	v, err := strconv.ParseFloat(t, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return null.Float{}, fmt.Errorf("invalid p-value %q", token)
	}
	if math.IsNaN(v) {
		return null.Float{}, nil
	}

	if isLog {
		if v < 0 {
			return null.Float{}, fmt.Errorf("negative -log10(p) %q", token)
		}
		if v == 0 {
			v = 0
		}
		return null.FloatFrom(v), nil
	}

	if v < 0 || v > 1 {
		return null.Float{}, fmt.Errorf("p-value %q is outside [0, 1]", token)
	}
	if v == 0 {
		return null.Float{}, nil
	}

	nlp := -math.Log10(v)
	if nlp == 0 {
		// p == 1 gives -0
		nlp = 0
	}

	return null.FloatFrom(nlp), nil
}

// MinorAlleleFrequency parses a frequency token, folding allele frequencies
// above 0.5 onto the minor allele.
func MinorAlleleFrequency(token string) (null.Float, error) {
	t := strings.TrimSpace(token)
	if isMissing(t) {
		return null.Float{}, nil
	}

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("invalid allele frequency %q", token)
	}
	if math.IsNaN(v) {
		return null.Float{}, nil
	}
	if v < 0 || v > 1 {
		return null.Float{}, fmt.Errorf("allele frequency %q is outside [0, 1]", token)
	}
	if v > 0.5 {
		v = 1 - v
	}

	return null.FloatFrom(v), nil
}
