package gwasingest

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// Separators seen in summary statistics, most common first.
var delimiterPreference = []rune{'\t', ',', ' ', ';', '|'}

// DetermineDelimiter returns the most likely column separator of the rows in
// r. When the detector finds none of the usual separators the rows are taken
// to be whitespace delimited, which parser.Options spells ' '.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()

	found := make(map[rune]bool)
	for _, s := range d.DetectDelimiter(r, '"') {
		if s != "" {
			found[rune(s[0])] = true
		}
	}

	for _, c := range delimiterPreference {
		if found[c] {
			return c
		}
	}

	return ' '
}
