// Package gwasingest detects the encoding and column layout of GWAS summary
// statistics and opens them for streaming.
package gwasingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/storage"
	"github.com/carbocation/gwasingest/parser"
)

var ErrUnsupportedEncoding = errors.New("unsupported encoding")

const probeSize = 64 * 1024

// Format is the outcome of sniffing a source.
type Format struct {
	DataType  DataType
	Delimiter rune
	Header    []string

	// LayoutName is set when the header matches a registered layout.
	LayoutName string

	// Layout is the best guess at a column mapping, or nil when the required
	// columns could not be identified from the header.
	Layout *parser.Options
}

func (f Format) Compressed() bool {
	return f.DataType.Compressed()
}

// Sniff probes the start of a local or gs:// source.
func Sniff(ctx context.Context, path string, client *storage.Client) (Format, error) {
	src, _, err := OpenSource(ctx, path, client)
	if err != nil {
		return Format{}, err
	}
	defer src.Close()

	f, err := SniffReader(src)
	if err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// SniffReader classifies the content of rs, which is left at an unspecified
// offset.
func SniffReader(rs io.ReadSeeker) (Format, error) {
	var out Format

	dt, err := DetectDataType(rs)
	if err == io.EOF {
		return out, fmt.Errorf("%w: empty file", ErrUnsupportedEncoding)
	} else if err != nil {
		return out, err
	}
	out.DataType = dt

	rc, err := Decompress(rs, dt)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEncoding) {
			return out, err
		}
		return out, fmt.Errorf("%w: %s: %v", ErrUnsupportedEncoding, dt, err)
	}
	defer rc.Close()

	probe := make([]byte, probeSize)
	n, err := io.ReadFull(rc, probe)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return out, fmt.Errorf("%w: %s: %v", ErrUnsupportedEncoding, dt, err)
	}
	probe = probe[:n]
	if n == probeSize {
		// Don't split a multibyte character at the end of the probe
		if i := bytes.LastIndexByte(probe, '\n'); i > 0 {
			probe = probe[:i+1]
		}
	}

	if len(bytes.TrimSpace(probe)) == 0 {
		return out, fmt.Errorf("%w: no content", ErrUnsupportedEncoding)
	}
	if bytes.IndexByte(probe, 0) >= 0 || !utf8.Valid(probe) {
		return out, fmt.Errorf("%w: content is neither a supported compressed format nor text", ErrUnsupportedEncoding)
	}

	headerLine := string(probe)
	if i := strings.IndexByte(headerLine, '\n'); i >= 0 {
		headerLine = headerLine[:i]
	}
	headerLine = strings.TrimSuffix(headerLine, "\r")

	out.Delimiter = DetermineDelimiter(bytes.NewReader(probe))
	if strings.ContainsRune(headerLine, '\t') {
		out.Delimiter = '\t'
	}

	out.Header = splitHeader(headerLine, out.Delimiter)
	out.LayoutName, out.Layout = GuessLayout(out.Header, out.Delimiter)

	return out, nil
}

func splitHeader(line string, delim rune) []string {
	var fields []string
	if delim == ' ' {
		fields = strings.Fields(line)
	} else {
		fields = strings.Split(line, string(delim))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return fields
}

// HeaderMatches reports whether header carries the expected label at each
// checked column, ignoring case.
func HeaderMatches(header []string, expected map[int]string) bool {
	if len(expected) == 0 {
		return false
	}
	for col, name := range expected {
		if col >= len(header) || !strings.EqualFold(strings.TrimSpace(header[col]), name) {
			return false
		}
	}

	return true
}

// Column-name aliases, most specific first.
var (
	chromAliases = []string{"chrom", "chr", "chromosome"}
	posAliases   = []string{"pos", "bp", "position", "base_pair_location", "genpos"}
	refAliases   = []string{"ref", "reference", "reference_allele", "other_allele", "nea"}
	altAliases   = []string{"alt", "alternate", "alternate_allele", "effect_allele", "ea"}
	pAliases     = []string{"pvalue", "p", "pval", "p_value", "p.value", "p_bolt_lmm"}
	logPAliases  = []string{"logpvalue", "neg_log_pvalue", "log10p", "mlogp", "neglog10p", "log10_p"}
	mafAliases   = []string{"maf", "af", "a1freq", "eaf", "effect_allele_frequency", "af_allele2", "freq"}
)

// GuessLayout matches a header against the registered layouts, then falls
// back to matching individual column names.
func GuessLayout(header []string, delim rune) (string, *parser.Options) {
	names := make([]string, 0, len(parser.Layouts))
	for name := range parser.Layouts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		l := parser.Layouts[name]
		if HeaderMatches(header, l.ExpectedHeader()) {
			l.Delimiter = delim
			return name, &l
		}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "#")
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return -1
	}

	l := parser.Options{
		Delimiter:   delim,
		SkipRows:    1,
		Compression: parser.CompressionAuto,
		ColChrom:    find(chromAliases),
		ColPos:      find(posAliases),
		ColRef:      find(refAliases),
		ColAlt:      find(altAliases),
		ColPvalue:   find(logPAliases),
		ColMAF:      find(mafAliases),
		IsLogPvalue: true,
	}
	if l.ColPvalue < 0 {
		l.ColPvalue = find(pAliases)
		l.IsLogPvalue = false
	}

	// The guessed header labels become the expected header.
	l.Header = map[int]string{}
	for _, col := range []int{l.ColChrom, l.ColPos, l.ColRef, l.ColAlt, l.ColPvalue} {
		if col < 0 {
			return "", nil
		}
		l.Header[col] = header[col]
	}

	if err := l.Check(); err != nil {
		return "", nil
	}

	return "", &l
}
