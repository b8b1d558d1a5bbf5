// Package parser turns delimited summary-statistics text into Variants, one
// tagged Result per physical row.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/gwasingest/chrom"
)

const maxLineLength = 1 << 20

// Reader lazily parses one row at a time. It is not restartable: to read the
// source again, reopen it and create a new Reader.
type Reader struct {
	opts      Options
	delim     string
	minFields int
	sc        *bufio.Scanner
	row       int
	headers   [][]string
	cur       Result
	err       error
}

func NewReader(r io.Reader, opts Options) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	return &Reader{
		opts:      opts,
		delim:     string(opts.Delimiter),
		minFields: opts.minFields(),
		sc:        sc,
	}
}

// Scan advances to the next data row. Header rows and blank lines are
// consumed without producing a Result. A '#' line after the header is an
// error row, so it is reported rather than silently dropped.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}

	for r.sc.Scan() {
		r.row++
		line := strings.TrimSuffix(r.sc.Text(), "\r")

		if len(r.headers) < r.opts.SkipRows {
			r.headers = append(r.headers, r.Split(line))
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			r.cur = r.fail(line, "comment line after the header")
			return true
		}

		r.cur = r.parse(line)
		return true
	}

	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			r.err = fmt.Errorf("line %d is longer than %d bytes: %w", r.row+1, maxLineLength, err)
		} else {
			r.err = fmt.Errorf("reading line %d: %w", r.row+1, err)
		}
	}

	return false
}

// Result returns the row produced by the last call to Scan.
func (r *Reader) Result() Result {
	return r.cur
}

// Row is the 1-based physical line number of the last line read.
func (r *Reader) Row() int {
	return r.row
}

// Headers returns the skipped header rows, split on the delimiter.
func (r *Reader) Headers() [][]string {
	return r.headers
}

// Err returns the first stream-level error, such as a decompression failure.
// Row-level problems are reported through Result instead.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Options() Options {
	return r.opts
}

// Split breaks a line into fields using the configured delimiter.
func (r *Reader) Split(line string) []string {
	if r.opts.Delimiter == ' ' {
		return strings.Fields(line)
	}

	return strings.Split(line, r.delim)
}

func (r *Reader) fail(line, reason string) Result {
	return Result{Err: &ErrorEntry{Row: r.row, Reason: reason, Line: line}}
}

func (r *Reader) parse(line string) Result {
	fields := r.Split(line)
	if len(fields) < r.minFields {
		return r.fail(line, fmt.Sprintf("expected at least %d columns but found %d", r.minFields, len(fields)))
	}

	var v Variant
	var err error

	if v.Chrom, err = chrom.Normalize(fields[r.opts.ColChrom]); err != nil {
		return r.fail(line, err.Error())
	}

	posToken := strings.TrimSpace(fields[r.opts.ColPos])
	if v.Pos, err = strconv.Atoi(posToken); err != nil || v.Pos < 0 {
		return r.fail(line, fmt.Sprintf("invalid position %q", posToken))
	}

	v.Ref = strings.TrimSpace(fields[r.opts.ColRef])
	v.Alt = strings.TrimSpace(fields[r.opts.ColAlt])
	if v.Ref == "" || v.Alt == "" {
		return r.fail(line, "missing allele")
	}
	if strings.ContainsAny(v.Ref, "\t\n") || strings.ContainsAny(v.Alt, "\t\n") {
		return r.fail(line, "allele contains a tab")
	}

	if v.NegLogPvalue, err = NegLogPvalue(fields[r.opts.ColPvalue], r.opts.IsLogPvalue); err != nil {
		return r.fail(line, err.Error())
	}

	if r.opts.HasMAF() {
		if v.MAF, err = MinorAlleleFrequency(fields[r.opts.ColMAF]); err != nil {
			return r.fail(line, err.Error())
		}
	}

	return Result{Variant: v}
}
