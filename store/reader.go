package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/tabix"
	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/pfx"
)

const maxLine = bgzf.BlockSize

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	} else if err != nil {
		return nil, pfx.Err(err)
	}
	return f, nil
}

// Reader scans a finalized store from the start. Any number of Readers may
// share one store.
type Reader struct {
	f       *os.File
	bg      *bgzf.Reader
	sc      *bufio.Scanner
	withMAF bool
	line    int
	cur     parser.Variant
	err     error
}

// Open returns ErrNotFound (wrapped) when path does not exist.
func Open(path string) (*Reader, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}

	bg, err := bgzf.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	sc := bufio.NewScanner(bg)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	r := &Reader{f: f, bg: bg, sc: sc}

	if !sc.Scan() {
		err := sc.Err()
		if err == nil {
			err = fmt.Errorf("%w: missing header", ErrCorruptLine)
		}
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.line++

	switch sc.Text() {
	case headerLine:
	case headerLineMAF:
		r.withMAF = true
	default:
		r.Close()
		return nil, fmt.Errorf("%s: %w: unexpected header %q", path, ErrCorruptLine, sc.Text())
	}

	return r, nil
}

// HasMAF reports whether the store carries a maf column.
func (r *Reader) HasMAF() bool {
	return r.withMAF
}

func (r *Reader) Scan() bool {
	if r.err != nil || !r.sc.Scan() {
		if r.err == nil {
			r.err = r.sc.Err()
		}
		return false
	}
	r.line++

	v, err := ParseLine(r.sc.Text())
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.line, err)
		return false
	}
	r.cur = v

	return true
}

func (r *Reader) Variant() parser.Variant {
	return r.cur
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	r.bg.Close()
	return r.f.Close()
}

// Each calls fn for every variant in the store, stopping at the first error
// or when ctx is done.
func Each(ctx context.Context, path string, fn func(parser.Variant) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for r.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r.Variant()); err != nil {
			return err
		}
	}

	return r.Err()
}

// Fetch returns the variants inside region using the tabix index. A
// maxRegion of 0 disables the width limit.
func Fetch(path string, region chrom.Region, maxRegion int) ([]parser.Variant, error) {
	if err := region.Check(maxRegion); err != nil {
		return nil, err
	}

	idx, err := readIndex(path + IndexSuffix)
	if err != nil {
		return nil, err
	}

	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// An index without references belongs to a store without rows.
	if idx == nil {
		return []parser.Variant{}, nil
	}

	known := false
	for _, name := range idx.Names() {
		if name == region.Chrom {
			known = true
			break
		}
	}
	if !known {
		return []parser.Variant{}, nil
	}

	start := region.Start - 1
	if start < 0 {
		start = 0
	}
	out := []parser.Variant{}
	chunks, err := idx.Chunks(region.Chrom, start, region.End)
	if errors.Is(err, index.ErrInvalid) {
		// The region starts past the last indexed tile of the chromosome.
		return out, nil
	} else if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", region, err))
	}
	if len(chunks) == 0 {
		return out, nil
	}

	bg, err := bgzf.NewReader(f, 1)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer bg.Close()

	cr, err := index.NewChunkReader(bg, chunks)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer cr.Close()

	sc := bufio.NewScanner(cr)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		v, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		if region.Contains(v.Chrom, v.Pos) {
			out = append(out, v)
		}
	}

	return out, sc.Err()
}

func readIndex(path string) (*tabix.Index, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bg, err := bgzf.NewReader(f, 1)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	defer bg.Close()

	idx, err := tabix.ReadFrom(bg)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return idx, nil
}
