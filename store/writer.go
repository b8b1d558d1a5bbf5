package store

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/tabix"
	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/pfx"
)

// countingWriter tracks compressed bytes written so the writer can compute
// virtual offsets of block starts.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Writer is the single writer of a normalized store. Nothing is visible at
// the destination path until Commit succeeds.
type Writer struct {
	path    string
	withMAF bool

	f   *os.File
	cw  *countingWriter
	bg  *bgzf.Writer
	idx *tabix.Index

	// Compressed offset of the current block and bytes buffered in it.
	blockStart int64
	inBlock    int

	rows      int
	lastChrom string
	lastPos   int
	line      []byte
	done      bool
}

// Create starts a new store destined for path.
func Create(path string, withMAF bool) (*Writer, error) {
	f, err := createTemp(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cw := &countingWriter{w: f}
	idx := tabix.New()
	idx.NameColumn = 1
	idx.BeginColumn = 2
	idx.EndColumn = 2
	idx.MetaChar = '#'

	w := &Writer{
		path:    path,
		withMAF: withMAF,
		f:       f,
		cw:      cw,
		bg:      bgzf.NewWriter(cw, 1),
		idx:     idx,
	}

	if err := w.writeLine([]byte(Header(withMAF) + "\n")); err != nil {
		w.Abort()
		return nil, err
	}

	return w, nil
}

// Rows is the number of variants written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// writeLine keeps every line inside a single BGZF block, so each line has
// a virtual offset range within one block.
func (w *Writer) writeLine(line []byte) error {
	if len(line) >= bgzf.BlockSize {
		return ErrRowTooLong
	}

	if w.inBlock > 0 && w.inBlock+len(line) >= bgzf.BlockSize {
		if err := w.bg.Flush(); err != nil {
			return pfx.Err(err)
		}
		if err := w.bg.Wait(); err != nil {
			return pfx.Err(err)
		}
		w.blockStart = w.cw.n
		w.inBlock = 0
	}

	if _, err := w.bg.Write(line); err != nil {
		return pfx.Err(err)
	}
	w.inBlock += len(line)

	return nil
}

// Write appends one variant. Variants must arrive sorted by chromosome rank
// and position.
func (w *Writer) Write(v parser.Variant) error {
	if w.done {
		return ErrCommitted
	}

	if _, ok := chrom.Rank(v.Chrom); !ok {
		return &chrom.UnsupportedError{Label: v.Chrom}
	}
	if w.rows > 0 && chrom.Compare(w.lastChrom, w.lastPos, v.Chrom, v.Pos) > 0 {
		return &chrom.OrderingError{
			Row:       w.rows + 1,
			PrevChrom: w.lastChrom,
			PrevPos:   w.lastPos,
			Chrom:     v.Chrom,
			Pos:       v.Pos,
		}
	}

	w.line = AppendLine(w.line[:0], v, w.withMAF)
	if len(w.line) >= bgzf.BlockSize {
		return fmt.Errorf("%v: %w", v, ErrRowTooLong)
	}

	// writeLine may start a new block, so take the begin offset afterwards.
	if err := w.writeLine(w.line); err != nil {
		return err
	}
	begin := bgzf.Offset{File: w.blockStart, Block: uint16(w.inBlock - len(w.line))}
	end := bgzf.Offset{File: w.blockStart, Block: uint16(w.inBlock)}

	if err := w.idx.Add(record{chrom: v.Chrom, pos: v.Pos}, bgzf.Chunk{Begin: begin, End: end}, true, true); err != nil {
		return pfx.Err(fmt.Errorf("indexing %v: %w", v, err))
	}
	if w.rows == 0 || v.Chrom != w.lastChrom {
		w.register(v.Chrom)
	}

	w.rows++
	w.lastChrom = v.Chrom
	w.lastPos = v.Pos

	return nil
}

// register records the reference ID of a chromosome the index has just seen
// for the first time. tabix.Index.Add appends new names but never enters them
// in the map it looks names up in, so without this every row would open a new
// reference. IDs returns that map.
func (w *Writer) register(name string) {
	w.idx.IDs()[name] = len(w.idx.Names()) - 1
}

// Commit finishes the compressed stream, writes the index and moves both into
// place, index first.
func (w *Writer) Commit() error {
	if w.done {
		return ErrCommitted
	}
	w.done = true

	if err := w.bg.Close(); err != nil {
		w.cleanup()
		return pfx.Err(err)
	}
	if err := w.f.Close(); err != nil {
		w.cleanup()
		return pfx.Err(err)
	}

	indexPath := w.path + IndexSuffix
	err := WriteFileAtomic(indexPath, func(out io.Writer) error {
		bw := bgzf.NewWriter(out, 1)
		if err := tabix.WriteTo(bw, w.idx); err != nil {
			bw.Close()
			return err
		}
		return bw.Close()
	})
	if err != nil {
		w.cleanup()
		return pfx.Err(fmt.Errorf("writing index: %w", err))
	}

	if err := os.Rename(w.f.Name(), w.path); err != nil {
		w.cleanup()
		return pfx.Err(err)
	}

	return nil
}

// Abort discards everything written. It is safe to call after Commit, where
// it does nothing.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	w.bg.Close()
	w.cleanup()

	return nil
}

func (w *Writer) cleanup() {
	w.f.Close()
	os.Remove(w.f.Name())
}
