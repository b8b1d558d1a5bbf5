// Package manhattan reduces a normalized store to the best significance per
// fixed-width genomic bin, plus a bounded list of individually plotted peaks.
package manhattan

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/sigpolicy"
	"github.com/carbocation/gwasingest/store"
	"github.com/carbocation/runningvariance"
)

const (
	DefaultBinWidth      = 3000000
	DefaultPeakThreshold = 5.0
	DefaultMaxPeaks      = 500
)

// Bin covers positions [Start, End) on one chromosome.
type Bin struct {
	Index        int     `json:"bin"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	NegLogPvalue float64 `json:"neg_log_pvalue"`
	Variants     int     `json:"variants"`
}

type Chromosome struct {
	Chrom    string  `json:"chrom"`
	Variants int     `json:"variants"`
	Mean     float64 `json:"mean_neg_log_pvalue"`
	SD       float64 `json:"sd_neg_log_pvalue"`
	Bins     []Bin   `json:"bins"`
}

// Peak is a single variant drawn individually on top of the bins.
type Peak struct {
	Chrom        string  `json:"chrom"`
	Pos          int     `json:"pos"`
	Ref          string  `json:"ref"`
	Alt          string  `json:"alt"`
	NegLogPvalue float64 `json:"neg_log_pvalue"`
}

type Result struct {
	BinWidth    int          `json:"bin_width"`
	Chromosomes []Chromosome `json:"chromosomes"`
	Peaks       []Peak       `json:"peaks"`
}

type Config struct {
	BinWidth      int
	PeakThreshold float64
	MaxPeaks      int
	Policy        sigpolicy.Policy
}

type binKey struct {
	chrom string
	index int
}

// Binner accumulates in memory proportional to the number of bins and
// MaxPeaks, independent of the number of variants.
type Binner struct {
	cfg   Config
	bins  map[binKey]*Bin
	stats map[string]*runningvariance.RunningStat
	peaks peakHeap
	seq   int
}

func NewBinner(cfg Config) (*Binner, error) {
	if cfg.BinWidth <= 0 {
		return nil, fmt.Errorf("bin width must be positive, got %d", cfg.BinWidth)
	}
	if cfg.MaxPeaks < 0 {
		return nil, fmt.Errorf("max peaks must be non-negative, got %d", cfg.MaxPeaks)
	}
	if cfg.Policy == nil {
		cfg.Policy = sigpolicy.Exclude{}
	}

	return &Binner{
		cfg:   cfg,
		bins:  make(map[binKey]*Bin),
		stats: make(map[string]*runningvariance.RunningStat),
	}, nil
}

func (b *Binner) Add(v parser.Variant) {
	x, ok := b.cfg.Policy.Apply(v)
	if !ok {
		return
	}
	b.seq++

	key := binKey{chrom: v.Chrom, index: v.Pos / b.cfg.BinWidth}
	bin, exists := b.bins[key]
	if !exists {
		bin = &Bin{
			Index:        key.index,
			Start:        key.index * b.cfg.BinWidth,
			End:          (key.index + 1) * b.cfg.BinWidth,
			NegLogPvalue: x,
		}
		b.bins[key] = bin
	}
	if x > bin.NegLogPvalue {
		bin.NegLogPvalue = x
	}
	bin.Variants++

	rs, exists := b.stats[v.Chrom]
	if !exists {
		rs = runningvariance.NewRunningStat()
		b.stats[v.Chrom] = rs
	}
	rs.Push(x)

	if b.cfg.MaxPeaks > 0 && x >= b.cfg.PeakThreshold {
		p := peak{Peak: Peak{Chrom: v.Chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt, NegLogPvalue: x}, seq: b.seq}
		if b.peaks.Len() < b.cfg.MaxPeaks {
			heap.Push(&b.peaks, p)
		} else if x > b.peaks[0].NegLogPvalue {
			// Later arrivals lose ties, so only a strictly better value evicts.
			b.peaks[0] = p
			heap.Fix(&b.peaks, 0)
		}
	}
}

// Result returns chromosomes in genome order with their bins ascending.
func (b *Binner) Result() Result {
	out := Result{BinWidth: b.cfg.BinWidth, Chromosomes: []Chromosome{}, Peaks: []Peak{}}

	keys := make([]binKey, 0, len(b.bins))
	for k := range b.bins {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].chrom != keys[j].chrom {
			return chrom.Compare(keys[i].chrom, 0, keys[j].chrom, 0) < 0
		}
		return keys[i].index < keys[j].index
	})

	for _, k := range keys {
		if n := len(out.Chromosomes); n == 0 || out.Chromosomes[n-1].Chrom != k.chrom {
			rs := b.stats[k.chrom]
			c := Chromosome{Chrom: k.chrom, Variants: int(rs.N), Mean: rs.Mean()}
			if rs.N > 1 {
				c.SD = rs.StandardDeviation()
			}
			if math.IsNaN(c.SD) || math.IsInf(c.SD, 0) {
				c.SD = 0
			}
			out.Chromosomes = append(out.Chromosomes, c)
		}
		c := &out.Chromosomes[len(out.Chromosomes)-1]
		c.Bins = append(c.Bins, *b.bins[k])
	}

	peaks := append(peakHeap(nil), b.peaks...)
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].seq < peaks[j].seq })
	for _, p := range peaks {
		out.Peaks = append(out.Peaks, p.Peak)
	}

	return out
}

// Build streams the store at path once.
func Build(ctx context.Context, path string, cfg Config) (Result, error) {
	b, err := NewBinner(cfg)
	if err != nil {
		return Result{}, err
	}

	err = store.Each(ctx, path, func(v parser.Variant) error {
		b.Add(v)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return b.Result(), nil
}

type peak struct {
	Peak
	seq int
}

// peakHeap is a min-heap on significance; among equals the latest arrival is
// the minimum.
type peakHeap []peak

func (h peakHeap) Len() int { return len(h) }
func (h peakHeap) Less(i, j int) bool {
	if h[i].NegLogPvalue != h[j].NegLogPvalue {
		return h[i].NegLogPvalue < h[j].NegLogPvalue
	}
	return h[i].seq > h[j].seq
}
func (h peakHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *peakHeap) Push(x interface{}) { *h = append(*h, x.(peak)) }
func (h *peakHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
