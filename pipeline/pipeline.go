// Package pipeline runs one GWAS upload end to end: sniff, validate,
// normalize, then the Manhattan, QQ and top-hit aggregations.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/gwasingest"
	"github.com/carbocation/gwasingest/compileinfo"
	"github.com/carbocation/gwasingest/ingestlog"
	"github.com/carbocation/gwasingest/manhattan"
	"github.com/carbocation/gwasingest/normalize"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/qq"
	"github.com/carbocation/gwasingest/store"
	"github.com/carbocation/gwasingest/tophit"
	"github.com/carbocation/gwasingest/validate"
	"github.com/carbocation/pfx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidOptions = errors.New("invalid parser options")

// Paths are the outputs of one run. The caller owns the directory and must not
// share it between concurrent runs.
type Paths struct {
	Normalized string
	Log        string
	Manhattan  string
	QQ         string
	TopHit     string
}

func PathsIn(dir string) Paths {
	return Paths{
		Normalized: filepath.Join(dir, "normalized.gz"),
		Log:        filepath.Join(dir, "ingest.log"),
		Manhattan:  filepath.Join(dir, "manhattan.json"),
		QQ:         filepath.Join(dir, "qq.json"),
		TopHit:     filepath.Join(dir, "tophit.json"),
	}
}

type Pipeline struct {
	cfg    Config
	logger logrus.FieldLogger
	client *storage.Client
}

type Option func(*Pipeline)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithStorageClient enables gs:// sources.
func WithStorageClient(client *storage.Client) Option {
	return func(p *Pipeline) { p.client = client }
}

func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// run carries the mutable state of a single Run.
type run struct {
	*Pipeline
	res    Result
	log    *ingestlog.Log
	logger logrus.FieldLogger
}

func (r *run) transition(state State, format string, args ...interface{}) {
	r.res.State = state
	r.log.Transition(string(state), format, args...)
	r.logger.WithField("state", state).Infof(format, args...)
}

func (r *run) fail(err error) Result {
	kind := Classify(err)
	failedIn := r.res.State

	r.res.Status = StatusFailed
	r.res.State = StateFailed
	r.res.Kind = kind
	r.res.Err = err
	r.res.Message = message(kind, err)

	entry := r.logger.WithError(err).WithFields(logrus.Fields{"state": failedIn, "kind": kind})
	if kind == KindUnexpectedIngest {
		entry.Errorln("Ingest failed unexpectedly")
	} else {
		entry.Warnln("Ingest failed")
	}

	r.log.Transition(string(StateFailed), "%s: %s", failedIn, r.res.Message)
	if failedIn == StateAggregating {
		// Normalization already recorded its success.
		r.log.Revoke(ingestlog.SummaryFailureMessage)
	} else {
		r.log.Fail(ingestlog.FailureMessage)
	}

	return r.res
}

// Run never returns a nil-status result. Every outcome, including a failure to
// create the ingestion log, is described by the returned Result.
func (p *Pipeline) Run(ctx context.Context, source string, opts parser.Options, paths Paths) Result {
	r := &run{
		Pipeline: p,
		res: Result{
			RunID:     uuid.New(),
			State:     StateSniffing,
			LogPath:   paths.Log,
			Artifacts: map[string]string{},
		},
	}
	r.logger = p.logger.WithFields(logrus.Fields{"run_id": r.res.RunID, "source": source})
	r.logger.WithFields(compileinfo.Get().Fields()).Debugln("Starting ingest")

	log, err := createLog(paths.Log)
	if err != nil {
		r.logger.WithError(err).Errorln("Could not create the ingestion log")
		r.res.Status, r.res.State, r.res.Kind, r.res.Err = StatusFailed, StateFailed, KindUnexpectedIngest, err
		r.res.Message = GenericFailure
		return r.res
	}
	r.log = log
	defer func() {
		if err := log.Close(); err != nil {
			r.logger.WithError(err).Errorln("Could not write the ingestion log")
		}
	}()

	format, err := r.sniff(ctx, source, opts)
	if err != nil {
		return r.fail(err)
	}

	r.transition(StateValidating, "validating %s", filepath.Base(source))
	vs, err := r.validate(ctx, source, format, opts)
	r.res.Rows = vs.Rows
	if err != nil {
		return r.fail(err)
	}

	r.transition(StateNormalizing, "normalizing %d rows across %d chromosomes", vs.Rows, len(vs.Chromosomes))
	ns, err := r.normalize(ctx, source, format, opts, paths.Normalized)
	r.res.Excluded = ns.Excluded
	if err != nil {
		return r.fail(err)
	}
	r.res.Artifacts["normalized"] = paths.Normalized
	r.res.Artifacts["index"] = paths.Normalized + store.IndexSuffix

	r.transition(StateAggregating, "aggregating %d variants", ns.Written)
	if err := r.aggregate(ctx, paths); err != nil {
		return r.fail(err)
	}

	r.res.State = StateComplete
	r.log.Transition(string(StateComplete), "%s", r.res.Status)
	r.logger.WithFields(logrus.Fields{"status": r.res.Status, "rows": r.res.Rows, "excluded": r.res.Excluded}).Infoln("Ingest complete")

	return r.res
}

func createLog(path string) (*ingestlog.Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pfx.Err(err)
	}
	return ingestlog.Create(path)
}

func (r *run) sniff(ctx context.Context, source string, opts parser.Options) (gwasingest.Format, error) {
	r.transition(StateSniffing, "sniffing %s", filepath.Base(source))

	if err := opts.Check(); err != nil {
		return gwasingest.Format{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	format, err := gwasingest.Sniff(ctx, source, r.client)
	if err != nil {
		return format, err
	}
	if err := checkCompression(opts.Compression, format.DataType); err != nil {
		return format, err
	}

	sum, err := gwasingest.Checksum(ctx, source, r.client)
	if err != nil {
		return format, err
	}
	r.res.SourceSHA256 = sum

	r.log.Transition(string(StateSniffing), "detected %s with delimiter %q", format.DataType, format.Delimiter)
	r.logger.WithFields(logrus.Fields{"datatype": format.DataType, "layout": format.LayoutName, "sha256": sum}).Debugln("Sniffed source")

	return format, nil
}

// checkCompression rejects a declared compression the content contradicts.
// BGZF is a gzip stream, so either declaration accepts either.
func checkCompression(declared parser.Compression, dt gwasingest.DataType) error {
	gzipped := dt == gwasingest.DataTypeGzip || dt == gwasingest.DataTypeBGZF

	switch declared {
	case parser.CompressionNone:
		if dt.Compressed() {
			return fmt.Errorf("%w: options declare no compression but the file is %s", gwasingest.ErrUnsupportedEncoding, dt)
		}
	case parser.CompressionGzip, parser.CompressionBGZip:
		if !gzipped {
			return fmt.Errorf("%w: options declare %s but the file is %s", gwasingest.ErrUnsupportedEncoding, declared, dt)
		}
	}

	return nil
}

// open starts a fresh parse of source. Each pass reopens the source because a
// parser.Reader is not restartable.
func (r *run) open(ctx context.Context, source string, format gwasingest.Format, opts parser.Options) (*parser.Reader, func(), error) {
	src, _, err := gwasingest.OpenSource(ctx, source, r.client)
	if err != nil {
		return nil, nil, err
	}

	rc, err := gwasingest.Decompress(src, format.DataType)
	if err != nil {
		src.Close()
		return nil, nil, err
	}

	closer := func() {
		rc.Close()
		src.Close()
	}

	return parser.NewReader(rc, opts), closer, nil
}

func (r *run) validate(ctx context.Context, source string, format gwasingest.Format, opts parser.Options) (validate.Summary, error) {
	pr, closer, err := r.open(ctx, source, format, opts)
	if err != nil {
		return validate.Summary{}, err
	}
	defer closer()

	return validate.Validator{}.Validate(ctx, pr)
}

func (r *run) normalize(ctx context.Context, source string, format gwasingest.Format, opts parser.Options, dest string) (normalize.Summary, error) {
	pr, closer, err := r.open(ctx, source, format, opts)
	if err != nil {
		return normalize.Summary{}, err
	}
	defer closer()

	n := normalize.Normalizer{
		MaxBadLines:     r.cfg.MaxBadLines,
		MaxBadLineRatio: r.cfg.MaxBadLineRatio,
		Logger:          r.logger,
	}

	return n.Normalize(ctx, pr, dest, r.log)
}

// aggregate runs the three steps concurrently over the finalized store. A
// failing step never stops the others. The returned error is the first failure
// of a required step.
func (r *run) aggregate(ctx context.Context, paths Paths) error {
	policy, err := r.cfg.Policy()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	steps := make(map[Step]StepResult, len(aggregationSteps))
	var hit *tophit.Hit

	record := func(step Step, artifact string, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err == nil {
			steps[step] = StepResult{Status: StatusSucceeded, Artifact: artifact}
			return
		}

		kind := Classify(err)
		steps[step] = StepResult{Status: StatusFailed, Kind: kind, Message: message(kind, err)}
		r.logger.WithError(err).WithFields(logrus.Fields{"step": step, "kind": kind}).Warnln("Aggregation step failed")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := manhattan.Build(gctx, paths.Normalized, manhattan.Config{
			BinWidth:      r.cfg.BinWidth,
			PeakThreshold: r.cfg.PeakThreshold,
			MaxPeaks:      r.cfg.MaxPeaks,
			Policy:        policy,
		})
		if err == nil {
			err = writeJSON(paths.Manhattan, res)
		}
		record(StepManhattan, paths.Manhattan, err)
		return nil
	})

	g.Go(func() error {
		res, err := qq.Build(gctx, paths.Normalized, policy)
		if err == nil {
			err = writeJSON(paths.QQ, res)
		}
		record(StepQQ, paths.QQ, err)
		return nil
	})

	g.Go(func() error {
		res, err := tophit.Locate(gctx, paths.Normalized, policy, r.cfg.Flank)
		if err == nil {
			err = writeJSON(paths.TopHit, res)
		}
		if err == nil {
			mu.Lock()
			hit = &res
			mu.Unlock()
		}
		record(StepTopHit, paths.TopHit, err)
		return nil
	})

	// Steps report through record, so Wait has nothing to return.
	_ = g.Wait()

	r.res.Steps = steps
	r.res.TopHit = hit
	r.res.Status = StatusSucceeded

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, step := range aggregationSteps {
		sr := steps[step]
		if sr.Status == StatusSucceeded {
			r.res.Artifacts[string(step)] = sr.Artifact
			r.log.Transition(string(StateAggregating), "%s written", step)
			continue
		}

		r.log.Transition(string(StateAggregating), "%s failed: %s", step, sr.Message)
		if r.cfg.required(step) {
			return &StepError{Step: step, Kind: sr.Kind, Message: sr.Message}
		}
		r.res.Status = StatusIncomplete
	}

	return nil
}

// StepError is a failed required aggregation step.
type StepError struct {
	Step    Step
	Kind    ErrorKind
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("required step %s failed: %s", e.Step, e.Message)
}

// writeJSON replaces path atomically. encoding/json sorts map keys, so equal
// values produce equal bytes.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pfx.Err(err)
	}

	return store.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
