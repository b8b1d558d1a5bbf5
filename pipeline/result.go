package pipeline

import (
	"context"
	"errors"

	"github.com/carbocation/gwasingest"
	"github.com/carbocation/gwasingest/chrom"
	"github.com/carbocation/gwasingest/normalize"
	"github.com/carbocation/gwasingest/qq"
	"github.com/carbocation/gwasingest/tophit"
	"github.com/carbocation/gwasingest/validate"
	"github.com/google/uuid"
)

type State string

const (
	StateSniffing    State = "sniffing"
	StateValidating  State = "validating"
	StateNormalizing State = "normalizing"
	StateAggregating State = "aggregating"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusIncomplete Status = "succeeded_incomplete"
	StatusFailed     Status = "failed"
)

// Step names an aggregation artifact.
type Step string

const (
	StepManhattan Step = "manhattan"
	StepQQ        Step = "qq"
	StepTopHit    Step = "tophit"
)

var aggregationSteps = []Step{StepManhattan, StepQQ, StepTopHit}

func (s Step) aggregation() bool {
	for _, a := range aggregationSteps {
		if s == a {
			return true
		}
	}
	return false
}

type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindUnsupportedEncoding   ErrorKind = "UnsupportedEncoding"
	KindHeaderMismatch        ErrorKind = "HeaderMismatch"
	KindOrderingViolation     ErrorKind = "OrderingViolation"
	KindUnsupportedChromosome ErrorKind = "UnsupportedChromosome"
	KindTooManyBadLines       ErrorKind = "TooManyBadLines"
	KindNoUsableData          ErrorKind = "NoUsableData"
	KindNoTopHitFound         ErrorKind = "NoTopHitFound"
	KindCanceled              ErrorKind = "Canceled"
	KindInvalidOptions        ErrorKind = "InvalidOptions"
	KindUnexpectedIngest      ErrorKind = "UnexpectedIngest"
)

// GenericFailure is all that is surfaced for an UnexpectedIngest error.
const GenericFailure = "An unexpected error occurred while processing the file."

// Classify maps an error to its kind.
func Classify(err error) ErrorKind {
	var (
		headerErr   *validate.HeaderError
		orderErr    *chrom.OrderingError
		chromErr    *chrom.UnsupportedError
		tooManyErrs *normalize.TooManyBadLinesError
		stepErr     *StepError
	)

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &stepErr):
		return stepErr.Kind
	case errors.Is(err, ErrInvalidOptions):
		return KindInvalidOptions
	case errors.Is(err, gwasingest.ErrUnsupportedEncoding):
		return KindUnsupportedEncoding
	case errors.As(err, &headerErr):
		return KindHeaderMismatch
	case errors.As(err, &orderErr):
		return KindOrderingViolation
	case errors.As(err, &chromErr):
		return KindUnsupportedChromosome
	case errors.As(err, &tooManyErrs):
		return KindTooManyBadLines
	case errors.Is(err, validate.ErrNoUsableData), errors.Is(err, normalize.ErrNoRows), errors.Is(err, qq.ErrNoData):
		return KindNoUsableData
	case errors.Is(err, tophit.ErrNoTopHitFound):
		return KindNoTopHitFound
	}

	return KindUnexpectedIngest
}

// message is the caller-facing text for err.
func message(kind ErrorKind, err error) string {
	if err == nil {
		return ""
	}
	if kind == KindUnexpectedIngest {
		return GenericFailure
	}
	return err.Error()
}

// StepResult is the outcome of one aggregation step.
type StepResult struct {
	Status   Status    `json:"status"`
	Artifact string    `json:"artifact,omitempty"`
	Kind     ErrorKind `json:"error_kind,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Result is the terminal status of a run. Err is for programmatic
// inspection and is not serialized.
type Result struct {
	RunID   uuid.UUID `json:"run_id"`
	Status  Status    `json:"status"`
	State   State     `json:"state"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	Err     error     `json:"-"`
	Message string    `json:"message,omitempty"`

	LogPath   string              `json:"log"`
	Artifacts map[string]string   `json:"artifacts,omitempty"`
	Steps     map[Step]StepResult `json:"steps,omitempty"`

	SourceSHA256 string      `json:"source_sha256,omitempty"`
	Rows         int         `json:"rows"`
	Excluded     int         `json:"excluded"`
	TopHit       *tophit.Hit `json:"top_hit,omitempty"`
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded || r.Status == StatusIncomplete
}
