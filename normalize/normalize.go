// Package normalize converts a parsed summary-statistics stream into a
// normalized store, logging every excluded row.
package normalize

import (
	"context"
	"errors"
	"fmt"

	"github.com/carbocation/gwasingest/ingestlog"
	"github.com/carbocation/gwasingest/parser"
	"github.com/carbocation/gwasingest/store"
	"github.com/sirupsen/logrus"
)

var ErrNoRows = errors.New("no rows were written")

// TooManyBadLinesError aborts normalization.
type TooManyBadLinesError struct {
	Errors int
	Rows   int
	Limit  string
}

func (e *TooManyBadLinesError) Error() string {
	return fmt.Sprintf("too many unparseable rows: %d of %d (limit %s)", e.Errors, e.Rows, e.Limit)
}

// Normalizer settings. A zero MaxBadLines or MaxBadLineRatio disables that
// limit.
type Normalizer struct {
	MaxBadLines     int
	MaxBadLineRatio float64
	Logger          logrus.FieldLogger
}

type Summary struct {
	Rows     int
	Written  int
	Excluded int
}

// Normalize writes every parsed variant from r, in order, to dest. Nothing
// appears at dest unless the whole pass succeeds. The terminal line of log is
// set either way.
func (n Normalizer) Normalize(ctx context.Context, r *parser.Reader, dest string, log *ingestlog.Log) (s Summary, err error) {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	defer func() {
		if err != nil {
			log.Fail(ingestlog.FailureMessage)
			logger.WithError(err).WithField("dest", dest).Warnln("Normalization failed")
			return
		}
		log.Succeed(ingestlog.SuccessMessage)
	}()

	w, err := store.Create(dest, r.Options().HasMAF())
	if err != nil {
		return s, err
	}
	// Abort is a no-op once committed.
	defer w.Abort()

	for r.Scan() {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Rows++

		res := r.Result()
		if !res.OK() {
			s.Excluded++
			log.Excluded(res.Err.Row, res.Err.Reason)
			logger.WithField("row", res.Err.Row).Debugln(res.Err.Reason)

			if n.MaxBadLines > 0 && s.Excluded > n.MaxBadLines {
				return s, &TooManyBadLinesError{Errors: s.Excluded, Rows: s.Rows, Limit: fmt.Sprintf("%d rows", n.MaxBadLines)}
			}
			continue
		}

		if err := w.Write(res.Variant); err != nil {
			return s, fmt.Errorf("row %d: %w", r.Row(), err)
		}
		s.Written++
	}

	if err := r.Err(); err != nil {
		return s, err
	}

	if n.MaxBadLineRatio > 0 && s.Rows > 0 && float64(s.Excluded)/float64(s.Rows) > n.MaxBadLineRatio {
		return s, &TooManyBadLinesError{Errors: s.Excluded, Rows: s.Rows, Limit: fmt.Sprintf("%g of rows", n.MaxBadLineRatio)}
	}

	if s.Written == 0 {
		return s, ErrNoRows
	}

	if err := w.Commit(); err != nil {
		return s, err
	}

	logger.WithFields(logrus.Fields{
		"dest":     dest,
		"written":  s.Written,
		"excluded": s.Excluded,
	}).Infoln("Normalized store written")

	return s, nil
}
