// Package ingestlog writes the plain-text log delivered to the uploader: one
// line per excluded row, state transitions, and a single terminal line.
package ingestlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/carbocation/pfx"
)

const (
	SuccessMessage = "GWAS file has been converted."
	FailureMessage = "Could not create normalized GWAS file."

	// SummaryFailureMessage ends a run whose file was converted but whose
	// required summaries were not produced.
	SummaryFailureMessage = "GWAS file was converted, but required summaries could not be computed."
)

// Log is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	w        *bufio.Writer
	closer   io.Closer
	terminal string
	excluded int
	err      error
}

// Create truncates path. Reruns therefore start with a fresh log.
func Create(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return New(f), nil
}

// New logs to w. If w is an io.Closer it is closed by Close.
func New(w io.Writer) *Log {
	l := &Log{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}

	return l
}

func (l *Log) println(line string) {
	if l.err != nil {
		return
	}
	if _, err := l.w.WriteString(line); err != nil {
		l.err = err
		return
	}
	l.err = l.w.WriteByte('\n')
}

// Excluded records a row that was left out of the normalized store.
func (l *Log) Excluded(row int, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.excluded++
	l.println(fmt.Sprintf("Excluded row %d from output due to parse error: %s", row, oneLine(reason)))
}

// Transition records a pipeline state change.
func (l *Log) Transition(state, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.println(fmt.Sprintf("[%s] %s", state, oneLine(fmt.Sprintf(format, args...))))
}

// Succeed records the terminal success line. Only the first of Succeed or
// Fail takes effect; it returns false if a terminal line was already set.
func (l *Log) Succeed(msg string) bool {
	return l.setTerminal("[success] " + oneLine(msg))
}

// Fail records the terminal failure line.
func (l *Log) Fail(msg string) bool {
	return l.setTerminal("[failure] " + oneLine(msg))
}

// Revoke records a terminal failure line, replacing a success recorded
// earlier. It does not replace an earlier failure.
func (l *Log) Revoke(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.terminal == "" || strings.HasPrefix(l.terminal, "[success] ") {
		l.terminal = "[failure] " + oneLine(msg)
	}
}

func (l *Log) setTerminal(line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.terminal != "" {
		return false
	}
	l.terminal = line

	return true
}

// Excluded rows recorded so far.
func (l *Log) ExcludedRows() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.excluded
}

// Close writes the terminal line, defaulting to a failure if none was set,
// flushes and closes the destination.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.terminal == "" {
		l.terminal = "[failure] " + FailureMessage
	}
	l.println(l.terminal)

	if err := l.w.Flush(); err != nil && l.err == nil {
		l.err = err
	}
	if l.closer != nil {
		if err := l.closer.Close(); err != nil && l.err == nil {
			l.err = err
		}
	}

	return l.err
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
