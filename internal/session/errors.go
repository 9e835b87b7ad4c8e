package session

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Preconditions. These gate the pipeline and are reported as warnings, not failures.
var (
	ErrAwaitingCredential = errors.New("awaiting credential")
	ErrAwaitingDocument   = errors.New("awaiting document")
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrBusy               = errors.New("session is busy")
)

type Stage int

const (
	StageIngestion Stage = iota
	StageIndexing
	StageRetrieval
	StageGeneration
)

func (s Stage) String() string {
	switch s {
	case StageIngestion:
		return "ingestion"
	case StageIndexing:
		return "indexing"
	case StageRetrieval:
		return "retrieval"
	case StageGeneration:
		return "generation"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError is a failure of one pipeline stage. Error() is safe to show to the
// operator; Trace belongs in the log only.
type StageError struct {
	Stage Stage
	Err   error
	// Trace is the goroutine stack at the capture site, i.e. where the stage
	// wrapped the failure. The origin of Err is found through its wrap chain.
	Trace string
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err, Trace: string(debug.Stack())}
}

func (e *StageError) Error() string { return fmt.Sprintf("%s failed: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err only means the session is waiting for input.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAwaitingCredential) ||
		errors.Is(err, ErrAwaitingDocument) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrBusy)
}
