package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrSetup         = errors.New("setup failed")
	ErrSource        = errors.New("corpus source error")
	ErrInvariant     = errors.New("pipeline invariant violated")
	ErrPersist       = errors.New("persistence failed")
	ErrCacheMiss     = errors.New("result not cached")
)

// Pipeline stages named in StageError.
const (
	StageSource     = "source"
	StageAggregate  = "aggregate"
	StageRank       = "rank"
	StageCategorize = "categorize"
	StagePersist    = "persist"
)

// StageError records which entity kind, stage and destination table a
// failure belongs to.
type StageError struct {
	Kind  string
	Stage string
	Table string
	Err   error
}

func (e *StageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s pipeline, stage %s, table %s: %s", e.Kind, e.Stage, e.Table, e.Err.Error())
	}
	return fmt.Sprintf("%s pipeline, stage %s: %s", e.Kind, e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage wraps err in a StageError. A nil err stays nil.
func Stage(kind, stage, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Kind: kind, Stage: stage, Table: table, Err: err}
}

// Invariantf returns an ErrInvariant-wrapped error with a formatted message.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Exit codes returned by the CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitSetup     = 3
	ExitSource    = 4
	ExitPersist   = 5
	ExitInvariant = 70
)

// ExitCode maps err to a process exit code. Invariant violations win over
// everything else because they indicate a bug rather than an environment
// problem.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvariant):
		return ExitInvariant
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, ErrSetup):
		return ExitSetup
	case errors.Is(err, ErrSource):
		return ExitSource
	case errors.Is(err, ErrPersist):
		return ExitPersist
	default:
		return ExitFailure
	}
}
