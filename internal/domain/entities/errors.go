package entities

import (
	"errors"
	"fmt"
)

// Error kinds shared by usecases and adapters. Adapters wrap them with fmt.Errorf("...: %w").
var (
	ErrNotFound        = errors.New("not found")
	ErrFormat          = errors.New("invalid format")
	ErrEmbedding       = errors.New("embedding failed")
	ErrIndexQuery      = errors.New("index query failed")
	ErrIndexWrite      = errors.New("index write failed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// BatchError reports the record range [Start, End) of a failed ingestion batch so a caller can resume.
type BatchError struct {
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// StageError names the pipeline stage (load, build, query) an error escaped from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
