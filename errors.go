package main

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrFetch         = errors.New("fetch error")
	ErrCompression   = errors.New("compression error")
	ErrUpload        = errors.New("upload error")
	ErrCleanup       = errors.New("cleanup error")
)

// ArchiveStep is the last state a station reached before processing stopped.
type ArchiveStep int

const (
	STEP_PENDING ArchiveStep = iota
	STEP_FETCHED
	STEP_COMPRESSED
	STEP_UPLOADED
	STEP_CLEANED
)

func (s ArchiveStep) String() string {
	switch s {
	case STEP_PENDING:
		return "pending"
	case STEP_FETCHED:
		return "fetched"
	case STEP_COMPRESSED:
		return "compressed"
	case STEP_UPLOADED:
		return "uploaded"
	case STEP_CLEANED:
		return "cleaned"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// sentinel for the operation that was attempted from a given state
func (s ArchiveStep) failureKind() error {
	switch s {
	case STEP_PENDING:
		return ErrFetch
	case STEP_FETCHED:
		return ErrCompression
	case STEP_COMPRESSED:
		return ErrUpload
	case STEP_UPLOADED:
		return ErrCleanup
	}
	return nil
}

type ArchiveError struct {
	Station string
	Step    ArchiveStep
	Err     error
}

func (e *ArchiveError) Error() string {
	kind := e.Step.failureKind()
	if kind == nil {
		return fmt.Sprintf("station %s (%s): %v", e.Station, e.Step, e.Err)
	}
	return fmt.Sprintf("station %s: %v (reached %s): %v", e.Station, kind, e.Step, e.Err)
}

func (e *ArchiveError) Unwrap() []error {
	if kind := e.Step.failureKind(); kind != nil {
		return []error{kind, e.Err}
	}
	return []error{e.Err}
}
