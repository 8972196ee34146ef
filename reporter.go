package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// FaultReporter ships failures somewhere they can be triaged after the run.
type FaultReporter interface {
	Report(err error)
	Flush(timeout time.Duration)
}

// reportPanic must be deferred directly. It reports a panic, flushes and panics again with the same value.
func reportPanic(reporter FaultReporter) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	reporter.Report(fmt.Errorf("panic: %w", err))
	reporter.Flush(5 * time.Second)
	panic(r)
}

type noopReporter struct{}

func (noopReporter) Report(error)        {}
func (noopReporter) Flush(time.Duration) {}

type sentryReporter struct {
	hub   *sentry.Hub
	runID string
}

func NewSentryReporter(dsn string, runID string) (FaultReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: dsn})
	if err != nil {
		return nil, err
	}
	return &sentryReporter{
		hub:   sentry.NewHub(client, sentry.NewScope()),
		runID: runID,
	}, nil
}

func (r *sentryReporter) Report(err error) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", r.runID)
		var archiveErr *ArchiveError
		if errors.As(err, &archiveErr) {
			scope.SetTag("station", archiveErr.Station)
			scope.SetTag("step", archiveErr.Step.String())
		}
		r.hub.CaptureException(err)
	})
}

func (r *sentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}
