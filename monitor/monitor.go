package monitor

import (
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards pipeline failures to an error tracking backend. The
// pipeline treats it as fire-and-forget; a reporter must never block
// detection work.
type Reporter interface {
	CaptureError(err error)
	CaptureMessage(msg string)
	Flush(timeout time.Duration)
}

// Init returns a Sentry-backed reporter when a DSN is configured and a no-op
// reporter otherwise, so callers never need a nil check.
func Init(dsn string) (Reporter, error) {
	if dsn == "" {
		log.Printf("[Monitor] No DSN configured, error reporting disabled")
		return NopReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	log.Printf("[Monitor] Sentry reporting enabled")
	return sentryReporter{}, nil
}

type sentryReporter struct{}

func (sentryReporter) CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

func (sentryReporter) CaptureMessage(msg string) {
	sentry.CaptureMessage(msg)
}

func (sentryReporter) Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// NopReporter drops everything. Used when no DSN is configured and in tests.
type NopReporter struct{}

func (NopReporter) CaptureError(error)        {}
func (NopReporter) CaptureMessage(string)     {}
func (NopReporter) Flush(time.Duration)       {}
