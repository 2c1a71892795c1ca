// Package sentryinit configures the Sentry client that both the API process
// and the worker process initialise, using the same Sentry project either
// way. It reports only what is sent through CaptureInvariantViolation; no
// panic-capturing middleware or recover hook is installed.
package sentryinit

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Init configures the global Sentry client. A blank dsn disables reporting
// (sentry-go no-ops in that case) so local development never needs a DSN.
func Init(dsn, environment string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 0.1,
	})
}

// Flush blocks until pending events are delivered or the timeout elapses;
// callers defer this right after Init.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureInvariantViolation reports a condition the spec says must be
// impossible (e.g. two active matches for one canonical lead), tagged so
// it's easy to filter for in the Sentry project.
func CaptureInvariantViolation(message string, extra map[string]any) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("kind", "invariant_violation")
		for k, v := range extra {
			scope.SetExtra(k, v)
		}
		sentry.CaptureMessage(message)
	})
}
