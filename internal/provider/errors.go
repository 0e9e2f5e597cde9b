package provider

import (
	"fmt"
	"strings"
)

// SubmitError is a single adapter's failure to create a job. It covers
// transport failures (Err set), non-2xx responses and unusable bodies.
type SubmitError struct {
	AdapterID       string
	HTTPStatus      int
	ProviderMessage string
	Err             error
}

func (e *SubmitError) Error() string {
	return describe("submit", e.AdapterID, e.HTTPStatus, e.ProviderMessage, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// StatusError is a failure to fetch or interpret a job status. A provider
// reporting the job as failed is not a StatusError.
type StatusError struct {
	AdapterID       string
	JobID           string
	HTTPStatus      int
	ProviderMessage string
	Err             error
}

func (e *StatusError) Error() string {
	return describe("status", e.AdapterID, e.HTTPStatus, e.ProviderMessage, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// UnknownAdapterError is returned when a poll names an adapter that is not configured
type UnknownAdapterError struct {
	AdapterID string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q", e.AdapterID)
}

// AdapterFailure records why one adapter was skipped during fallback
type AdapterFailure struct {
	AdapterID string
	Err       error
}

// AllAdaptersFailedError is returned when every configured adapter rejected a submission.
// Failures are kept in attempt order.
type AllAdaptersFailedError struct {
	Failures []AdapterFailure
}

func (e *AllAdaptersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Err.Error())
	}
	return fmt.Sprintf("all %d provider adapters failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Summary is a client-safe message without provider payloads
func (e *AllAdaptersFailedError) Summary() string {
	return fmt.Sprintf("video generation could not be started: all %d provider adapters failed", len(e.Failures))
}

func (e *AllAdaptersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func describe(op, adapterID string, status int, message string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "adapter %s: %s", adapterID, op)
	if status != 0 {
		fmt.Fprintf(&b, " (status %d)", status)
	}
	if message != "" {
		fmt.Fprintf(&b, ": %s", message)
	}
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	return b.String()
}
