// Package apperr collects the typed error variants the control plane
// discriminates on (spec.md §7), so callers use errors.Is/As instead of
// string sniffing.
package apperr

import "errors"

var (
	// ErrAuthFailure signals a bad webhook signature or forge auth failure.
	// Never retried.
	ErrAuthFailure = errors.New("auth failure")

	// ErrValidationFailure signals a schema/regex rejection. Webhook
	// callers respond 400; queue callers ack-drop.
	ErrValidationFailure = errors.New("validation failure")

	// ErrRateLimited marks a webhook rejected for the hourly repo quota;
	// the gate itself reports this as a GateDecision reason, not an error.
	ErrRateLimited = errors.New("rate limited")

	// ErrSuperseded signals the worker observed a superseded dedup row.
	ErrSuperseded = errors.New("superseded")

	// ErrSandboxFailure wraps a non-zero sandbox exec result.
	ErrSandboxFailure = errors.New("sandbox failure")

	// ErrToolError is surfaced to the model as a tool_result with
	// is_error=true; it is not fatal to the agent loop.
	ErrToolError = errors.New("tool error")

	// ErrModelError wraps a model-API transport failure.
	ErrModelError = errors.New("model error")

	// ErrParseFailure signals no <review> block or invalid JSON.
	ErrParseFailure = errors.New("parse failure")
)

// SandboxError carries the scrubbed exec failure text alongside the
// sentinel so callers can still log detail while matching on type.
type SandboxError struct {
	Op      string
	Message string
	Retryable bool
}

func (e *SandboxError) Error() string {
	return "sandbox: " + e.Op + ": " + e.Message
}

func (e *SandboxError) Unwrap() error { return ErrSandboxFailure }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailure }
