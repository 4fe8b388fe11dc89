package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAuthFatal indicates authentication failed even after a token refresh.
	// This aborts the whole run, not just the current track.
	ErrAuthFatal = errors.New("authentication failed after refresh")

	// ErrRateLimitExhausted indicates too many consecutive 429 responses
	// on a single logical operation
	ErrRateLimitExhausted = errors.New("rate limit exhausted")

	// ErrSchemaMismatch indicates the destination table is missing an
	// expected column (misconfiguration, fatal to the run)
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ErrorKind categorizes a per-track pipeline failure
type ErrorKind string

const (
	KindMatchTags          ErrorKind = "match-tags"
	KindMatchNetwork       ErrorKind = "match-network"
	KindMatchLowScore      ErrorKind = "match-low-score"
	KindMatchIO            ErrorKind = "match-io"
	KindAnalyzeExtractor   ErrorKind = "analyze-extractor"
	KindAnalyzeIO          ErrorKind = "analyze-io"
	KindMergeMissingInput  ErrorKind = "merge-missing-input"
	KindMergeIdentity      ErrorKind = "merge-identity-mismatch"
	KindLoadMissingInput   ErrorKind = "load-missing-input"
	KindLoadSchema         ErrorKind = "load-schema"
	KindLoadLocked         ErrorKind = "load-locked"
	KindDownloadAmbiguous  ErrorKind = "downloader-diff-ambiguous"
	KindRateLimitExhausted ErrorKind = "rate-limit-exhausted"
	KindAuthFatal          ErrorKind = "auth-fatal"
)

// StageError wraps an underlying error with a pipeline failure category.
// The orchestrator uses the kind to route the failure to the right stage
// counter and log stream.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with a failure category
func NewStageError(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// KindOf extracts the failure category from an error chain.
// Returns an empty kind when the error carries no category.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsFatal reports whether an error must abort the whole run rather than
// just the current track
func IsFatal(err error) bool {
	if errors.Is(err, ErrAuthFatal) || errors.Is(err, ErrSchemaMismatch) {
		return true
	}
	switch KindOf(err) {
	case KindAuthFatal, KindLoadSchema:
		return true
	}
	return false
}
