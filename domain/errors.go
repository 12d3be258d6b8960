package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
)

// ValidationError carries every message produced while checking an input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// NewValidationError returns nil when msgs is empty.
func NewValidationError(msgs ...string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Messages: msgs}
}

func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

func Conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}

type AnalysisErrorKind string

const (
	KindInvalidRequest      AnalysisErrorKind = "invalid_request"
	KindUnauthorized        AnalysisErrorKind = "unauthorized"
	KindRateLimited         AnalysisErrorKind = "rate_limited"
	KindUpstreamUnavailable AnalysisErrorKind = "upstream_unavailable"
	KindResponseTruncated   AnalysisErrorKind = "response_truncated"
	KindResponseIncomplete  AnalysisErrorKind = "response_incomplete"
	KindMalformedResponse   AnalysisErrorKind = "malformed_response"
)

// AnalysisError is the single failure type surfaced by the scoring pipeline.
type AnalysisError struct {
	Kind       AnalysisErrorKind
	Message    string
	StatusCode int // upstream HTTP status, 0 when not applicable
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis %s: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// AnalysisErrorForStatus maps a non-200 upstream status to its error kind.
func AnalysisErrorForStatus(status int) *AnalysisError {
	switch {
	case status == 400:
		return &AnalysisError{Kind: KindInvalidRequest, StatusCode: status,
			Message: "invalid request to the scoring service (malformed JSON or invalid data)"}
	case status == 401 || status == 403:
		return &AnalysisError{Kind: KindUnauthorized, StatusCode: status,
			Message: "scoring service API key invalid or access denied"}
	case status == 429:
		return &AnalysisError{Kind: KindRateLimited, StatusCode: status,
			Message: "scoring service rate limit exceeded, please retry in a few moments"}
	case status == 503:
		return &AnalysisError{Kind: KindUpstreamUnavailable, StatusCode: status,
			Message: "scoring service temporarily unavailable"}
	case status >= 500:
		return &AnalysisError{Kind: KindUpstreamUnavailable, StatusCode: status,
			Message: fmt.Sprintf("scoring service server error (%d), please retry", status)}
	default:
		return &AnalysisError{Kind: KindInvalidRequest, StatusCode: status,
			Message: fmt.Sprintf("scoring service error (%d)", status)}
	}
}
