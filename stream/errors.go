package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/onnwee/streamlens/backend/scrape"
)

// ErrorClass represents whether a lookup failure may be retried or papered
// over with stale data.
type ErrorClass int

const (
	// ErrorClassTransient indicates a temporary upstream condition; stale
	// cache entries may be served and a later retry is reasonable.
	ErrorClassTransient ErrorClass = iota
	// ErrorClassInvalid indicates the identifier itself was rejected. Never
	// retried and never masked by stale data.
	ErrorClassInvalid
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classify maps a lookup error onto the retry taxonomy. Typed errors from the
// scraper and the Data API are checked first; the string fallback catches
// wrapped errors that lost their type.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, scrape.ErrInvalidIdentifier) {
		return ErrorClassInvalid
	}
	var se *scrape.StatusError
	if errors.As(err, &se) {
		return ErrorClassTransient
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == http.StatusBadRequest || ge.Code == http.StatusNotFound:
			return ErrorClassInvalid
		default:
			return ErrorClassTransient
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	lower := strings.ToLower(err.Error())
	invalidPatterns := []string{"invalid identifier", "invalid video id", "invalid channel id", "malformed"}
	for _, p := range invalidPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassInvalid
		}
	}
	transientPatterns := []string{"connection reset", "connection refused", "timeout", "no route to host", "eof", "broken pipe", "503", "502", "429"}
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassTransient
		}
	}
	return ErrorClassUnknown
}

// IsInvalidIdentifier checks if an error means the channel or video id itself
// was rejected upstream.
func IsInvalidIdentifier(err error) bool {
	return Classify(err) == ErrorClassInvalid
}

// IsTransient checks if an error is worth retrying or bridging with stale
// data. Unknown errors count as transient to avoid giving up too early.
func IsTransient(err error) bool {
	c := Classify(err)
	return c == ErrorClassTransient || c == ErrorClassUnknown
}
