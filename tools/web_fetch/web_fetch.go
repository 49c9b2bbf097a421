package web_fetch

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultDeadline = time.Second
	DefaultMaxBytes = 2 << 20
)

// Status tags the variant of an Outcome.
type Status int

const (
	StatusFailure Status = iota
	StatusEmpty
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	default:
		return "failure"
	}
}

// Failure reasons shared by every backend.
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
)

// Outcome is the result of fetching one page. Text is plain text and is set
// only for StatusSuccess; Reason only for StatusFailure.
type Outcome struct {
	URL     string
	Status  Status
	Text    string
	Reason  string
	Elapsed time.Duration
}

func Success(url, text string, elapsed time.Duration) Outcome {
	return Outcome{URL: url, Status: StatusSuccess, Text: text, Elapsed: elapsed}
}

func Empty(url string, elapsed time.Duration) Outcome {
	return Outcome{URL: url, Status: StatusEmpty, Elapsed: elapsed}
}

func Failure(url, reason string, elapsed time.Duration) Outcome {
	return Outcome{URL: url, Status: StatusFailure, Reason: reason, Elapsed: elapsed}
}

// FailureFromError classifies err, preferring the state of ctx so that a
// deadline or a cancellation is reported as such regardless of how the
// transport wrapped it.
func FailureFromError(ctx context.Context, url string, err error, elapsed time.Duration) Outcome {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return Failure(url, ReasonTimeout, elapsed)
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return Failure(url, ReasonCanceled, elapsed)
	default:
		return Failure(url, err.Error(), elapsed)
	}
}

// Session fetches pages over resources it owns (a connection pool, a
// browser). Fetch must honour both deadline and ctx cancellation by aborting
// the in-flight I/O and must never panic. Close releases the resources and is
// called once, after every Fetch has returned.
type Session interface {
	Fetch(ctx context.Context, url string, deadline time.Duration) Outcome
	Close() error
}

// Backend opens a Session per fan-out.
type Backend interface {
	NewSession(ctx context.Context) (Session, error)
}

type BackendType string

const (
	HTTPBackendType     BackendType = "http"
	ChromedpBackendType BackendType = "chromedp"
)

var ErrUnsupportedBackend = &Error{"unsupported fetch backend"}

type Error struct {
	msg string
}

func (e *Error) Error() string { return "web_fetch: " + e.msg }

// Options configures a backend.
type Options struct {
	UserAgent string
	MaxBytes  int64
	Extractor Extractor
}

// Normalized fills unset options with defaults.
func (o Options) Normalized() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Extractor == "" {
		o.Extractor = TextExtractor
	}
	return o
}
