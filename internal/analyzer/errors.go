package analyzer

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies an analysis failure
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindBackend
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBackend:
		return "backend"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is wrapped by backend adapters when the remote resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrTransient is wrapped by backend adapters for failures worth a second attempt.
	ErrTransient = errors.New("transient backend failure")
	// ErrNotInitialized is returned when the shared agent is used before Initialize.
	ErrNotInitialized = errors.New("agent not initialized")
)

// Error is the single error type produced by this package.
// Callers branch on Kind and NotFound, never on the wrapped cause.
type Error struct {
	Kind     Kind
	Op       string
	CallID   string
	NotFound bool
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.CallID != "" {
		b.WriteString(e.CallID)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a missing or invalid startup resource
func ConfigurationError(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// BackendError reports a failed remote call. An expired deadline is reported as a
// timeout and a cancelled caller as canceled.
func BackendError(op string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TimeoutError(op, err)
	case errors.Is(err, context.Canceled):
		return CanceledError(op, err)
	}
	return &Error{Kind: KindBackend, Op: op, NotFound: errors.Is(err, ErrNotFound), Err: err}
}

// TimeoutError reports an operation abandoned because its deadline passed
func TimeoutError(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// CanceledError reports an operation abandoned because the caller went away
func CanceledError(op string, err error) *Error {
	return &Error{Kind: KindCanceled, Op: op, Err: err}
}

// contextError classifies a finished context by why it finished
func contextError(ctx context.Context, op string) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TimeoutError(op, ctx.Err())
	}
	return CanceledError(op, ctx.Err())
}

// KindOf returns the kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a backend error tagged as not found
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.NotFound
	}
	return false
}

// withCall stamps the call id on err without mutating shared values
func withCall(err error, callID string) error {
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindUnknown, CallID: callID, Err: err}
	}
	stamped := *e
	stamped.CallID = callID
	return &stamped
}
