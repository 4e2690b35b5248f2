package capture

import (
	"errors"
	"fmt"
)

// Kind classifies a capture failure by the stage it happened in.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUsage is a bad or missing argument, detected before any resource is used.
	KindUsage
	// KindAcquisition means the backend failed to start or to open a page.
	KindAcquisition
	// KindNavigation means the URL was unreachable or the wait condition was not met.
	KindNavigation
	// KindCapture means rendering or writing the image failed.
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "UsageError"
	case KindAcquisition:
		return "AcquisitionError"
	case KindNavigation:
		return "NavigationError"
	case KindCapture:
		return "CaptureError"
	default:
		return "UnknownError"
	}
}

var (
	ErrMissingURL    = errors.New("target url is required")
	ErrMissingOutput = errors.New("output path is required")
	ErrDisallowed    = errors.New("disallowed by robots.txt")
)

// Error is returned by Command.Run for every failure.
type Error struct {
	Kind Kind
	// Op is the step that failed, e.g. "navigate".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a target *Error with the same Kind, so callers can write
// errors.Is(err, &capture.Error{Kind: capture.KindNavigation}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op) && t.Err == nil
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// UsageError builds a usage error for the given cause.
func UsageError(err error) error {
	return newError(KindUsage, "", err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
