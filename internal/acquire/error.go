package acquire

import "fmt"

// Kind classifies an acquisition failure.
type Kind int

const (
	// KindNotFound: the reference does not resolve to a repository,
	// directory, or archive.
	KindNotFound Kind = iota
	// KindUnauthorized: the source exists but access was denied.
	KindUnauthorized
	// KindTimeout: the fetch exceeded the acquisition budget.
	KindTimeout
	// KindMalformed: the reference is unrecognizable or the fetched content
	// lacks the minimal expected project structure.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is an acquisition failure. It is fatal to the submission: no rubric
// criterion runs after it.
type Error struct {
	Kind   Kind
	Ref    string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("acquiring %q: %s", e.Ref, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, ref, detail string, cause error) *Error {
	return &Error{Kind: kind, Ref: ref, Detail: detail, Err: cause}
}
