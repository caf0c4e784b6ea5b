package watcher

import "errors"

var (
	ErrConfigInvalid = errors.New("invalid watch config")
	ErrAttach        = errors.New("failed to attach to target")
	ErrStream        = errors.New("stream failed")
	ErrNoMatch       = errors.New("no file matches target")
)

// Kind classifies a terminal session error
type Kind int

const (
	KindConfigInvalid Kind = iota + 1
	KindAttach
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "config_invalid"
	case KindAttach:
		return "attach_failure"
	case KindStream:
		return "stream_failure"
	default:
		return "unknown"
	}
}

// Error is the single value handed to a session's error callback.
// Error() returns the raw diagnostic text of the reader, unprefixed.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is lets errors.Is match an Error against the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfigInvalid:
		return e.Kind == KindConfigInvalid
	case ErrAttach:
		return e.Kind == KindAttach
	case ErrStream:
		return e.Kind == KindStream
	}
	return false
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
