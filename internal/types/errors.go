package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can decide whether a
// failure is fatal for the run or local to one segment.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAcquisition
	KindTranscription
	KindClassification
	KindRender
	KindConfiguration
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindTranscription:
		return "transcription"
	case KindClassification:
		return "classification"
	case KindRender:
		return "render"
	case KindConfiguration:
		return "configuration"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a kind- and step-aware error. Segment is the transcript index of
// the affected segment, or -1 when the error concerns the whole run.
type Error struct {
	Kind    ErrorKind
	Step    string
	Segment int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.String()
	if e.Step != "" {
		prefix += " " + e.Step
	}
	if e.Segment >= 0 {
		prefix = fmt.Sprintf("%s (segment %d)", prefix, e.Segment)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindRender})
// works without comparing steps or causes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Segment: -1, Err: err}
}

func SegmentError(kind ErrorKind, step string, segment int, err error) *Error {
	return &Error{Kind: kind, Step: step, Segment: segment, Err: err}
}

func Configf(format string, args ...any) *Error {
	return NewError(KindConfiguration, "", fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StepOf returns the step of the first *Error in err's chain.
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}

// IsFatal reports whether an error of this kind aborts the whole run.
func (k ErrorKind) IsFatal() bool {
	switch k {
	case KindAcquisition, KindTranscription, KindConfiguration:
		return true
	default:
		return false
	}
}
