package oops

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
	"github.com/rs/zerolog"
)

// Kind classifies a failure so callers can decide per kind whether to
// continue: an unreadable file, a corrupt compressed stream, or malformed
// PNG structure.
type Kind int

const (
	KindFormat Kind = iota + 1
	KindDecompress
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "invalid format"
	case KindDecompress:
		return "decompression failed"
	case KindIO:
		return "i/o error"
	}
	return "unknown error"
}

type Error struct {
	Kind    Kind
	Message string
	Wrapped error
	Stack   CallStack
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("png: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("png: %s: %s: %v", e.Kind, e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches the kind sentinels (ErrFormat, ErrDecompress, ErrIO) so that
// errors.Is(err, oops.ErrFormat) works regardless of the detail error.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.Kind
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

var (
	ErrFormat     error = kindSentinel(KindFormat)
	ErrDecompress error = kindSentinel(KindDecompress)
	ErrIO         error = kindSentinel(KindIO)
)

// Detail errors. These are wrapped inside an *Error and can be matched with
// errors.Is in addition to the kind.
var (
	ErrSignature     = errors.New("not a PNG file")
	ErrTruncated     = errors.New("unexpected end of data")
	ErrChecksum      = errors.New("checksum mismatch")
	ErrUnknownCode   = errors.New("unknown code")
	ErrUnknownChunk  = errors.New("no decoder for chunk type")
	ErrMissingHeader = errors.New("first chunk is not IHDR")
	ErrInvalidText   = errors.New("invalid UTF-8 text")
)

type CallStack []StackFrame

func (s CallStack) MarshalZerologArray(a *zerolog.Array) {
	for _, frame := range s {
		a.Object(frame)
	}
}

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) MarshalZerologObject(e *zerolog.Event) {
	e.
		Str("file", f.File).
		Int("line", f.Line).
		Str("function", f.Function)
}

var ZerologStackMarshaler = func(err error) interface{} {
	var asOops *Error
	if errors.As(err, &asOops) {
		return asOops.Stack
	}
	return nil
}

func Format(wrapped error, format string, args ...interface{}) error {
	return &Error{
		Kind:    KindFormat,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   trace(1),
	}
}

func Decompress(wrapped error, format string, args ...interface{}) error {
	return &Error{
		Kind:    KindDecompress,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   trace(1),
	}
}

func IO(wrapped error, format string, args ...interface{}) error {
	return &Error{
		Kind:    KindIO,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   trace(1),
	}
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var asOops *Error
	if errors.As(err, &asOops) {
		return asOops.Kind
	}
	return 0
}

func Trace() CallStack {
	return trace(1)
}

func trace(skip int) CallStack {
	calls := stack.Trace().TrimBelow(stack.Caller(skip + 1)).TrimRuntime()
	frames := make(CallStack, len(calls))
	for i, call := range calls {
		callFrame := call.Frame()
		frames[i] = StackFrame{
			File:     callFrame.File,
			Line:     callFrame.Line,
			Function: callFrame.Function,
		}
	}
	return frames
}
