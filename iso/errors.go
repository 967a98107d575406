package iso

import (
	"errors"
	"fmt"
	"strings"
)

// UsageError reports a malformed call on a workerized function. It is always
// returned synchronously and never reaches the isolate.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return "isoworker: " + e.Message
}

// ErrClosed is delivered to callbacks of calls issued after Close or after a
// transport fault tore the worker down.
var ErrClosed = &UsageError{Message: "context closed"}

// EncodingError reports a value the serializer cannot express as program text.
type EncodingError struct {
	Path   string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Path == "" {
		return "isoworker: cannot encode value: " + e.Reason
	}
	return fmt.Sprintf("isoworker: cannot encode %s: %s", e.Path, e.Reason)
}

// Fault is an application error raised inside the isolate, rebuilt in the
// caller realm. Value holds the reconstructed error object.
type Fault struct {
	Name    string
	Message string
	Trace   string
	Value   Value
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return f.Name
	}
	return f.Name + ": " + f.Message
}

// TransportError reports that the isolate itself failed: it crashed, exited
// or could no longer be written to.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "isoworker: transport failure: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ScriptError is an exception raised by the runtime itself before it has been
// materialized as an error object of some realm.
type ScriptError struct {
	Name    string
	Message string
}

func (e *ScriptError) Error() string {
	return e.Name + ": " + e.Message
}

func typeErrorf(format string, args ...any) error {
	return &ScriptError{Name: "TypeError", Message: fmt.Sprintf(format, args...)}
}

func rangeErrorf(format string, args ...any) error {
	return &ScriptError{Name: "RangeError", Message: fmt.Sprintf(format, args...)}
}

func referenceErrorf(format string, args ...any) error {
	return &ScriptError{Name: "ReferenceError", Message: fmt.Sprintf(format, args...)}
}

func cloneErrorf(format string, args ...any) error {
	return &ScriptError{Name: "DataCloneError", Message: fmt.Sprintf(format, args...)}
}

type StackFrame struct {
	Function string
	Pos      Position
}

// ThrowError carries a value thrown by script code, plus the frames it
// unwound through.
type ThrowError struct {
	Value  Value
	Frames []StackFrame
}

func (e *ThrowError) Error() string {
	var b strings.Builder
	b.WriteString("uncaught ")
	b.WriteString(e.Value.String())
	b.WriteString(e.Trace())
	return b.String()
}

// Trace renders the unwound frames one per line.
func (e *ThrowError) Trace() string {
	var b strings.Builder
	for _, frame := range e.Frames {
		name := frame.Function
		if name == "" {
			name = "<anonymous>"
		}
		if frame.Pos.Line > 0 {
			fmt.Fprintf(&b, "\n    at %s (%d:%d)", name, frame.Pos.Line, frame.Pos.Column)
		} else {
			fmt.Fprintf(&b, "\n    at %s", name)
		}
	}
	return b.String()
}

// ParseError is a syntax error with a rendered code frame.
type ParseError struct {
	Pos       Position
	Message   string
	CodeFrame string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	if e.CodeFrame != "" {
		msg += "\n" + e.CodeFrame
	}
	return msg
}

// errorParts extracts the name, message and trace of anything an isolate or a
// script can fail with.
func errorParts(err error) (name, message, trace string) {
	var thrown *ThrowError
	var scriptErr *ScriptError
	switch {
	case errors.As(err, &thrown):
		trace = strings.TrimPrefix(thrown.Trace(), "\n")
		obj := thrown.Value.Object()
		if obj == nil {
			return "Error", thrown.Value.String(), trace
		}
		n, _ := obj.lookupValue(StringKey("name"))
		m, _ := obj.lookupValue(StringKey("message"))
		if s, ok := obj.getOwnValue(StringKey("stack")); ok && s.Kind() == KindString {
			trace = s.Str()
		}
		name = n.String()
		if n.IsUndefined() {
			name = "Error"
		}
		if !m.IsUndefined() {
			message = m.String()
		}
		return name, message, trace
	case errors.As(err, &scriptErr):
		return scriptErr.Name, scriptErr.Message, ""
	default:
		return "Error", err.Error(), ""
	}
}
