package lua

import (
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

var (
	// ErrWrongState is raised when a client is used from a Lua state other than its own.
	ErrWrongState = errors.New("Lua state changed. Multi-threading not supported!")
	// ErrClosed is raised when a closed client is used.
	ErrClosed = errors.New("APClient is closed")
	// ErrNestedPoll is raised when a handler polls the client that is running it.
	ErrNestedPoll = errors.New("APClient poll called from inside a handler")
)

// errorSeparator joins the handler errors of one poll.
const errorSeparator = "\n---\n"

// ErrorFormatter renders a handler failure for the error sink.
type ErrorFormatter func(err error) string

// Traceback renders the Lua error followed by its stack trace.
func Traceback(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		msg := apiErr.Object.String()
		if apiErr.StackTrace != "" {
			msg += "\n" + apiErr.StackTrace
		}
		return msg
	}
	return err.Error()
}

// MessageOnly renders only the Lua error value.
func MessageOnly(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Object.String()
	}
	return err.Error()
}

// ErrorSink collects errors that must not unwind through the protocol client.
type ErrorSink struct {
	msgs []string
}

// Push records one message.
func (s *ErrorSink) Push(msg string) {
	s.msgs = append(s.msgs, msg)
}

// Len returns the number of pending messages.
func (s *ErrorSink) Len() int {
	return len(s.msgs)
}

// Reset drops pending messages.
func (s *ErrorSink) Reset() {
	s.msgs = s.msgs[:0]
}

// Drain returns all pending messages as one error and empties the sink.
// It returns nil when nothing is pending.
func (s *ErrorSink) Drain() error {
	if len(s.msgs) == 0 {
		return nil
	}
	err := errors.New(strings.Join(s.msgs, errorSeparator))
	s.Reset()
	return err
}
