// Package dbgerr implements the single error kind used throughout the
// debugger engine: a message with an optional OS errno, so that callers
// can distinguish a kernel call failure from a protocol/usage mistake
// without a sprawl of ad-hoc error types.
//
// Grounded on the way github.com/go-delve/delve's pkg/proc reports
// breakpoint/no-breakpoint failures as small named error types, adapted
// here into one type carrying an optional errno instead of many types.
package dbgerr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error is the uniform failure type returned by every engine operation.
type Error struct {
	Msg   string
	Errno unix.Errno // zero value means "no OS errno attached"
	Cause error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s: %s", e.Msg, e.Errno.Error())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause.Error())
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

// OS wraps the failure of an OS call (ptrace, waitpid, fork, exec, pipe,
// process_vm_readv), preserving its errno when one is available.
func OS(msg string, err error) *Error {
	e := &Error{Msg: msg, Cause: err}
	var errno unix.Errno
	if errors.As(err, &errno) {
		e.Errno = errno
	}
	return e
}

// Usage reports a protocol/usage failure: unknown register, bad
// stop-point id, duplicate breakpoint address, hardware-slot
// exhaustion, invalid watchpoint size/mode, value width mismatch.
func Usage(msg string) *Error {
	return &Error{Msg: msg}
}

// Usagef is Usage with formatting.
func Usagef(format string, args ...interface{}) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Errno extracts the OS errno carried by err, if any.
func Errno(err error) (unix.Errno, bool) {
	var e *Error
	if errors.As(err, &e) && e.Errno != 0 {
		return e.Errno, true
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
