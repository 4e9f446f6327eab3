// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that carry a stack trace.
//
// Use this package rather than the standard errors.New or fmt.Errorf so that
// failures logged by the run loop point at the place they were created.
//
//	errors.New("no log files found")
//	errors.Errorf("runner exited with status %d", code)
//
// To add context to an existing error, use Wrap or Wrapf.
//
//	errors.Wrap(err, "failed to stage log")
//	errors.Wrapf(err, "failed to read %s", path)
//
// Formatting an error with "%+v" prints the whole chain, one stack trace per
// link. Is and As see through chains built by this package, so sentinel
// errors declared by other packages can be matched after wrapping.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// impl is the error implementation used by this package.
type impl struct {
	msg   string // message prepended to cause
	stk   stack  // where this error was created
	cause error  // wrapped error; nil for a root error
}

// Error implements the error interface.
func (e *impl) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap returns the wrapped error, or nil.
func (e *impl) Unwrap() error {
	return e.cause
}

// formatChain formats an error chain with stack traces.
func formatChain(err error) string {
	var chain []string
	for err != nil {
		e, ok := err.(*impl)
		if !ok {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			break
		}
		chain = append(chain, fmt.Sprintf("%s\n%v", e.msg, e.stk))
		err = e.cause
	}
	return strings.Join(chain, "\n")
}

// Format implements fmt.Formatter. "%+v" prints the chain with stack traces.
func (e *impl) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
		return
	}
	io.WriteString(s, e.Error())
}

// New creates a new error with the given message, recording the caller.
func New(msg string) error {
	return &impl{msg, newStack(1), nil}
}

// Errorf is similar to New but formats its arguments using fmt.Sprintf.
func Errorf(format string, args ...interface{}) error {
	return &impl{fmt.Sprintf(format, args...), newStack(1), nil}
}

// Wrap creates a new error with the given message, wrapping cause.
// If cause is nil, this is the same as New.
func Wrap(cause error, msg string) error {
	return &impl{msg, newStack(1), cause}
}

// Wrapf is similar to Wrap but formats its arguments using fmt.Sprintf.
func Wrapf(cause error, format string, args ...interface{}) error {
	return &impl{fmt.Sprintf(format, args...), newStack(1), cause}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
