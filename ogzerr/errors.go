// Package ogzerr defines the error kinds shared by the chop, comment and
// sort engines, grounded on the teacher's one-struct-per-kind idiom
// (webrtc.InvalidStateError, webrtc.UnknownError, ...): a kind wraps a
// cause and renders a kind-prefixed one-line message, matching spec.md
// §7's "single-line diagnostics prefixed by program name" requirement one
// layer up in the CLI.
package ogzerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// IoError wraps a failure opening, reading or writing a container.
type IoError struct{ Err error }

func (e *IoError) Error() string { return fmt.Sprintf("io error: %v", e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// NewIoError wraps err, attaching a call-site stack via pkg/errors
// (printed by %+v); Error() still renders only the one-line message.
func NewIoError(err error) *IoError { return &IoError{Err: errors.WithStack(err)} }

// FramingError wraps a negative-code return from the low-level page
// framer/deframer (spec.md §7: "FramingError (framer returned a negative
// code)").
type FramingError struct{ Err error }

func (e *FramingError) Error() string { return fmt.Sprintf("framing error: %v", e.Err) }
func (e *FramingError) Unwrap() error { return e.Err }

// NewFramingError wraps err with a call-site stack.
func NewFramingError(err error) *FramingError { return &FramingError{Err: errors.WithStack(err)} }

// UsageError indicates inconsistent or missing CLI arguments.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return fmt.Sprintf("usage error: %v", e.Err) }
func (e *UsageError) Unwrap() error { return e.Err }

// NewUsageError wraps err with a call-site stack.
func NewUsageError(err error) *UsageError { return &UsageError{Err: errors.WithStack(err)} }

// Cause returns pkg/errors' Cause of err, following Cause() methods only.
// The ogzerr kinds do not implement Cause(), so an ogzerr kind is
// returned unchanged rather than unwrapped.
func Cause(err error) error { return errors.Cause(err) }
