// Package errors wraps pkg/errors and adds error codes matching the failure
// classes of the ingest pipeline.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded Code = "Uncoded"

	// ErrIO means a source location could not be reached or read. It is
	// fatal to the load that produced it.
	ErrIO Code = "IOError"

	// ErrSchema means a column is missing or has an unexpected physical
	// type. Callers degrade the affected value to absent.
	ErrSchema Code = "SchemaError"

	// ErrValidation covers join-plan cycles, duplicate schema columns and
	// identifier reassignment. It is fatal to the enclosing operation.
	ErrValidation Code = "ValidationError"

	// ErrLock means a cache or concurrency slot could not be acquired.
	ErrLock Code = "LockError"

	// ErrNotRegistered is returned for operations on an unknown source name.
	ErrNotRegistered Code = "NotRegistered"
)

func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is like New with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of the Is() method from `pkg/errors` which takes as its target
// an error Code instead of an error.
func Is(err error, target Code) bool {
	match := codedError{
		Code: target,
	}
	return errors.Is(err, match)
}

// CodeOf returns the code of the first coded error in err's chain, or
// ErrUncoded.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUncoded
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// WithCode attaches code to err while keeping err's message. A nil err
// stays nil.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(codedError{
		Code:    code,
		Message: err.Error(),
		cause:   err,
	})
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code
	Message string
	cause   error
}

func (ce codedError) Error() string {
	return ce.Message
}

func (ce codedError) Unwrap() error {
	return ce.cause
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}
