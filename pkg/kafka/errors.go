package kafka

import (
	"errors"
	"fmt"
)

// ErrorKind classifies handler failures.
type ErrorKind int

const (
	// KindOther is a business-level failure: the input message is committed
	// and the loop continues.
	KindOther ErrorKind = iota
	// KindInternal is a service-level invariant violation: the process
	// terminates without committing, forcing redelivery after restart.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	default:
		return "other"
	}
}

// HandlerError carries a failure classification out of a handler. A plain
// error returned from a handler is treated as KindOther.
type HandlerError struct {
	Kind ErrorKind
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed (%s): %v", e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Internal wraps err as a service-level failure.
func Internal(err error) error {
	return &HandlerError{Kind: KindInternal, Err: err}
}

// Internalf wraps a formatted message as a service-level failure.
func Internalf(format string, args ...any) error {
	return &HandlerError{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}

// Other wraps err as a business-level failure.
func Other(err error) error {
	return &HandlerError{Kind: KindOther, Err: err}
}

// Otherf wraps a formatted message as a business-level failure.
func Otherf(format string, args ...any) error {
	return &HandlerError{Kind: KindOther, Err: fmt.Errorf(format, args...)}
}

// Classify returns the handler error kind of err. Anything that is not a
// HandlerError counts as KindOther.
func Classify(err error) ErrorKind {
	var herr *HandlerError
	if errors.As(err, &herr) {
		return herr.Kind
	}
	return KindOther
}
