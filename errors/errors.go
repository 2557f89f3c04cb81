package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and surfacing decisions. The executor
// retries Transient and Timeout errors by letting the queue lease expire;
// everything else goes to the dead-letter stream.
type Kind string

const (
	KindInputValidation     Kind = "input_validation"
	KindNotFound            Kind = "not_found"
	KindTransient           Kind = "transient"
	KindTimeout             Kind = "timeout"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindIntegrityViolation  Kind = "integrity_violation"
	KindInternal            Kind = "internal"
)

// Error is the uniform error surface: a stable code plus a message. Internal
// detail lives in the wrapped cause and is redacted outside development mode.
type Error struct {
	Code  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Public returns the client-visible representation.
func (e *Error) Public() (code string, message string) {
	return string(e.Code), e.Msg
}

func New(kind Kind, msg string, cause error) error {
	err := &Error{Code: kind, Msg: msg, cause: cause}
	switch kind {
	case KindTransient, KindTimeout:
		return err
	default:
		return Unretriable(err)
	}
}

func InputValidation(msg string, cause error) error {
	return New(KindInputValidation, msg, cause)
}

func NotFound(msg string, cause error) error {
	return New(KindNotFound, msg, cause)
}

func Transient(msg string, cause error) error {
	return New(KindTransient, msg, cause)
}

func Timeout(msg string, cause error) error {
	return New(KindTimeout, msg, cause)
}

func InsufficientCredits(msg string) error {
	return New(KindInsufficientCredits, msg, nil)
}

func IntegrityViolation(msg string, cause error) error {
	return New(KindIntegrityViolation, msg, cause)
}

// KindOf extracts the Kind from anywhere in the chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return KindInternal
}

// Special wrapper for errors that should never be re-leased to another
// worker; the executor sends these straight to the DLQ.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

// Returns whether the given error is an unretriable error.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// IsNotFound checks for the not-found kind anywhere in the chain.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

var (
	// ErrDuplicateJob is returned by the queue when the idempotency key
	// already has a live dedup marker.
	ErrDuplicateJob = errors.New("DuplicateJobError")
	// ErrNoMessages is returned by a blocking consume that timed out empty.
	ErrNoMessages = errors.New("NoMessagesError")
)
