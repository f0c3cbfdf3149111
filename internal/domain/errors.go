package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds returned across component boundaries. Raw transport errors are always
// wrapped into one of these before leaving a backend adapter.
var (
	// ErrEmptyInput means there is nothing to chunk or embed. It is a no-op signal.
	ErrEmptyInput = errors.New("empty input")
	// ErrIndexNotFound means the subject has no indexed chunks yet.
	ErrIndexNotFound = errors.New("subject index not found")
	// ErrIndexUnavailable means the vector storage or embedding backend is unreachable.
	ErrIndexUnavailable = errors.New("subject index unavailable")
	// ErrGenerationTimeout means a generation call exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationProvider means the generation backend failed or returned a non-success response.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrJSONParse means generated output was not a usable JSON question list.
	ErrJSONParse = errors.New("json parse failure")
	// ErrValidation means no valid question survived normalization.
	ErrValidation = errors.New("validation failure")
)

// OperationError carries the failing operation and its cause under a typed kind.
type OperationError struct {
	Kind    error
	Op      string
	Message string
	Cause   error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "operation failed"
	}
	kind := "operation failed"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s (op=%s): %s: %v", kind, e.Op, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s (op=%s): %s", kind, e.Op, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s (op=%s): %v", kind, e.Op, e.Cause)
	default:
		return fmt.Sprintf("%s (op=%s)", kind, e.Op)
	}
}

// Is matches the error kind so callers can use errors.Is(err, ErrIndexUnavailable).
func (e *OperationError) Is(target error) bool {
	return e != nil && e.Kind != nil && target == e.Kind
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// OpError builds an *OperationError.
func OpError(kind error, op, msg string, cause error) error {
	return &OperationError{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// ClassifyGeneration maps a transport-level failure to ErrGenerationTimeout or
// ErrGenerationProvider. Errors that already carry a kind are returned unchanged.
func ClassifyGeneration(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrGenerationTimeout) || errors.Is(err, ErrGenerationProvider) {
		return err
	}
	if IsTimeout(err) {
		return OpError(ErrGenerationTimeout, op, "", err)
	}
	return OpError(ErrGenerationProvider, op, "", err)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retryable reports whether a quiz generation attempt that failed with err may be retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrGenerationProvider),
		errors.Is(err, ErrGenerationTimeout),
		errors.Is(err, ErrJSONParse),
		errors.Is(err, ErrValidation):
		return true
	default:
		return false
	}
}
