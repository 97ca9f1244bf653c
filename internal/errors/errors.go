// Package errors classifies failures raised while talking to Koji and PNC.
//
// Every gateway error is an *Error carrying a Kind. Communication failures
// come from the transport (login, RPC, HTTP) and may be retried by the
// caller. Semantic failures are well formed answers that break an expectation,
// such as a conflicting Brew build or a tagging policy violation, and need an
// operator to act.
package errors

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure classes.
type Kind int

const (
	// KindCommunication marks transport level failures.
	KindCommunication Kind = iota + 1
	// KindSemantic marks failures that need operator action.
	KindSemantic
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommunication:
		return "communication"
	case KindSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Communication creates a communication failure.
func Communication(message string, cause error) *Error {
	return &Error{Kind: KindCommunication, Message: message, Err: cause}
}

// Communicationf creates a communication failure with a formatted message.
func Communicationf(cause error, format string, args ...any) *Error {
	return Communication(fmt.Sprintf(format, args...), cause)
}

// Semantic creates a semantic failure.
func Semantic(message string, cause error) *Error {
	return &Error{Kind: KindSemantic, Message: message, Err: cause}
}

// Semanticf creates a semantic failure with a formatted message.
func Semanticf(cause error, format string, args ...any) *Error {
	return Semantic(fmt.Sprintf(format, args...), cause)
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsCommunication reports whether err is a communication failure.
func IsCommunication(err error) bool {
	return KindOf(err) == KindCommunication
}

// IsSemantic reports whether err is a semantic failure.
func IsSemantic(err error) bool {
	return KindOf(err) == KindSemantic
}

// Retryable reports whether retrying the failed operation could succeed.
func Retryable(err error) bool {
	return IsCommunication(err)
}
