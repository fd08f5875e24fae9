package generate

import "fmt"

// Kind classifies a generation failure into one of the stable,
// caller-facing statuses. Optional-source failures never appear here; they
// are downgraded to absent context before reaching the caller.
type Kind string

const (
	KindNotFound            Kind = "not_found"             // issue key does not exist
	KindAuthFailure         Kind = "auth_failure"          // credential rejected
	KindForbidden           Kind = "forbidden"             // credential valid, insufficient scope
	KindUnreachable         Kind = "unreachable"           // required source network/timeout failure
	KindNonTestableType     Kind = "non_testable_type"     // issue type outside the allow-list
	KindProviderUnavailable Kind = "provider_unavailable"  // LLM backend call failed
	KindSchemaValidation    Kind = "schema_validation"     // LLM output does not satisfy the plan shape
	KindCancelled           Kind = "cancelled"             // caller aborted the in-flight generation
)

// Error is a typed generation failure: a stable kind plus a short
// human-readable message. Internal error detail is wrapped, never exposed
// in Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}
