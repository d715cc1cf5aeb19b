package agent

import "fmt"

// ErrorKind classifies remote invocation failures. ConnectionRefused is kept
// distinct from generic transport errors because it almost always means the
// agent service URL is misconfigured.
type ErrorKind string

const (
	KindConnectionRefused ErrorKind = "connection_refused"
	KindRemoteError       ErrorKind = "remote_error"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindUnknown           ErrorKind = "unknown"
)

// Error is the typed failure returned by Client.Execute.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt could plausibly succeed. A
// request the agent rejected as malformed will fail the same way every time,
// so backing off on it only burns the retry budget.
func (e *Error) Retryable() bool {
	return e.Kind != KindInvalidRequest
}
