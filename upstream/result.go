package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of one upstream call.
type Kind int

const (
	// Success means the envelope carried no errors.
	Success Kind = iota
	// SoftFailure means the upstream answered with a populated errors array.
	SoftFailure
	// TransportFailure means no usable envelope was received.
	TransportFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case SoftFailure:
		return "soft_failure"
	case TransportFailure:
		return "transport_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnknownUpstream = errors.New("unknown upstream")
	ErrBadStatus       = errors.New("unexpected upstream status")
	ErrMalformedBody   = errors.New("malformed upstream response")
)

// Result is the outcome of Client.Execute.
type Result struct {
	Kind      Kind
	Upstream  string
	Operation string

	// Data is the envelope's data object. It is only set on Success.
	Data map[string]interface{}
	// Errors is the envelope's errors array. It is only set on SoftFailure.
	Errors []GraphQLError
	// Cause is the transport error. It is only set on TransportFailure.
	Cause error
}

func (r Result) OK() bool {
	return r.Kind == Success
}

// Reason is a one-line description of a failure: the first upstream error
// message or the transport error.
func (r Result) Reason() string {
	switch r.Kind {
	case SoftFailure:
		if len(r.Errors) > 0 {
			return r.Errors[0].Message
		}
		return "upstream returned errors"
	case TransportFailure:
		if r.Cause != nil {
			return r.Cause.Error()
		}
		return "upstream unreachable"
	default:
		return ""
	}
}

// Err converts a failed result into an *Error. It returns nil on Success.
func (r Result) Err() error {
	if r.Kind == Success {
		return nil
	}

	return &Error{
		Kind:      r.Kind,
		Upstream:  r.Upstream,
		Operation: r.Operation,
		Message:   r.Reason(),
		cause:     r.Cause,
	}
}

// Error is a failed upstream call. It implements graphql-go's extended error
// so the classification reaches the client under "extensions".
type Error struct {
	Kind      Kind
	Upstream  string
	Operation string
	Message   string
	cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s: %s: %s", e.Upstream, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Code is the error code reported to clients.
func (e *Error) Code() string {
	if e.Kind == TransportFailure {
		return "TRANSPORT_FAILURE"
	}
	return "UPSTREAM_ERROR"
}

func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      e.Code(),
		"upstream":  e.Upstream,
		"operation": e.Operation,
	}
}

func success(upstream, operation string, data map[string]interface{}) Result {
	return Result{Kind: Success, Upstream: upstream, Operation: operation, Data: data}
}

func softFailure(upstream, operation string, errs []GraphQLError) Result {
	return Result{Kind: SoftFailure, Upstream: upstream, Operation: operation, Errors: errs}
}

func transportFailure(upstream, operation string, cause error) Result {
	return Result{Kind: TransportFailure, Upstream: upstream, Operation: operation, Cause: cause}
}
