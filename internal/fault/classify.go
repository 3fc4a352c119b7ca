package fault

import (
	"context"
	"errors"
	"strings"
)

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// diagnostic is implemented by transport errors that carry raw remote output.
type diagnostic interface {
	Diagnostic() string
}

// Classify maps a remote-call error to an *Error.
//
// This is a heuristic. Status codes are derived from kubectl output and the
// text fallback matches diagnostic wording, neither of which is a stable
// contract. Callers must not depend on the resulting kind for correctness.
// A nil err yields nil; an existing *Error is returned unchanged.
func Classify(err error, op string) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, err, "%s timed out", op)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(Unknown, err, "%s cancelled", op)
	}

	kind := classifyStatus(err)
	if kind == Unknown {
		kind = classifyText(err)
	}
	e := Wrap(kind, err, "%s failed", op)
	if kind == Unknown && statusOf(err) >= 500 {
		e.WithHints("The API server reported an internal error; retry later",
			"Review API server logs if you have access")
	}
	return e
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func classifyStatus(err error) Kind {
	switch code := statusOf(err); {
	case code == 401:
		return ClusterAccess
	case code == 403:
		return PermissionDenied
	case code == 404:
		return ResourceNotFound
	case code == 409:
		return Conflict
	case code == 400 || code == 422:
		return InvalidSpec
	case code == 504:
		return Timeout
	}
	return Unknown
}

func classifyText(err error) Kind {
	text := err.Error()
	var d diagnostic
	if errors.As(err, &d) && d.Diagnostic() != "" {
		text = d.Diagnostic()
	}
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "kubectl binary not found"),
		strings.Contains(text, "connection refused"),
		strings.Contains(text, "unable to connect to the server"),
		strings.Contains(text, "no configuration has been provided"):
		return ClusterAccess
	case strings.Contains(text, "forbidden"):
		return PermissionDenied
	case strings.Contains(text, "not found"):
		return ResourceNotFound
	case strings.Contains(text, "already exists"):
		return Conflict
	case strings.Contains(text, "invalid"):
		return InvalidSpec
	case strings.Contains(text, "i/o timeout"), strings.Contains(text, "deadline exceeded"):
		return Timeout
	}
	return Unknown
}

// Retryable reports whether a failed idempotent read may succeed when repeated.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err, "").Kind {
	case ResourceNotFound, PermissionDenied, InvalidSpec, ClusterAccess, Validation, Syntax, Unsupported:
		return false
	}
	return true
}
