package kube

import (
	"fmt"
	"regexp"
	"strings"
)

// StatusError describes a failed kubectl call.
// Code and Reason are recovered from stderr on a best-effort basis; kubectl
// does not print the HTTP status, so Code is derived from the reason token
// ("Error from server (NotFound): ...") and is 0 when none was found.
type StatusError struct {
	Args   []string
	Code   int
	Reason string
	Stderr string
	Err    error
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("kubectl %v failed: %s", e.Args, msg)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the derived HTTP status code, or 0 if unknown.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// Diagnostic returns the raw stderr text.
func (e *StatusError) Diagnostic() string {
	return e.Stderr
}

var serverReason = regexp.MustCompile(`Error from server \(([A-Za-z]+)\)`)

// reasonCodes maps metav1.StatusReason values to their HTTP codes.
var reasonCodes = map[string]int{
	"BadRequest":         400,
	"Unauthorized":       401,
	"Forbidden":          403,
	"NotFound":           404,
	"MethodNotAllowed":   405,
	"AlreadyExists":      409,
	"Conflict":           409,
	"Gone":               410,
	"Invalid":            422,
	"TooManyRequests":    429,
	"InternalError":      500,
	"ServiceUnavailable": 503,
	"Timeout":            504,
	"ServerTimeout":      504,
}

// ParseStatusError builds a StatusError from kubectl stderr.
func ParseStatusError(stderr string) *StatusError {
	se := &StatusError{Stderr: stderr}
	if m := serverReason.FindStringSubmatch(stderr); m != nil {
		se.Reason = m[1]
		se.Code = reasonCodes[m[1]]
		return se
	}
	// Client-side kubectl messages without a server reason.
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "you must be logged in"):
		se.Reason, se.Code = "Unauthorized", 401
	case strings.Contains(lower, "the server doesn't have a resource type"):
		se.Reason, se.Code = "NotFound", 404
	}
	return se
}
