// Package fault defines the error value shared by all wfctl components.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags a failure with a coarse category.
type Kind int

const (
	// Unknown is a failure with no better category.
	Unknown Kind = iota
	// ClusterAccess means the cluster could not be reached or kubectl is missing.
	ClusterAccess
	// ResourceNotFound means the named object does not exist.
	ResourceNotFound
	// InvalidSpec means the cluster rejected a manifest as malformed.
	InvalidSpec
	// Conflict means the object already exists or was modified concurrently.
	Conflict
	// PermissionDenied means the credentials lack the required verb.
	PermissionDenied
	// Timeout means an operation exceeded its deadline.
	Timeout
	// SubmissionFailed means a workflow could not be created.
	SubmissionFailed
	// Validation means caller input failed local checks.
	Validation
	// Syntax means a document could not be parsed.
	Syntax
	// Unsupported means the operation is not available for this resource.
	Unsupported
)

var kindNames = map[Kind]string{
	Unknown:          "unknown",
	ClusterAccess:    "cluster-access",
	ResourceNotFound: "not-found",
	InvalidSpec:      "invalid-spec",
	Conflict:         "conflict",
	PermissionDenied: "permission-denied",
	Timeout:          "timeout",
	SubmissionFailed: "submission-failed",
	Validation:       "validation",
	Syntax:           "syntax",
	Unsupported:      "unsupported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure with a kind, a message and optional remediation hints.
type Error struct {
	Kind    Kind
	Message string
	// Hints are free-text remediation steps shown to the user in order.
	Hints []string
	// Violations lists every local validation problem found.
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithHints appends hints and returns e.
func (e *Error) WithHints(hints ...string) *Error {
	e.Hints = append(e.Hints, hints...)
	return e
}

// New returns an Error of the given kind with the kind's default hints.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Hints:   DefaultHints(kind),
	}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.Err = err
	return e
}

// Invalid returns a Validation error listing every violation.
func Invalid(violations ...string) *Error {
	return &Error{
		Kind:       Validation,
		Message:    strings.Join(violations, ". "),
		Hints:      DefaultHints(Validation),
		Violations: violations,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// HintsOf returns the hints of the first *Error in err's chain.
func HintsOf(err error) []string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hints
	}
	return nil
}

// DefaultHints returns the built-in remediation steps for kind.
func DefaultHints(kind Kind) []string {
	hints := defaultHints[kind]
	if len(hints) == 0 {
		return nil
	}
	return append([]string(nil), hints...)
}

var defaultHints = map[Kind][]string{
	ClusterAccess: {
		"Verify kubectl is configured: kubectl cluster-info",
		"Check kubeconfig file: kubectl config view",
		"Ensure you have valid credentials: kubectl auth whoami",
	},
	ResourceNotFound: {
		"List workflows: wfctl list",
		"List templates: wfctl templates list",
		"Create templates if missing: wfctl templates create",
	},
	InvalidSpec: {
		"Verify Argo Workflows is installed: kubectl get crd workflowtemplates.argoproj.io",
		"Verify workflow template parameters are correct",
	},
	Conflict: {
		"Check whether the resource already exists: kubectl get workflows -n argo",
	},
	PermissionDenied: {
		"Verify RBAC permissions: kubectl auth can-i create workflows.argoproj.io",
		"Check cluster permissions: kubectl auth can-i create workflowtemplates.argoproj.io -n argo",
	},
	Timeout: {
		"Check API server status: kubectl get --raw /healthz",
		"Increase the request timeout: --timeout",
	},
	SubmissionFailed: {
		"Verify Argo Workflows is running: kubectl get pods -n argo",
		"Check Argo Workflows controller logs: kubectl logs -n argo -l app=workflow-controller",
	},
	Validation: {
		"Review the command help: wfctl <command> --help",
		"Ensure all required parameters are provided",
	},
	Syntax: {
		"Validate YAML syntax of the template document",
	},
}
