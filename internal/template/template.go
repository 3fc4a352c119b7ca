// Package template builds, validates and stores Argo WorkflowTemplates.
package template

import (
	"fmt"
	"regexp"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
)

// Template is a named, parameterized linear sequence of script steps.
type Template struct {
	Name           string
	Namespace      string
	ServiceAccount string
	// Entrypoint names the steps template that chains Steps in order.
	Entrypoint string
	Parameters []Parameter
	Steps      []Step
}

// Parameter is a declared template argument. A nil Default marks it mandatory.
type Parameter struct {
	Name    string
	Default *string
}

// Required returns a mandatory parameter.
func Required(name string) Parameter {
	return Parameter{Name: name}
}

// Optional returns a parameter with a default value.
func Optional(name, value string) Parameter {
	return Parameter{Name: name, Default: &value}
}

// Step is one script executed in its own pod.
type Step struct {
	Name    string
	Image   string
	Command []string
	Source  string
	Retry   RetryPolicy
	// When is an Argo expression gating the step; empty means always run.
	When string
}

// RetryPolicy is consumed by the remote executor.
type RetryPolicy struct {
	Limit int
	// OnError retries only on infrastructure errors, not on script failures.
	OnError bool
	Backoff *Backoff
}

// Backoff is a capped exponential delay between retries.
type Backoff struct {
	Duration    time.Duration
	Factor      int
	MaxDuration time.Duration
}

var paramRef = regexp.MustCompile(`\{\{\s*workflow\.parameters\.([A-Za-z0-9_-]+)\s*\}\}`)

// Check verifies structural invariants and reports every violation.
func (t *Template) Check() error {
	var violations []string
	add := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if t.Name == "" {
		add("template name is required")
	}
	if t.Namespace == "" {
		add("template namespace is required")
	}
	if t.Entrypoint == "" {
		add("entrypoint is required")
	}
	if len(t.Steps) == 0 {
		add("template %q has no steps", t.Name)
	}

	declared := make(map[string]struct{}, len(t.Parameters))
	for _, p := range t.Parameters {
		if p.Name == "" {
			add("parameter with empty name")
			continue
		}
		if _, dup := declared[p.Name]; dup {
			add("parameter %q declared twice", p.Name)
		}
		declared[p.Name] = struct{}{}
	}

	steps := make(map[string]struct{}, len(t.Steps))
	for i, s := range t.Steps {
		switch {
		case s.Name == "":
			add("step %d has no name", i)
		case s.Name == t.Entrypoint:
			add("step %q collides with the entrypoint", s.Name)
		default:
			if _, dup := steps[s.Name]; dup {
				add("step %q declared twice", s.Name)
			}
			steps[s.Name] = struct{}{}
		}
		if s.Image == "" {
			add("step %q has no image", s.Name)
		}
		if s.Retry.Limit < 1 {
			add("step %q has no retry limit", s.Name)
		}
		if b := s.Retry.Backoff; b != nil && (b.Duration <= 0 || b.Factor < 1 || b.MaxDuration < b.Duration) {
			add("step %q has an invalid backoff", s.Name)
		}
		for _, ref := range References(s.Source + "\n" + s.When) {
			if _, ok := declared[ref]; !ok {
				add("step %q references undeclared parameter %q", s.Name, ref)
			}
		}
	}

	if len(violations) > 0 {
		return fault.Invalid(violations...)
	}
	return nil
}

// References returns the distinct workflow parameter names used in text, in order.
func References(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range paramRef.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
