package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/wfctl/internal/fault"
)

const (
	apiVersion = "argoproj.io/v1alpha1"
	kindName   = "WorkflowTemplate"
)

type document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
	Spec       spec     `yaml:"spec"`
}

type metadata struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace,omitempty"`
}

type spec struct {
	ServiceAccountName string          `yaml:"serviceAccountName,omitempty"`
	Entrypoint         string          `yaml:"entrypoint"`
	Arguments          arguments       `yaml:"arguments"`
	Templates          []templateEntry `yaml:"templates"`
}

type arguments struct {
	Parameters []parameter `yaml:"parameters"`
}

type parameter struct {
	Name  string  `yaml:"name"`
	Value *string `yaml:"value,omitempty"`
}

type templateEntry struct {
	Name          string         `yaml:"name"`
	Steps         [][]stepRef    `yaml:"steps,omitempty"`
	Script        *scriptSpec    `yaml:"script,omitempty"`
	RetryStrategy *retryStrategy `yaml:"retryStrategy,omitempty"`
}

type stepRef struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
	When     string `yaml:"when,omitempty"`
}

type scriptSpec struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
	Source  string   `yaml:"source"`
}

type retryStrategy struct {
	Limit       string       `yaml:"limit"`
	RetryPolicy string       `yaml:"retryPolicy,omitempty"`
	Backoff     *backoffSpec `yaml:"backoff,omitempty"`
}

type backoffSpec struct {
	Duration    string `yaml:"duration"`
	Factor      int    `yaml:"factor"`
	MaxDuration string `yaml:"maxDuration"`
}

// Encode renders t as a WorkflowTemplate YAML document.
func Encode(t *Template) ([]byte, error) {
	doc := document{
		APIVersion: apiVersion,
		Kind:       kindName,
		Metadata:   metadata{Name: t.Name, Namespace: t.Namespace},
		Spec: spec{
			ServiceAccountName: t.ServiceAccount,
			Entrypoint:         t.Entrypoint,
		},
	}
	for _, p := range t.Parameters {
		doc.Spec.Arguments.Parameters = append(doc.Spec.Arguments.Parameters, parameter{Name: p.Name, Value: p.Default})
	}

	chain := templateEntry{Name: t.Entrypoint}
	entries := make([]templateEntry, 0, len(t.Steps)+1)
	for _, s := range t.Steps {
		chain.Steps = append(chain.Steps, []stepRef{{Name: s.Name, Template: s.Name, When: s.When}})
		entries = append(entries, templateEntry{
			Name:          s.Name,
			Script:        &scriptSpec{Image: s.Image, Command: s.Command, Source: s.Source},
			RetryStrategy: encodeRetry(s.Retry),
		})
	}
	doc.Spec.Templates = append([]templateEntry{chain}, entries...)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode template %q: %w", t.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode template %q: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

func encodeRetry(r RetryPolicy) *retryStrategy {
	rs := &retryStrategy{Limit: strconv.Itoa(r.Limit)}
	if r.OnError {
		rs.RetryPolicy = "OnError"
	}
	if b := r.Backoff; b != nil {
		rs.Backoff = &backoffSpec{
			Duration:    formatDuration(b.Duration),
			Factor:      b.Factor,
			MaxDuration: formatDuration(b.MaxDuration),
		}
	}
	return rs
}

// formatDuration prints 1m instead of 1m0s.
func formatDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// Header identifies a template document.
type Header struct {
	Kind      string
	Name      string
	Namespace string
}

// Validate checks that doc is a single well-formed YAML document describing
// a named WorkflowTemplate. It does not check Argo semantics.
func Validate(doc []byte) error {
	_, err := ParseHeader(doc)
	return err
}

// ParseHeader validates doc and returns its identifying fields.
func ParseHeader(doc []byte) (Header, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return Header{}, syntaxError(nil, "template document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Header{}, syntaxError(err, "template document is not valid YAML")
	}
	var extra map[string]any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return Header{}, syntaxError(err, "template document is not valid YAML")
		}
		return Header{}, syntaxError(nil, "template document must contain exactly one YAML document")
	}

	h := Header{}
	h.Kind, _ = raw["kind"].(string)
	if meta, ok := raw["metadata"].(map[string]any); ok {
		h.Name, _ = meta["name"].(string)
		h.Namespace, _ = meta["namespace"].(string)
	}

	var violations []string
	if h.Kind != kindName {
		violations = append(violations, fmt.Sprintf("kind must be %s, got %q", kindName, h.Kind))
	}
	if h.Name == "" {
		violations = append(violations, "metadata.name is required")
	}
	if _, ok := raw["spec"].(map[string]any); !ok {
		violations = append(violations, "spec must be a mapping")
	}
	if len(violations) > 0 {
		e := fault.Invalid(violations...)
		e.Kind = fault.Syntax
		e.Hints = fault.DefaultHints(fault.Syntax)
		return Header{}, e
	}
	return h, nil
}

func syntaxError(err error, msg string) *fault.Error {
	e := fault.New(fault.Syntax, "%s", msg)
	e.Err = err
	if err != nil {
		e.Violations = []string{err.Error()}
	} else {
		e.Violations = []string{msg}
	}
	return e
}
