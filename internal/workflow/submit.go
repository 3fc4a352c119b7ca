package workflow

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/kube"
	"github.com/codex-k8s/wfctl/internal/params"
)

// Labels attached to every submitted instance.
const (
	LabelTemplate     = "wfctl.codex-k8s.io/template"
	LabelSubmissionID = "wfctl.codex-k8s.io/submission-id"
)

// Runner executes kubectl and returns stdout.
type Runner interface {
	RunAndCapture(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// Submitter instantiates WorkflowTemplates.
type Submitter struct {
	runner    Runner
	namespace string
	logger    *slog.Logger
	// Timeout bounds the create call; zero disables the bound.
	Timeout time.Duration
	// NewID generates submission ids; defaults to uuid.NewString.
	NewID func() string
}

// NewSubmitter creates a Submitter for namespace.
func NewSubmitter(runner Runner, namespace string, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Submitter{runner: runner, namespace: namespace, logger: logger, NewID: uuid.NewString}
}

// Submission identifies a created instance.
type Submission struct {
	Name         string
	Namespace    string
	Template     string
	SubmissionID string
}

type workflowRequest struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Metadata   requestMetadata `yaml:"metadata"`
	Spec       requestSpec     `yaml:"spec"`
}

type requestMetadata struct {
	GenerateName string            `yaml:"generateName"`
	Namespace    string            `yaml:"namespace"`
	Labels       map[string]string `yaml:"labels,omitempty"`
}

type requestSpec struct {
	WorkflowTemplateRef templateRef      `yaml:"workflowTemplateRef"`
	Arguments           requestArguments `yaml:"arguments"`
}

type templateRef struct {
	Name string `yaml:"name"`
}

type requestArguments struct {
	Parameters []requestParameter `yaml:"parameters"`
}

type requestParameter struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Submit creates a Workflow referencing templateName. The call is not
// retried: a lost response could otherwise create a second instance.
func (s *Submitter) Submit(ctx context.Context, templateName string, p *params.Set) (Submission, error) {
	if templateName == "" {
		return Submission{}, fault.Invalid("template name is required")
	}
	id := s.NewID()
	body, err := s.request(templateName, id, p)
	if err != nil {
		return Submission{}, fault.Wrap(fault.SubmissionFailed, err, "build submission for %s", templateName)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.runner.RunAndCapture(ctx, body, "create", "-f", "-", "-n", s.namespace, "-o", "json")
	if err != nil {
		return Submission{}, submitFailure(err, templateName, s.namespace)
	}

	obj, err := kube.DecodeObject(out)
	if err != nil {
		return Submission{}, fault.Wrap(fault.SubmissionFailed, err, "read submission response for %s", templateName)
	}
	name := obj.String("metadata", "name")
	if name == "" {
		return Submission{}, fault.New(fault.SubmissionFailed, "submission response for %s has no metadata.name", templateName)
	}
	s.logger.Debug("Workflow submitted", "name", name, "template", templateName, "submissionId", id, "elapsed", time.Since(start))
	return Submission{Name: name, Namespace: s.namespace, Template: templateName, SubmissionID: id}, nil
}

func (s *Submitter) request(templateName, id string, p *params.Set) ([]byte, error) {
	req := workflowRequest{
		APIVersion: "argoproj.io/v1alpha1",
		Kind:       "Workflow",
		Metadata: requestMetadata{
			GenerateName: templateName + "-",
			Namespace:    s.namespace,
			Labels: map[string]string{
				LabelTemplate:     templateName,
				LabelSubmissionID: id,
			},
		},
		Spec: requestSpec{WorkflowTemplateRef: templateRef{Name: templateName}},
	}
	req.Spec.Arguments.Parameters = []requestParameter{}
	for name, value := range p.All() {
		req.Spec.Arguments.Parameters = append(req.Spec.Arguments.Parameters, requestParameter{Name: name, Value: value})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// submitFailure narrows a classified error to the submission failure kinds.
func submitFailure(err error, templateName, namespace string) *fault.Error {
	classified := fault.Classify(err, "submit "+templateName)
	switch classified.Kind {
	case fault.ResourceNotFound:
		return fault.Wrap(fault.ResourceNotFound, err, "workflow template %q not found in namespace %q", templateName, namespace).
			WithHints(fmt.Sprintf("Verify template '%s' exists: kubectl get workflowtemplate %s -n %s", templateName, templateName, namespace))
	case fault.InvalidSpec, fault.Timeout:
		return classified
	}
	e := fault.Wrap(fault.SubmissionFailed, err, "submit %s", templateName)
	if classified.Kind != fault.Unknown {
		e.WithHints(fault.DefaultHints(classified.Kind)...)
	}
	return e
}
