// Package lifecycle deletes workflow instances.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/workflow"
)

// Runner executes kubectl and returns stdout.
type Runner interface {
	RunAndCapture(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// Propagation is the deletion policy for an instance's pods.
type Propagation string

const (
	// Cascade deletes pods together with the instance.
	Cascade Propagation = "background"
	// Orphan keeps pods, and with them their logs, after the instance is gone.
	Orphan Propagation = "orphan"
)

// PropagationFor maps the retain flag to a propagation mode.
func PropagationFor(retainChildren bool) Propagation {
	if retainChildren {
		return Orphan
	}
	return Cascade
}

// Manager deletes instances in one namespace.
type Manager struct {
	runner    Runner
	lister    workflow.Lister
	namespace string
	logger    *slog.Logger
	// Timeout bounds each delete call; zero disables the bound.
	Timeout time.Duration
}

// NewManager creates a Manager. lister resolves label and all selectors.
func NewManager(runner Runner, lister workflow.Lister, namespace string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{runner: runner, lister: lister, namespace: namespace, logger: logger}
}

// DeleteOne deletes the named instance. With retainChildren its pods are orphaned.
func (m *Manager) DeleteOne(ctx context.Context, name string, retainChildren bool) error {
	if name == "" {
		return fault.Invalid("workflow name is required")
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	mode := PropagationFor(retainChildren)
	_, err := m.runner.RunAndCapture(ctx, nil, "delete", "workflow", name, "-n", m.namespace, "--cascade="+string(mode))
	if err != nil {
		e := fault.Classify(err, "delete workflow "+name)
		if e.Kind == fault.ResourceNotFound {
			return fault.Wrap(fault.ResourceNotFound, err, "workflow %q not found in namespace %q", name, m.namespace).
				WithHints("List all workflows: wfctl list -n " + m.namespace)
		}
		return e
	}
	m.logger.Debug("Workflow deleted", "name", name, "propagation", string(mode))
	return nil
}

// Selector picks the instances for DeleteMany. Exactly one field must be set.
type Selector struct {
	Name   string
	Labels map[string]string
	All    bool
}

// Validate checks that exactly one selector form is used.
func (s Selector) Validate() error {
	set := 0
	if s.Name != "" {
		set++
	}
	if len(s.Labels) > 0 {
		set++
	}
	if s.All {
		set++
	}
	if set != 1 {
		return fault.Invalid("exactly one of a workflow name, a label selector or all must be given")
	}
	return nil
}

// Failure records one instance that could not be deleted.
type Failure struct {
	Name string
	Err  error
}

// Result counts the outcome of DeleteMany.
type Result struct {
	Deleted  int
	Failed   int
	Failures []Failure
}

// DeleteMany resolves sel and deletes each match in turn. A failed delete is
// counted and the batch continues. The returned error is non-nil only when
// the selector is invalid, resolution fails, or ctx ends mid-batch; the
// counts are valid in every case.
func (m *Manager) DeleteMany(ctx context.Context, sel Selector, retainChildren bool) (Result, error) {
	var res Result
	if err := sel.Validate(); err != nil {
		return res, err
	}
	names, err := m.resolve(ctx, sel)
	if err != nil {
		return res, err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, fault.Classify(err, "delete workflows")
		}
		if err := m.DeleteOne(ctx, name, retainChildren); err != nil {
			m.logger.Warn("Failed to delete workflow", "name", name, "error", err)
			res.Failed++
			res.Failures = append(res.Failures, Failure{Name: name, Err: err})
			continue
		}
		res.Deleted++
	}
	return res, nil
}

func (m *Manager) resolve(ctx context.Context, sel Selector) ([]string, error) {
	if sel.Name != "" {
		return []string{sel.Name}, nil
	}
	if m.lister == nil {
		return nil, fault.New(fault.Unsupported, "no lister configured for selector deletion")
	}
	labels := sel.Labels
	if sel.All {
		labels = nil
	}
	instances, err := m.lister.List(ctx, labels)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.Name != "" {
			names = append(names, inst.Name)
		}
	}
	return names, nil
}
