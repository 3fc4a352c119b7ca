package workflow

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/kube"
	"github.com/codex-k8s/wfctl/internal/params"
)

// DefaultPollInterval is used when PollOptions.Interval is zero.
const DefaultPollInterval = 2 * time.Second

// pollTick is how often the Cancelled predicate is checked while waiting.
const pollTick = 100 * time.Millisecond

// Lister lists instances matching a label selector.
type Lister interface {
	List(ctx context.Context, labels map[string]string) ([]*Instance, error)
}

// Tracker reads workflow state. All reads are idempotent and retried up to
// ReadAttempts times.
type Tracker struct {
	runner    Runner
	namespace string
	logger    *slog.Logger
	// Timeout bounds each remote call; zero disables the bound.
	Timeout      time.Duration
	ReadAttempts int
}

// NewTracker creates a Tracker for namespace.
func NewTracker(runner Runner, namespace string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{runner: runner, namespace: namespace, logger: logger, ReadAttempts: 1}
}

// Namespace returns the namespace the tracker reads from.
func (t *Tracker) Namespace() string {
	return t.namespace
}

// Fetch returns the current snapshot of the named instance.
func (t *Tracker) Fetch(ctx context.Context, name string) (*Instance, error) {
	out, err := t.read(ctx, "get", "workflow", name, "-n", t.namespace, "-o", "json")
	if err != nil {
		if fault.KindOf(err) == fault.ResourceNotFound {
			return nil, fault.Wrap(fault.ResourceNotFound, err, "workflow %q not found in namespace %q", name, t.namespace).
				WithHints("Check workflow name spelling")
		}
		return nil, err
	}
	obj, err := kube.DecodeObject(out)
	if err != nil {
		return nil, fault.Wrap(fault.Unknown, err, "decode workflow %q", name)
	}
	inst, degraded := Decode(obj)
	t.warnDegraded(inst.Name, degraded)
	return inst, nil
}

// List returns instances matching labels; nil labels match everything.
func (t *Tracker) List(ctx context.Context, labels map[string]string) ([]*Instance, error) {
	args := []string{"get", "workflows", "-n", t.namespace, "-o", "json"}
	if len(labels) > 0 {
		args = append(args, "-l", Selector(labels))
	}
	out, err := t.read(ctx, args...)
	if err != nil {
		return nil, err
	}
	list, err := kube.DecodeObject(out)
	if err != nil {
		return nil, fault.Wrap(fault.Unknown, err, "decode workflow list")
	}
	items := list.Items()
	instances := make([]*Instance, 0, len(items))
	for _, item := range items {
		inst, degraded := Decode(item)
		t.warnDegraded(inst.Name, degraded)
		instances = append(instances, inst)
	}
	return instances, nil
}

// PollOptions control Poll.
type PollOptions struct {
	// Interval between fetches; DefaultPollInterval when zero.
	Interval time.Duration
	// Cancelled stops the sequence when it returns true. It is also checked
	// while waiting between fetches.
	Cancelled func() bool
	// From is the snapshot the caller already holds. When set, the first
	// fetch happens after one interval, and a terminal From yields nothing.
	From *Instance
}

// Poll returns a sequence of snapshots fetched every interval. It ends after
// yielding a terminal snapshot, when Cancelled reports true, or when ctx is
// done. A failed fetch is yielded as an error and polling continues; the
// caller decides whether to stop. Cancellation is not an error.
func (t *Tracker) Poll(ctx context.Context, name string, opts PollOptions) iter.Seq2[*Instance, error] {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	cancelled := func() bool {
		return ctx.Err() != nil || (opts.Cancelled != nil && opts.Cancelled())
	}

	return func(yield func(*Instance, error) bool) {
		if opts.From != nil {
			if opts.From.Phase.IsTerminal() {
				return
			}
			if !wait(ctx, interval, cancelled) {
				return
			}
		}
		for {
			if cancelled() {
				return
			}
			inst, err := t.Fetch(ctx, name)
			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				if !yield(nil, err) {
					return
				}
			case !yield(inst, nil) || inst.Phase.IsTerminal():
				return
			}
			if cancelled() || !wait(ctx, interval, cancelled) {
				return
			}
		}
	}
}

// ForcePhase always fails: phase transitions are driven by the workflow
// controller and cannot be requested by a client.
func (t *Tracker) ForcePhase(_ context.Context, name string, phase Phase) error {
	return fault.New(fault.Unsupported, "cannot set phase of workflow %q to %s: transitions are controlled by the workflow controller", name, phase).
		WithHints("Stop or delete the workflow instead: wfctl delete " + name)
}

// Selector formats labels as a sorted kubectl label selector.
func Selector(labels map[string]string) string {
	return params.NewSet(labels).Join()
}

func (t *Tracker) read(ctx context.Context, args ...string) ([]byte, error) {
	var out []byte
	err := kube.RetryRead(ctx, t.ReadAttempts, fault.Retryable, func(ctx context.Context) error {
		callCtx := ctx
		if t.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, t.Timeout)
			defer cancel()
		}
		start := time.Now()
		var err error
		out, err = t.runner.RunAndCapture(callCtx, nil, args...)
		t.logger.Debug("kubectl read", "args", args, "elapsed", time.Since(start), "error", err)
		return err
	})
	if err != nil {
		return nil, fault.Classify(err, "kubectl "+args[0]+" "+args[1])
	}
	return out, nil
}

func (t *Tracker) warnDegraded(name string, degraded []Degraded) {
	for _, d := range degraded {
		t.logger.Warn("Ignoring malformed field", "workflow", name, "field", d.Field, "value", d.Value)
	}
}

// wait sleeps for d and reports false if ctx ended or cancelled turned
// true first. cancelled is checked every pollTick.
func wait(ctx context.Context, d time.Duration, cancelled func() bool) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(min(d, pollTick))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			if cancelled() {
				return false
			}
		}
	}
}
