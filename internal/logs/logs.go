// Package logs retrieves and streams step logs of workflow instances.
package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/workflow"
)

// MainContainer is the container Argo runs step scripts in.
const MainContainer = "main"

// NoLogs is returned by Fetch when no unit matched.
const NoLogs = "No logs available"

const maxLineSize = 1 << 20

// Runner reads container logs through kubectl.
type Runner interface {
	RunAndCapture(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
	Stream(ctx context.Context, args ...string) (io.ReadCloser, error)
}

// Aggregator collects logs across the pods of an instance.
type Aggregator struct {
	runner Runner
	logger *slog.Logger
	// Timeout bounds each log read that does not follow; zero disables the bound.
	Timeout time.Duration
}

// NewAggregator creates an Aggregator.
func NewAggregator(runner Runner, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{runner: runner, logger: logger}
}

// ResolveUnits returns the pod nodes of inst in start order. A non-empty
// step keeps only nodes whose ID, display name or name equals step.
func ResolveUnits(inst *workflow.Instance, step string) []workflow.Node {
	var out []workflow.Node
	for _, n := range inst.SortedNodes() {
		if !n.IsPod() {
			continue
		}
		if step != "" && n.ID != step && n.DisplayName != step && n.Name != step {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Fetch returns the concatenated logs of the matching units. A unit whose
// logs cannot be read contributes a placeholder line instead; the call
// itself never fails.
func (a *Aggregator) Fetch(ctx context.Context, inst *workflow.Instance, step string) string {
	units := ResolveUnits(inst, step)
	if len(units) == 0 {
		return NoLogs
	}
	var b strings.Builder
	for i, n := range units {
		if i > 0 {
			b.WriteString("\n")
		}
		text, err := a.read(ctx, inst, n)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "=== Logs from step: %s ===\n", n.DisplayName)
			b.WriteString(text)
			if !strings.HasSuffix(text, "\n") {
				b.WriteString("\n")
			}
		case fault.Is(err, fault.ResourceNotFound):
			fmt.Fprintf(&b, "=== Step %s: Pod not found or not started yet ===\n", n.DisplayName)
		default:
			a.logger.Warn("Failed to read step logs", "workflow", inst.Name, "step", n.DisplayName, "error", err)
			fmt.Fprintf(&b, "=== Step %s: Failed to retrieve logs: %s ===\n", n.DisplayName, reason(err))
		}
	}
	return b.String()
}

func (a *Aggregator) read(ctx context.Context, inst *workflow.Instance, n workflow.Node) (string, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	out, err := a.runner.RunAndCapture(ctx, nil, logArgs(inst, n, false)...)
	if err != nil {
		return "", fault.Classify(err, "read logs of "+n.DisplayName)
	}
	return string(out), nil
}

// StreamOptions control Stream.
type StreamOptions struct {
	Step string
	// Follow keeps each unit's stream open until the pod exits.
	Follow bool
}

// Stream returns a lazy sequence of log lines. Without a step filter only
// pending or running pods are streamed. Every call opens new kubectl
// streams; breaking out of the loop or cancelling ctx closes the active one.
func (a *Aggregator) Stream(ctx context.Context, inst *workflow.Instance, opts StreamOptions) iter.Seq[string] {
	units := ResolveUnits(inst, opts.Step)
	if opts.Step == "" {
		var active []workflow.Node
		for _, n := range units {
			if n.Phase == workflow.PhaseRunning || n.Phase == workflow.PhasePending {
				active = append(active, n)
			}
		}
		units = active
	}

	return func(yield func(string) bool) {
		for _, n := range units {
			if ctx.Err() != nil {
				return
			}
			if !yield(fmt.Sprintf("=== Streaming logs from step: %s ===", n.DisplayName)) {
				return
			}
			if !a.streamUnit(ctx, inst, n, opts.Follow, yield) {
				return
			}
		}
	}
}

// streamUnit yields the lines of one pod. It reports false when the caller
// stopped iterating or ctx ended. A unit that does not follow is bounded by
// Timeout; hitting it is reported as a stream failure of that unit.
func (a *Aggregator) streamUnit(ctx context.Context, inst *workflow.Instance, n workflow.Node, follow bool, yield func(string) bool) bool {
	unitCtx := ctx
	if !follow && a.Timeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	rc, err := a.runner.Stream(unitCtx, logArgs(inst, n, follow)...)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		return yield(streamFailure(n, fault.Classify(err, "stream logs of "+n.DisplayName)))
	}

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if !yield(strings.TrimRight(scanner.Text(), "\r")) {
			_ = rc.Close()
			return false
		}
	}
	scanErr := scanner.Err()
	closeErr := rc.Close()
	if ctx.Err() != nil {
		return false
	}
	if closeErr != nil {
		return yield(streamFailure(n, fault.Classify(closeErr, "stream logs of "+n.DisplayName)))
	}
	if scanErr != nil {
		a.logger.Warn("Log stream read failed", "step", n.DisplayName, "error", scanErr)
		return yield(streamFailure(n, fault.Wrap(fault.Unknown, scanErr, "read log stream")))
	}
	return true
}

func streamFailure(n workflow.Node, err error) string {
	if fault.Is(err, fault.ResourceNotFound) {
		return fmt.Sprintf("Step %s: Pod not found or not started yet", n.DisplayName)
	}
	return fmt.Sprintf("Step %s: Failed to stream logs: %s", n.DisplayName, reason(err))
}

func logArgs(inst *workflow.Instance, n workflow.Node, follow bool) []string {
	args := []string{"logs", inst.PodName(n), "-c", MainContainer}
	if inst.Namespace != "" {
		args = append(args, "-n", inst.Namespace)
	}
	if follow {
		args = append(args, "-f")
	}
	return args
}

// reason is the first line of the remote diagnostic, or of the error itself.
func reason(err error) string {
	msg := err.Error()
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Err != nil {
		msg = fe.Err.Error()
	}
	var d interface{ Diagnostic() string }
	if errors.As(err, &d) && strings.TrimSpace(d.Diagnostic()) != "" {
		msg = d.Diagnostic()
	}
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
