// Package kube provides low-level integration with Kubernetes via kubectl.
package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultBinary   = "kubectl"
	streamWaitDelay = 2 * time.Second
)

// Observer receives the outcome of every kubectl invocation.
type Observer interface {
	ObserveCall(op string, elapsed time.Duration, err error)
}

// Client wraps kubectl execution with optional kubeconfig and context selection.
type Client struct {
	// Binary is the kubectl executable; empty means "kubectl" from PATH.
	Binary     string
	Kubeconfig string
	Context    string
	// Observer is notified after each call when set.
	Observer Observer
	// Trace receives stderr of successful calls, where kubectl prints warnings.
	Trace io.Writer
}

// NewClient constructs a new Kubernetes client wrapper.
func NewClient(kubeconfig, context string) *Client {
	return &Client{
		Kubeconfig: kubeconfig,
		Context:    context,
	}
}

// ApplyResult is the per-object outcome reported by kubectl apply.
type ApplyResult string

const (
	// ApplyCreated means the object did not exist before.
	ApplyCreated ApplyResult = "created"
	// ApplyConfigured means an existing object was changed.
	ApplyConfigured ApplyResult = "configured"
	// ApplyUnchanged means the object already matched the document.
	ApplyUnchanged ApplyResult = "unchanged"
	// ApplyUnknown is used when the output could not be interpreted.
	ApplyUnknown ApplyResult = "unknown"
)

// Apply applies the given YAML to the cluster using kubectl apply -f -.
func (c *Client) Apply(ctx context.Context, namespace string, yaml []byte) (ApplyResult, error) {
	args := []string{"apply", "-f", "-"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	out, err := c.RunAndCapture(ctx, yaml, args...)
	if err != nil {
		return ApplyUnknown, err
	}
	return ParseApplyResult(string(out)), nil
}

// ParseApplyResult extracts the apply verb from lines like
// "workflowtemplate.argoproj.io/name created".
func ParseApplyResult(output string) ApplyResult {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch ApplyResult(fields[len(fields)-1]) {
		case ApplyCreated:
			return ApplyCreated
		case ApplyConfigured:
			return ApplyConfigured
		case ApplyUnchanged:
			return ApplyUnchanged
		}
	}
	return ApplyUnknown
}

// RunAndCapture executes kubectl and returns its stdout.
// On failure it returns a *StatusError carrying stderr.
func (c *Client) RunAndCapture(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := c.command(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	if err != nil {
		err = c.wrapError(ctx, args, stderr.String(), err)
	} else if c.Trace != nil && stderr.Len() > 0 {
		_, _ = c.Trace.Write(stderr.Bytes())
	}
	c.observe(args, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// RunRaw executes kubectl and discards its output.
func (c *Client) RunRaw(ctx context.Context, stdin []byte, args ...string) error {
	_, err := c.RunAndCapture(ctx, stdin, args...)
	return err
}

// Stream starts a long-running kubectl command and returns its stdout.
// Closing the returned reader terminates the process.
func (c *Client) Stream(ctx context.Context, args ...string) (io.ReadCloser, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	cmd := c.command(ctx, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = streamWaitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kubectl %v: open stdout: %w", args, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		err = c.wrapError(ctx, args, "", err)
		c.observe(args, time.Since(start), err)
		return nil, err
	}
	return &stream{
		ReadCloser: stdout,
		cmd:        cmd,
		cancel:     cancel,
		stderr:     &stderr,
		client:     c,
		args:       args,
		ctx:        ctx,
		start:      start,
	}, nil
}

type stream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *bytes.Buffer
	client *Client
	args   []string
	ctx    context.Context
	start  time.Time
	closed bool
	err    error
}

// Close stops the process and reports a non-zero exit unless caused by Close itself.
func (s *stream) Close() error {
	if s.closed {
		return s.err
	}
	s.closed = true
	cancelled := s.ctx.Err() != nil
	s.cancel()
	_ = s.ReadCloser.Close()
	err := s.cmd.Wait()
	if err != nil && !cancelled && !killed(err) {
		s.err = s.client.wrapError(context.Background(), s.args, s.stderr.String(), err)
	}
	s.client.observe(s.args, time.Since(s.start), s.err)
	return s.err
}

func (c *Client) command(ctx context.Context, args ...string) *exec.Cmd {
	cmdArgs := make([]string, 0, len(args)+2)
	if c.Context != "" {
		cmdArgs = append(cmdArgs, "--context", c.Context)
	}
	cmdArgs = append(cmdArgs, args...)

	binary := c.Binary
	if binary == "" {
		binary = defaultBinary
	}
	cmd := exec.CommandContext(ctx, binary, cmdArgs...)
	if c.Kubeconfig != "" {
		env := os.Environ()
		env = append(env, "KUBECONFIG="+c.Kubeconfig)
		cmd.Env = env
	}
	return cmd
}

func (c *Client) wrapError(ctx context.Context, args []string, stderr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("kubectl %v: %w", args, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("kubectl binary not found: %w", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("kubectl %v: %w", args, err)
	}
	se := ParseStatusError(stderr)
	se.Args = args
	se.Err = err
	return se
}

func (c *Client) observe(args []string, elapsed time.Duration, err error) {
	if c.Observer == nil {
		return
	}
	c.Observer.ObserveCall(operation(args), elapsed, err)
}

// killed reports whether the process was terminated by a signal, which is how
// Close stops a stream that is still running.
func killed(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == -1
}

// operation reduces kubectl args to a low-cardinality verb/resource label.
func operation(args []string) string {
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-n" || a == "--namespace" || a == "-c" || a == "-l" || a == "-o":
			i++
		case strings.HasPrefix(a, "-"):
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) == 0 {
		return "unknown"
	}
	verb := positional[0]
	switch verb {
	case "get", "delete":
		if len(positional) > 1 {
			return verb + " " + positional[1]
		}
	}
	return verb
}
