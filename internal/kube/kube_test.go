package kube

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeKubectl = `#!/bin/sh
case "$FAKE_KUBECTL_MODE" in
  fail)
    echo 'Error from server (NotFound): workflows.argoproj.io "missing" not found' >&2
    exit 1
    ;;
  lines)
    echo "line 1"
    echo "line 2"
    echo "line 3"
    ;;
  follow)
    echo "first"
    exec sleep 30
    ;;
  kubeconfig)
    echo "$KUBECONFIG"
    ;;
  stdin)
    cat
    ;;
  warn)
    echo "Warning: deprecated flag" >&2
    echo "ok"
    ;;
  *)
    echo "$@"
    ;;
esac
`

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveCall(op string, _ time.Duration, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func newFakeClient(t *testing.T, mode string) *Client {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake kubectl is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "kubectl")
	require.NoError(t, os.WriteFile(path, []byte(fakeKubectl), 0o755))
	t.Setenv("FAKE_KUBECTL_MODE", mode)
	return &Client{Binary: path}
}

func TestRunAndCapture_PassesContextFlag(t *testing.T) {
	c := newFakeClient(t, "echo")
	c.Context = "staging"

	out, err := c.RunAndCapture(context.Background(), nil, "get", "workflows", "-n", "argo")
	require.NoError(t, err)
	assert.Equal(t, "--context staging get workflows -n argo", strings.TrimSpace(string(out)))
}

func TestRunAndCapture_SetsKubeconfig(t *testing.T) {
	c := newFakeClient(t, "kubeconfig")
	c.Kubeconfig = "/tmp/custom-kubeconfig"

	out, err := c.RunAndCapture(context.Background(), nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-kubeconfig", strings.TrimSpace(string(out)))
}

func TestRunAndCapture_ForwardsStdin(t *testing.T) {
	c := newFakeClient(t, "stdin")

	out, err := c.RunAndCapture(context.Background(), []byte("kind: WorkflowTemplate\n"), "apply", "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, "kind: WorkflowTemplate\n", string(out))
}

func TestRunAndCapture_TracesWarnings(t *testing.T) {
	c := newFakeClient(t, "warn")
	var trace strings.Builder
	c.Trace = &trace

	out, err := c.RunAndCapture(context.Background(), nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(out))
	assert.Equal(t, "Warning: deprecated flag\n", trace.String())
}

func TestRunAndCapture_StatusError(t *testing.T) {
	c := newFakeClient(t, "fail")
	obs := &recordingObserver{}
	c.Observer = obs

	_, err := c.RunAndCapture(context.Background(), nil, "get", "workflow", "missing", "-n", "argo")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.StatusCode())
	assert.Equal(t, "NotFound", se.Reason)
	assert.Contains(t, se.Diagnostic(), "not found")

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "get workflow", obs.ops[0])
	assert.Error(t, obs.errs[0])
}

func TestRunAndCapture_MissingBinary(t *testing.T) {
	c := &Client{Binary: filepath.Join(t.TempDir(), "no-such-kubectl")}

	_, err := c.RunAndCapture(context.Background(), nil, "version")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestRunAndCapture_DeadlineExceeded(t *testing.T) {
	c := newFakeClient(t, "follow")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.RunAndCapture(ctx, nil, "logs", "pod")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_ReadsUntilEOF(t *testing.T) {
	c := newFakeClient(t, "lines")

	rc, err := c.Stream(context.Background(), "logs", "pod", "-c", "main")
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.NoError(t, rc.Close())
	assert.Equal(t, []string{"line 1", "line 2", "line 3"}, lines)
}

func TestStream_CloseStopsFollowingProcess(t *testing.T) {
	c := newFakeClient(t, "follow")

	rc, err := c.Stream(context.Background(), "logs", "pod", "-f")
	require.NoError(t, err)

	scanner := bufio.NewScanner(rc)
	require.True(t, scanner.Scan())
	assert.Equal(t, "first", scanner.Text())

	done := make(chan error, 1)
	go func() { done <- rc.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not stop the streaming process")
	}
	// A second Close is a no-op.
	assert.NoError(t, rc.Close())
}

func TestParseApplyResult(t *testing.T) {
	tests := []struct {
		output string
		want   ApplyResult
	}{
		{"workflowtemplate.argoproj.io/create-argocd-application created\n", ApplyCreated},
		{"workflowtemplate.argoproj.io/create-argocd-application configured\n", ApplyConfigured},
		{"workflowtemplate.argoproj.io/create-argocd-application unchanged\n", ApplyUnchanged},
		{"", ApplyUnknown},
		{"something else entirely", ApplyUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseApplyResult(tt.output), tt.output)
	}
}

func TestOperation(t *testing.T) {
	assert.Equal(t, "get workflow", operation([]string{"get", "workflow", "wf-abc", "-n", "argo", "-o", "json"}))
	assert.Equal(t, "get workflows", operation([]string{"-n", "argo", "get", "workflows", "-l", "a=b"}))
	assert.Equal(t, "logs", operation([]string{"logs", "wf-abc-123", "-c", "main", "-f"}))
	assert.Equal(t, "apply", operation([]string{"apply", "-f", "-"}))
	assert.Equal(t, "unknown", operation(nil))
}
