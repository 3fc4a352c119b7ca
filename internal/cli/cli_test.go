package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/wfctl/internal/fault"
)

const fakeKubectl = `#!/bin/sh
echo "$@" >> "$FAKE_KUBECTL_DIR/calls"
case "$1 $2" in
  "apply -f")
    cat > "$FAKE_KUBECTL_DIR/applied"
    echo "workflowtemplate.argoproj.io/create-argocd-application created"
    ;;
  "create -f")
    cat > "$FAKE_KUBECTL_DIR/submitted"
    echo '{"metadata":{"name":"create-argocd-application-abcde","namespace":"argo"}}'
    ;;
  "get workflow")
    if [ ! -f "$FAKE_KUBECTL_DIR/workflow.json" ]; then
      echo "Error from server (NotFound): workflows.argoproj.io \"$3\" not found" >&2
      exit 1
    fi
    cat "$FAKE_KUBECTL_DIR/workflow.json"
    ;;
  "get workflows")
    echo "{\"items\":[$(cat "$FAKE_KUBECTL_DIR/workflow.json")]}"
    ;;
  "delete workflow")
    echo "workflow.argoproj.io \"$3\" deleted"
    ;;
  logs\ *)
    echo "log line from $2"
    ;;
  *)
    echo "error: unexpected call $*" >&2
    exit 1
    ;;
esac
`

const workflowJSON = `{
  "metadata": {"name": "demo-abcde", "namespace": "argo",
    "labels": {"wfctl.codex-k8s.io/template": "create-argocd-application"}},
  "spec": {"workflowTemplateRef": {"name": "create-argocd-application"}},
  "status": {
    "phase": "Running",
    "progress": "1/2",
    "startedAt": "2024-05-01T10:00:00Z",
    "nodes": {
      "demo-abcde": {"name": "demo-abcde", "displayName": "demo-abcde", "type": "Steps", "phase": "Running"},
      "demo-abcde-1111": {"name": "demo-abcde[0].validate-inputs", "displayName": "validate-inputs", "type": "Pod", "phase": "Succeeded",
        "startedAt": "2024-05-01T10:00:01Z", "finishedAt": "2024-05-01T10:00:05Z"}
    }
  }
}`

type harness struct {
	t       *testing.T
	dir     string
	kubectl string
	stdin   string
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake kubectl is a POSIX shell script")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ARGO_NAMESPACE", "argo")
	t.Setenv("FAKE_KUBECTL_DIR", dir)
	t.Chdir(dir)

	kubectl := filepath.Join(dir, "kubectl")
	require.NoError(t, os.WriteFile(kubectl, []byte(fakeKubectl), 0o755))
	return &harness{t: t, dir: dir, kubectl: kubectl}
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	h.errOut.Reset()
	full := append([]string{"--kubectl", h.kubectl}, args...)
	return execute(context.Background(), full, nil, strings.NewReader(h.stdin), &h.out, &h.errOut)
}

func (h *harness) withWorkflow() {
	require.NoError(h.t, os.WriteFile(filepath.Join(h.dir, "workflow.json"), []byte(workflowJSON), 0o600))
}

func (h *harness) file(name string) string {
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

func TestTemplatesCreateDryRun(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("templates", "create", "--dry-run"))
	assert.Equal(t, 3, strings.Count(h.out.String(), "kind: WorkflowTemplate"))
	assert.Equal(t, 2, strings.Count(h.out.String(), "\n---\n"))
	assert.Empty(t, h.file("calls"))
}

func TestTemplatesCreateApplies(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("templates", "create", "application"))
	assert.Equal(t, "WorkflowTemplate create-argocd-application created\n", h.out.String())
	assert.Contains(t, h.file("applied"), "name: create-argocd-application")
	assert.Contains(t, h.file("calls"), "apply -f - -n argo")
}

func TestTemplatesCreateUnknownKind(t *testing.T) {
	h := newHarness(t)

	err := h.run("templates", "create", "cronjob")
	assert.Equal(t, fault.Validation, fault.KindOf(err))
}

func TestSubmitAppValidation(t *testing.T) {
	h := newHarness(t)

	err := h.run("submit", "app", "--name", "demo")
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fault.Validation, fe.Kind)
	assert.Contains(t, fe.Error(), "repo_url")
	assert.Contains(t, fe.Error(), "chart_path")
	assert.Empty(t, h.file("calls"))
}

func TestSubmitApp(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("submit", "app",
		"--name", "demo",
		"--repo-url", "https://github.com/acme/charts.git",
		"--chart-path", "charts/demo",
		"--sync-policy", "auto",
	))
	assert.Equal(t, "Workflow create-argocd-application-abcde submitted in namespace argo\n", h.out.String())
	submitted := h.file("submitted")
	assert.Contains(t, submitted, "name: create-argocd-application")
	assert.Contains(t, submitted, "https://github.com/acme/charts.git")
	assert.Contains(t, submitted, "wfctl.codex-k8s.io/submission-id")
}

func TestSubmitTemplateRejectsBadParameter(t *testing.T) {
	h := newHarness(t)

	err := h.run("submit", "template", "custom", "-p", "novalue")
	assert.Equal(t, fault.Validation, fault.KindOf(err))
	assert.Empty(t, h.file("calls"))
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()

	require.NoError(t, h.run("status", "demo-abcde"))
	out := h.out.String()
	assert.Contains(t, out, "Phase:      Running")
	assert.Contains(t, out, "Progress:   1/2")
	assert.Contains(t, out, "validate-inputs")
}

func TestStatusNotFound(t *testing.T) {
	h := newHarness(t)

	err := h.run("status", "missing")
	assert.Equal(t, fault.ResourceNotFound, fault.KindOf(err))
	assert.NotEmpty(t, fault.HintsOf(err))
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()

	require.NoError(t, h.run("list", "-l", "team=platform"))
	assert.Contains(t, h.out.String(), "NAME")
	assert.Contains(t, h.out.String(), "demo-abcde")
	assert.Contains(t, h.file("calls"), "-l team=platform")
}

func TestLogs(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()

	require.NoError(t, h.run("logs", "demo-abcde"))
	assert.Contains(t, h.out.String(), "=== Logs from step: validate-inputs ===")
	assert.Contains(t, h.out.String(), "log line from demo-abcde-1111")
}

func TestDeleteRequiresTarget(t *testing.T) {
	h := newHarness(t)

	err := h.run("delete")
	assert.Equal(t, fault.Validation, fault.KindOf(err))
}

func TestDeleteOne(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("delete", "demo-abcde", "--retain-logs"))
	assert.Equal(t, "Workflow demo-abcde deleted\n", h.out.String())
	assert.Contains(t, h.file("calls"), "--cascade=orphan")
}

func TestDeleteAllAborts(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()
	h.stdin = "n\n"

	require.NoError(t, h.run("delete", "--all"))
	assert.Contains(t, h.out.String(), "Aborted")
	assert.NotContains(t, h.file("calls"), "delete")
}

func TestDeleteAllConfirmed(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()
	h.stdin = "y\n"

	require.NoError(t, h.run("delete", "--all"))
	assert.Contains(t, h.out.String(), "Deleted: 1, Failed: 0")
}

func TestMetricsFileWritten(t *testing.T) {
	h := newHarness(t)
	h.withWorkflow()
	path := filepath.Join(h.dir, "wfctl.prom")

	require.NoError(t, h.run("--metrics-file", path, "list"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wfctl_kubectl_calls_total{op="get workflows",result="ok"} 1`)
}

func TestMetricsFileWrittenOnFailure(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "wfctl.prom")

	require.Error(t, h.run("--metrics-file", path, "status", "missing"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `result="not-found"`)
}

func TestConfigViewAppliesFlags(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("-n", "workflows", "--timeout", "5s", "config", "view"))
	assert.Contains(t, h.out.String(), "namespace: workflows")
	assert.Contains(t, h.out.String(), "requestTimeout: 5s")
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("config", "init"))
	assert.Contains(t, h.file(".wfctl/config.yaml"), "namespace: argo")
	assert.Error(t, h.run("config", "init"))
	require.NoError(t, h.run("config", "init", "--force"))
}

func TestSubmitTemplateWatch(t *testing.T) {
	h := newHarness(t)
	t.Setenv("WFCTL_POLL_INTERVAL", "10ms")
	finished := strings.ReplaceAll(workflowJSON, "Running", "Succeeded")
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "workflow.json"), []byte(finished), 0o600))

	require.NoError(t, h.run("submit", "template", "create-argocd-application", "-p", "app_name=demo", "--watch"))
	out := h.out.String()
	assert.Contains(t, out, "submitted in namespace argo")
	assert.Contains(t, out, "Phase:      Succeeded")
	assert.Contains(t, h.file("submitted"), "value: demo")
}

func TestWatchFailedWorkflowIsError(t *testing.T) {
	h := newHarness(t)
	failed := strings.ReplaceAll(workflowJSON, "Running", "Failed")
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "workflow.json"), []byte(failed), 0o600))

	err := h.run("status", "demo-abcde", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finished with phase Failed")
}
