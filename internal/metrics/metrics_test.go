package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/wfctl/internal/kube"
)

var _ kube.Observer = (*Recorder)(nil)

func TestObserveCall_LabelsByResult(t *testing.T) {
	r := NewRecorder()
	notFound := &kube.StatusError{Code: 404, Reason: "NotFound"}

	r.ObserveCall("get workflow", 10*time.Millisecond, nil)
	r.ObserveCall("get workflow", 20*time.Millisecond, nil)
	r.ObserveCall("get workflow", 5*time.Millisecond, notFound)
	r.ObserveCall("create", time.Second, fmt.Errorf("kubectl: %w", context.DeadlineExceeded))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.calls.WithLabelValues("get workflow", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("get workflow", "not-found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("create", "timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestObserveSubmission(t *testing.T) {
	r := NewRecorder()
	r.ObserveSubmission("create-argocd-application", nil)
	r.ObserveSubmission("create-argocd-application", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissions.WithLabelValues("create-argocd-application", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissions.WithLabelValues("create-argocd-application", "unknown")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveCall("apply", 30*time.Millisecond, nil)
	path := filepath.Join(t.TempDir(), "wfctl.prom")

	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wfctl_kubectl_calls_total{op="apply",result="ok"} 1`)
	assert.Contains(t, string(data), "wfctl_kubectl_call_duration_seconds_bucket")
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	r := NewRecorder()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "wfctl.prom"))
	assert.Error(t, err)
}
