package template

import (
	"context"
	"log/slog"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/kube"
)

// Cluster is the subset of kube.Client used by Store.
type Cluster interface {
	Apply(ctx context.Context, namespace string, yaml []byte) (kube.ApplyResult, error)
	RunAndCapture(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// Store upserts and lists WorkflowTemplates in one namespace.
type Store struct {
	cluster   Cluster
	namespace string
	logger    *slog.Logger
	// Timeout bounds every remote call; zero disables the bound.
	Timeout time.Duration
	// ReadAttempts is the number of tries for List.
	ReadAttempts int
}

// NewStore creates a Store.
func NewStore(cluster Cluster, namespace string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{cluster: cluster, namespace: namespace, logger: logger, ReadAttempts: 1}
}

// Apply validates doc and upserts it. Applying the same document twice is
// idempotent; the second call reports kube.ApplyUnchanged.
func (s *Store) Apply(ctx context.Context, doc []byte) (kube.ApplyResult, error) {
	h, err := ParseHeader(doc)
	if err != nil {
		return kube.ApplyUnknown, err
	}
	ns := h.Namespace
	if ns == "" {
		ns = s.namespace
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	res, err := s.cluster.Apply(ctx, ns, doc)
	if err != nil {
		e := fault.Classify(err, "apply template "+h.Name)
		e.WithHints("Review Argo Workflows logs: kubectl logs -n argo -l app=workflow-controller")
		return kube.ApplyUnknown, e
	}
	s.logger.Debug("Template applied", "name", h.Name, "namespace", ns, "result", string(res), "elapsed", time.Since(start))
	return res, nil
}

// Summary describes a stored template.
type Summary struct {
	Name       string
	Namespace  string
	Entrypoint string
	Parameters int
	CreatedAt  *time.Time
}

// List returns the templates in the store's namespace.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []byte
	err := kube.RetryRead(ctx, s.ReadAttempts, fault.Retryable, func(ctx context.Context) error {
		callCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		var err error
		out, err = s.cluster.RunAndCapture(callCtx, nil, "get", "workflowtemplates", "-n", s.namespace, "-o", "json")
		return err
	})
	if err != nil {
		return nil, fault.Classify(err, "list templates")
	}

	list, err := kube.DecodeObject(out)
	if err != nil {
		return nil, fault.Wrap(fault.Unknown, err, "list templates")
	}
	items := list.Items()
	summaries := make([]Summary, 0, len(items))
	for _, item := range items {
		created, ok := item.Time("metadata", "creationTimestamp")
		if !ok {
			s.logger.Warn("Malformed template timestamp", "name", item.String("metadata", "name"))
		}
		summaries = append(summaries, Summary{
			Name:       item.String("metadata", "name"),
			Namespace:  item.String("metadata", "namespace"),
			Entrypoint: item.String("spec", "entrypoint"),
			Parameters: len(item.Slice("spec", "arguments", "parameters")),
			CreatedAt:  created,
		})
	}
	return summaries, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}
