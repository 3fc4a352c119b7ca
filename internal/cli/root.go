// Package cli defines the command-line interface for wfctl.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/config"
	"github.com/codex-k8s/wfctl/internal/kube"
	"github.com/codex-k8s/wfctl/internal/lifecycle"
	"github.com/codex-k8s/wfctl/internal/logging"
	"github.com/codex-k8s/wfctl/internal/logs"
	"github.com/codex-k8s/wfctl/internal/metrics"
	"github.com/codex-k8s/wfctl/internal/template"
	"github.com/codex-k8s/wfctl/internal/workflow"
)

// Options stores global CLI options shared between commands. Empty values
// and zero durations leave the loaded configuration untouched.
type Options struct {
	ConfigPath  string
	EnvFile     string
	Namespace   string
	Context     string
	Kubeconfig  string
	Kubectl     string
	LogLevel    string
	Timeout     time.Duration
	MetricsFile string
}

// Execute builds the root command, runs it with args and returns any error.
// Metrics are written even when the command fails.
func Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	return execute(ctx, args, logger, os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, logger *slog.Logger, in io.Reader, out, errOut io.Writer) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	opts := &Options{}
	env := &session{logger: logger}

	rootCmd := newRootCommand(opts, env)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	if finishErr := env.finish(); finishErr != nil && err == nil {
		err = finishErr
	}
	return err
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, env *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wfctl",
		Short:         "wfctl submits and tracks Argo Workflows",
		Long:          "wfctl manages Argo WorkflowTemplates for Argo CD applications and infrastructure, submits workflows from them, and tracks their status and logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.load(opts, cmd.ErrOrStderr()); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, env.logger))
			env.logger.Debug("logger initialized", "namespace", env.settings.Namespace, "context", env.settings.Context)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to config file (default ~/.wfctl/config.yaml)")
	flags.StringVar(&opts.EnvFile, "env-file", "", "Path to .env file (default ./.env when present)")
	flags.StringVarP(&opts.Namespace, "namespace", "n", "", "Argo namespace")
	flags.StringVar(&opts.Context, "context", "", "Kubernetes context")
	flags.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	flags.StringVar(&opts.Kubectl, "kubectl", "", "Path to kubectl binary")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Timeout for a single cluster call")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newConfigCommand(opts, env),
		newTemplatesCommand(env),
		newSubmitCommand(env),
		newListCommand(env),
		newStatusCommand(env),
		newLogsCommand(env),
		newDeleteCommand(env),
	)

	return cmd
}

// session holds the resolved settings and the components built from them.
type session struct {
	settings config.Settings
	logger   *slog.Logger
	client   *kube.Client
	recorder *metrics.Recorder
	trace    *logging.Writer
}

func (r *session) load(opts *Options, logOut io.Writer) error {
	settings, err := config.Load(config.Options{ConfigPath: opts.ConfigPath, EnvFile: opts.EnvFile})
	if err != nil {
		return err
	}
	overlay(&settings, opts)
	if err := settings.Validate(); err != nil {
		return err
	}
	r.settings = settings

	r.logger = logging.NewLogger(logOut, logging.ParseLevel(settings.LogLevel))
	r.recorder = metrics.NewRecorder()
	r.trace = logging.NewWriter(r.logger, "kubectl")
	r.client = kube.NewClient(settings.Kubeconfig, settings.Context)
	r.client.Binary = opts.Kubectl
	r.client.Observer = r.recorder
	r.client.Trace = r.trace
	return nil
}

func (r *session) finish() error {
	if r.trace != nil {
		r.trace.Flush()
	}
	if r.recorder == nil || r.settings.MetricsFile == "" {
		return nil
	}
	return r.recorder.WriteTextfile(r.settings.MetricsFile)
}

func overlay(s *config.Settings, opts *Options) {
	setIf(&s.Namespace, opts.Namespace)
	setIf(&s.Context, opts.Context)
	setIf(&s.Kubeconfig, opts.Kubeconfig)
	setIf(&s.LogLevel, opts.LogLevel)
	setIf(&s.MetricsFile, opts.MetricsFile)
	if opts.Timeout > 0 {
		s.RequestTimeout = opts.Timeout
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (r *session) store() *template.Store {
	s := template.NewStore(r.client, r.settings.Namespace, r.logger)
	s.Timeout = r.settings.RequestTimeout
	s.ReadAttempts = r.settings.ReadAttempts
	return s
}

func (r *session) submitter() *workflow.Submitter {
	s := workflow.NewSubmitter(r.client, r.settings.Namespace, r.logger)
	s.Timeout = r.settings.RequestTimeout
	return s
}

func (r *session) tracker() *workflow.Tracker {
	t := workflow.NewTracker(r.client, r.settings.Namespace, r.logger)
	t.Timeout = r.settings.RequestTimeout
	t.ReadAttempts = r.settings.ReadAttempts
	return t
}

func (r *session) aggregator() *logs.Aggregator {
	a := logs.NewAggregator(r.client, r.logger)
	a.Timeout = r.settings.RequestTimeout
	return a
}

func (r *session) manager() *lifecycle.Manager {
	m := lifecycle.NewManager(r.client, r.tracker(), r.settings.Namespace, r.logger)
	m.Timeout = r.settings.RequestTimeout
	return m
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
