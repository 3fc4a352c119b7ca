package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/params"
	"github.com/codex-k8s/wfctl/internal/template"
)

// newSubmitCommand creates the "submit" group that instantiates WorkflowTemplates.
func newSubmitCommand(env *session) *cobra.Command {
	return newGroupCommand("submit", "Submit a workflow from a WorkflowTemplate",
		newSubmitAppCommand(env),
		newSubmitAppSetCommand(env),
		newSubmitInfraCommand(env),
		newSubmitTemplateCommand(env),
	)
}

func newSubmitAppCommand(env *session) *cobra.Command {
	var (
		app        params.Application
		syncPolicy string
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Create an Argo CD Application through a workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			policy, err := params.ParseSyncPolicy(syncPolicy)
			if err != nil {
				return err
			}
			app.SyncPolicy = policy
			set, skipped, err := app.Params()
			for _, s := range skipped {
				logger.Warn("skipping malformed helm parameter", "entry", s)
			}
			if err != nil {
				return err
			}
			return submit(cmd, env, template.ApplicationTemplate, set, watch)
		},
	}
	f := cmd.Flags()
	f.StringVar(&app.Name, "name", "", "Application name")
	f.StringVar(&app.Namespace, "app-namespace", "argocd", "Namespace of the Application resource")
	f.StringVar(&app.RepoURL, "repo-url", "", "Git repository URL")
	f.StringVar(&app.ChartPath, "chart-path", "", "Path to the Helm chart in the repository")
	f.StringVar(&app.DestinationCluster, "dest-cluster", params.DefaultDestinationCluster, "Destination cluster URL")
	f.StringVar(&app.DestinationNamespace, "dest-namespace", "", "Destination namespace (defaults to the application name)")
	f.StringVar(&app.ValuesFile, "values-file", "", "Helm values file")
	f.StringVar(&app.HelmParameters, "helm-params", "", "Helm parameters in k=v,k2=v2 format")
	f.StringVar(&syncPolicy, "sync-policy", string(params.SyncManual), "Sync policy (manual, auto, auto-prune, auto-heal)")
	f.BoolVarP(&watch, "watch", "w", false, "Watch the workflow until it finishes")
	return cmd
}

func newSubmitAppSetCommand(env *session) *cobra.Command {
	var (
		appset       params.ApplicationSet
		environments string
		syncPolicy   string
		watch        bool
	)
	cmd := &cobra.Command{
		Use:   "appset",
		Short: "Create an Argo CD ApplicationSet through a workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy, err := params.ParseSyncPolicy(syncPolicy)
			if err != nil {
				return err
			}
			appset.SyncPolicy = policy
			if environments != "" {
				data, err := jsonArg(environments)
				if err != nil {
					return err
				}
				envs, err := params.ParseEnvironments(data)
				if err != nil {
					return err
				}
				appset.Environments = envs
			}
			set, err := appset.Params()
			if err != nil {
				return err
			}
			return submit(cmd, env, template.ApplicationSetTemplate, set, watch)
		},
	}
	f := cmd.Flags()
	f.StringVar(&appset.Name, "name", "", "ApplicationSet name")
	f.StringVar(&appset.RepoURL, "repo-url", "", "Git repository URL")
	f.StringVar(&appset.ChartPath, "chart-path", "", "Path to the Helm chart in the repository")
	f.StringVar(&appset.GeneratorType, "generator", "list", "Generator type (list, git)")
	f.StringVar(&environments, "environments", "", "Environments as a JSON array, or @file")
	f.StringVar(&syncPolicy, "sync-policy", string(params.SyncManual), "Sync policy (manual, auto, auto-prune, auto-heal)")
	f.BoolVarP(&watch, "watch", "w", false, "Watch the workflow until it finishes")
	return cmd
}

func newSubmitInfraCommand(env *session) *cobra.Command {
	var (
		namespace, secrets, configmaps, customScripts string
		watch                                         bool
	)
	cmd := &cobra.Command{
		Use:   "infra",
		Short: "Provision a namespace with secrets, configmaps and custom scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := &params.Set{}
			set.Put("namespace", namespace)
			for _, p := range [][2]string{{"secrets", secrets}, {"configmaps", configmaps}} {
				if p[1] == "" {
					continue
				}
				data, err := jsonArg(p[1])
				if err != nil {
					return err
				}
				set.Put(p[0], string(data))
			}
			if customScripts != "" {
				data, err := fileArg(customScripts)
				if err != nil {
					return err
				}
				set.Put("custom_scripts", string(data))
			}
			if err := set.Validate("namespace"); err != nil {
				return err
			}
			return submit(cmd, env, template.InfrastructureTemplate, set, watch)
		},
	}
	f := cmd.Flags()
	f.StringVar(&namespace, "target-namespace", "", "Namespace to provision")
	f.StringVar(&secrets, "secrets", "", "Secrets as a JSON array of {name, type, data}, or @file")
	f.StringVar(&configmaps, "configmaps", "", "ConfigMaps as a JSON array of {name, data}, or @file")
	f.StringVar(&customScripts, "custom-scripts", "", "Shell script to run after provisioning, or @file")
	f.BoolVarP(&watch, "watch", "w", false, "Watch the workflow until it finishes")
	return cmd
}

func newSubmitTemplateCommand(env *session) *cobra.Command {
	var (
		assignments []string
		watch       bool
	)
	cmd := &cobra.Command{
		Use:   "template NAME",
		Short: "Submit a workflow from any WorkflowTemplate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := &params.Set{}
			var violations []string
			for _, a := range assignments {
				name, value, ok := strings.Cut(a, "=")
				if !ok || strings.TrimSpace(name) == "" {
					violations = append(violations, fmt.Sprintf("Invalid parameter '%s': expected name=value", a))
					continue
				}
				set.Put(strings.TrimSpace(name), value)
			}
			if len(violations) > 0 {
				return fault.Invalid(violations...)
			}
			return submit(cmd, env, args[0], set, watch)
		},
	}
	cmd.Flags().StringArrayVarP(&assignments, "parameter", "p", nil, "Workflow parameter as name=value (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Watch the workflow until it finishes")
	return cmd
}

func submit(cmd *cobra.Command, env *session, templateName string, set *params.Set, watch bool) error {
	logger := LoggerFromContext(cmd.Context())

	sub, err := env.submitter().Submit(cmd.Context(), templateName, set)
	env.recorder.ObserveSubmission(templateName, err)
	if err != nil {
		return err
	}
	logger.Info("workflow submitted", "name", sub.Name, "template", sub.Template, "submissionId", sub.SubmissionID)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s submitted in namespace %s\n", sub.Name, sub.Namespace)
	if !watch {
		return nil
	}
	return watchInstance(cmd, env, sub.Name, nil)
}

// fileArg returns v itself, or the contents of the file when v is "@path".
func fileArg(v string) ([]byte, error) {
	path, ok := strings.CutPrefix(v, "@")
	if !ok {
		return []byte(v), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// jsonArg is fileArg for JSON values; surrounding whitespace is dropped.
func jsonArg(v string) ([]byte, error) {
	data, err := fileArg(v)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(data))), nil
}
