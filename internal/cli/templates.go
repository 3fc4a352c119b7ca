package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/template"
)

// newTemplatesCommand creates the "templates" group.
func newTemplatesCommand(env *session) *cobra.Command {
	return newGroupCommand("templates", "Manage built-in WorkflowTemplates",
		newTemplatesCreateCommand(env),
		newTemplatesListCommand(env),
	)
}

func newTemplatesCreateCommand(env *session) *cobra.Command {
	var (
		dryRun         bool
		serviceAccount string
	)
	cmd := &cobra.Command{
		Use:       "create [application|applicationset|infrastructure]...",
		Short:     "Generate and apply built-in WorkflowTemplates (all kinds by default)",
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			kinds := template.Kinds
			if len(args) > 0 {
				kinds = nil
				for _, a := range args {
					k, err := template.ParseKind(a)
					if err != nil {
						return err
					}
					kinds = append(kinds, k)
				}
			}
			if serviceAccount == "" {
				serviceAccount = env.settings.ServiceAccount
			}
			genOpts := template.Options{Namespace: env.settings.Namespace, ServiceAccount: serviceAccount}

			store := env.store()
			out := cmd.OutOrStdout()
			for i, kind := range kinds {
				doc, err := template.GenerateDocument(kind, genOpts)
				if err != nil {
					return err
				}
				if dryRun {
					if i > 0 {
						_, _ = fmt.Fprintln(out, "---")
					}
					_, _ = out.Write(doc)
					continue
				}
				result, err := store.Apply(cmd.Context(), doc)
				if err != nil {
					return err
				}
				logger.Info("template applied", "kind", kind, "name", kind.TemplateName(), "result", result)
				_, _ = fmt.Fprintf(out, "WorkflowTemplate %s %s\n", kind.TemplateName(), result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the documents instead of applying them")
	cmd.Flags().StringVar(&serviceAccount, "service-account", "", "Service account for generated templates")
	return cmd
}

func newTemplatesListCommand(env *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List WorkflowTemplates in the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := env.store().List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				_, _ = fmt.Fprintf(out, "No WorkflowTemplates found in namespace %s\n", env.settings.Namespace)
				return nil
			}
			now := time.Now()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tENTRYPOINT\tPARAMETERS\tAGE")
			for _, s := range summaries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Name, s.Entrypoint, s.Parameters, age(s.CreatedAt, now))
			}
			return tw.Flush()
		},
	}
}

func kindNames() []string {
	names := make([]string, len(template.Kinds))
	for i, k := range template.Kinds {
		names[i] = string(k)
	}
	return names
}
