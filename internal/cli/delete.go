package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/lifecycle"
)

// newDeleteCommand creates the "delete" subcommand that removes workflows.
func newDeleteCommand(env *session) *cobra.Command {
	var (
		selector   string
		all        bool
		retainLogs bool
		yes        bool
	)
	cmd := &cobra.Command{
		Use:   "delete [NAME]",
		Short: "Delete one workflow, workflows matching a selector, or all workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())
			out := cmd.OutOrStdout()

			labels, err := parseSelector(selector)
			if err != nil {
				return err
			}
			sel := lifecycle.Selector{Labels: labels, All: all}
			if len(args) == 1 {
				sel.Name = args[0]
			}
			if err := sel.Validate(); err != nil {
				return err
			}

			if sel.Name != "" {
				if err := env.manager().DeleteOne(cmd.Context(), sel.Name, retainLogs); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Workflow %s deleted\n", sel.Name)
				return nil
			}

			if !yes {
				target := "all workflows"
				if !all {
					target = "workflows matching " + selector
				}
				if !confirm(cmd, fmt.Sprintf("Delete %s in namespace %s?", target, env.settings.Namespace)) {
					_, _ = fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			res, err := env.manager().DeleteMany(cmd.Context(), sel, retainLogs)
			for _, f := range res.Failures {
				logger.Warn("delete failed", "name", f.Name, "error", f.Err)
			}
			_, _ = fmt.Fprintf(out, "Deleted: %d, Failed: %d\n", res.Deleted, res.Failed)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fault.New(fault.Unknown, "%d of %d workflows could not be deleted", res.Failed, res.Deleted+res.Failed)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&selector, "selector", "l", "", "Delete workflows matching labels in k=v,k2=v2 format")
	f.BoolVar(&all, "all", false, "Delete all workflows in the namespace")
	f.BoolVar(&retainLogs, "retain-logs", false, "Keep the workflow pods and their logs (orphan propagation)")
	f.BoolVarP(&yes, "yes", "y", false, "Do not prompt for confirmation")
	return cmd
}

// confirm asks question on stdout and reports whether the answer was yes.
func confirm(cmd *cobra.Command, question string) bool {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
