package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/params"
	"github.com/codex-k8s/wfctl/internal/workflow"
)

// newListCommand creates the "list" subcommand that shows workflows in the namespace.
func newListCommand(env *session) *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			labels, err := parseSelector(selector)
			if err != nil {
				return err
			}
			instances, err := env.tracker().List(cmd.Context(), labels)
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No workflows found in namespace %s\n", env.settings.Namespace)
				return nil
			}
			return printInstances(cmd.OutOrStdout(), instances, time.Now())
		},
	}
	cmd.Flags().StringVarP(&selector, "selector", "l", "", "Label selector in k=v,k2=v2 format")
	return cmd
}

// newStatusCommand creates the "status" subcommand that shows a workflow and its steps.
func newStatusCommand(env *session) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show workflow status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := env.tracker().Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printStatus(cmd.OutOrStdout(), inst, time.Now()); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchInstance(cmd, env, inst.Name, inst)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Watch status changes until the workflow finishes")
	return cmd
}

// watchInstance prints a line per observed change until the workflow reaches
// a terminal phase or the command context ends. Transient fetch errors are
// logged and polling continues. A failed workflow is an error.
func watchInstance(cmd *cobra.Command, env *session, name string, from *workflow.Instance) error {
	out := cmd.OutOrStdout()
	last := from
	polls := env.tracker().Poll(cmd.Context(), name, workflow.PollOptions{
		Interval: env.settings.PollInterval,
		From:     from,
	})
	for inst, err := range polls {
		if err != nil {
			if !fault.Retryable(err) {
				return err
			}
			LoggerFromContext(cmd.Context()).Warn("status fetch failed, retrying", "workflow", name, "error", err)
			continue
		}
		if last == nil || inst.Phase != last.Phase || inst.Progress != last.Progress {
			_, _ = fmt.Fprintf(out, "%s  %s  %s  %s\n", time.Now().Format(time.TimeOnly), inst.Name, inst.Phase, inst.Progress)
		}
		last = inst
	}
	if last == nil || !last.Phase.IsTerminal() {
		if cmd.Context().Err() != nil {
			_, _ = fmt.Fprintln(out, "Stopped watching")
		}
		return nil
	}
	if last != from {
		_, _ = fmt.Fprintln(out)
		if err := printStatus(out, last, time.Now()); err != nil {
			return err
		}
	}
	if last.Phase != workflow.PhaseSucceeded {
		return fmt.Errorf("workflow %s finished with phase %s", last.Name, last.Phase)
	}
	return nil
}

// parseSelector turns "k=v,k2=v2" into labels; malformed entries are an error.
func parseSelector(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	set, skipped := params.ParseAssignments(s)
	if len(skipped) > 0 {
		return nil, fmt.Errorf("invalid label selector entries: %v", skipped)
	}
	labels := make(map[string]string, set.Len())
	for k, v := range set.All() {
		labels[k] = v
	}
	return labels, nil
}
