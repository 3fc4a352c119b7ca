package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/wfctl/internal/logs"
)

// newLogsCommand creates the "logs" subcommand that prints or streams step logs.
func newLogsCommand(env *session) *cobra.Command {
	var opts logs.StreamOptions
	cmd := &cobra.Command{
		Use:   "logs NAME",
		Short: "Print workflow step logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := env.tracker().Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			agg := env.aggregator()
			if !opts.Follow {
				_, err := fmt.Fprintln(out, agg.Fetch(cmd.Context(), inst, opts.Step))
				return err
			}
			for line := range agg.Stream(cmd.Context(), inst, opts) {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Step, "step", "s", "", "Only show logs of this step")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Stream logs of running steps")
	return cmd
}
