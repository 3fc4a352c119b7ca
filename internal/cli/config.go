package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/wfctl/internal/config"
)

// newConfigCommand creates the "config" group for inspecting and creating the config file.
func newConfigCommand(opts *Options, env *session) *cobra.Command {
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(env.settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.ConfigPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	// init skips loading the configuration it is about to create.
	initCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }

	return newGroupCommand("config", "Inspect or create the wfctl config file", viewCmd, initCmd)
}

// newGroupCommand builds a cobra.Command that groups subcommands.
func newGroupCommand(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}
	if len(subcommands) > 0 {
		cmd.AddCommand(subcommands...)
	}
	return cmd
}
