// File: internal/cli/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command tree of the hioload-dispatch driver.

package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dispatch/control"
)

// state is shared by every subcommand of one root.
type state struct {
	out        io.Writer
	configPath string
	loader     *control.Loader
}

// NewRootCommand builds the CLI writing reports to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	st := &state{out: out}
	root := &cobra.Command{
		Use:           "hioload-dispatch",
		Short:         "CPU-affinity-aware task dispatch driver",
		Long:          "Runs synthetic workloads on pinned contexts that lend idle workers to each other.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			st.loader = control.NewLoader(st.configPath)
			if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
				return st.loader.Viper().BindPFlag("log.level", f)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newRunCommand(st))
	root.AddCommand(newConfigCommand(st))
	return root
}

// newConfigCommand prints the effective configuration.
func newConfigCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.loader.Load()
			if err != nil {
				return err
			}
			return writeJSON(st.out, cfg)
		},
	}
}
