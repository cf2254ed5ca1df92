package cmd

import (
	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/pkg/profiling"
	"github.com/grovetools/wizard/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the wizard command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"wizard",
		"Inspect and install local package files through PackageKit",
	)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(rootCmd)
	preRun := rootCmd.PersistentPreRun
	rootCmd.PersistentPreRun = nil
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		preRun(cmd, args)
		return profiler.PreRun(cmd, args)
	}
	rootCmd.PersistentPostRun = profiler.PostRun

	rootCmd.AddCommand(NewDetailsCmd())
	rootCmd.AddCommand(NewInstallCmd())
	rootCmd.AddCommand(NewAuthorizeCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewLogsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("wizard"))
	cli.SetStyledHelp(rootCmd)

	return rootCmd
}
