package cmd

import (
	"github.com/grovetools/wizard/cli"
	"github.com/spf13/cobra"
)

// NewDetailsCmd creates the `details` command.
func NewDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details FILE...",
		Short: "Show the package metadata inside local package files",
		Long: `Asks PackageKit for the metadata of each file without installing it.
Files are inspected in parallel, each on its own bus connection.

Examples:
  # inspect one file
  wizard details ./hello_2.10_amd64.deb

  # inspect several files and print JSON
  wizard details --json ~/Downloads/*.deb`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDetails,
	}
}

func runDetails(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(cmd, nil)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	results := eng.QueryAll(ctx, args)

	if cli.GetOptions(cmd).JSONOutput {
		if err := cli.WriteQueryJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		cli.RenderQueryResults(prettyFor(cmd), results)
	}

	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
