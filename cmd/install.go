package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/packagekit"
	"github.com/spf13/cobra"
)

type installReport struct {
	Files     []string `json:"files"`
	Strategy  string   `json:"strategy"`
	Installed bool     `json:"installed"`
}

// NewInstallCmd creates the `install` command.
func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install FILE...",
		Short: "Install local package files",
		Long: `Installs local package files. The polkit check runs first unless it is
disabled; a refusal exits with status 2 and installs nothing.

Examples:
  # install with the configured strategy
  wizard install ./hello_2.10_amd64.deb

  # hand the file to aptdaemon
  wizard install --strategy aptd ./hello_2.10_amd64.deb

  # only allow signed packages, no progress bar
  wizard install --flag only-trusted --no-progress ./hello.rpm`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInstall,
	}

	cmd.Flags().String("strategy", "", "Install strategy:\n• transaction - PackageKit transaction with progress\n• modify - session PackageKit helper\n• aptd - aptdaemon")
	cmd.Flags().StringSlice("flag", nil, "PackageKit transaction flag (repeatable)")
	cmd.Flags().Bool("no-authorize", false, "Skip the polkit check")
	cmd.Flags().Bool("no-progress", false, "Print progress lines instead of a progress bar")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	if strategy, _ := cmd.Flags().GetString("strategy"); strategy != "" {
		cfg.Install.Strategy = strategy
	}
	if flags, _ := cmd.Flags().GetStringSlice("flag"); len(flags) > 0 {
		cfg.Install.Flags = flags
	}
	if skip, _ := cmd.Flags().GetBool("no-authorize"); skip {
		authorize := false
		cfg.Install.Authorize = &authorize
	}
	if err := cfg.ValidateSemantics(); err != nil {
		return err
	}

	eng, err := newEngine(cmd, cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var progressOut io.Writer = cmd.ErrOrStderr()
	if opts.JSONOutput {
		progressOut = io.Discard
	}
	interactive := !opts.JSONOutput && !noProgress && cli.IsTerminal(os.Stderr)

	title := fmt.Sprintf("Installing %d package file(s)", len(args))
	installed, err := cli.RunInstall(ctx, progressOut, title, interactive,
		func(ctx context.Context, report packagekit.ProgressFunc) (bool, error) {
			return eng.Install(ctx, args, report)
		})
	if err != nil {
		return err
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(installReport{Files: args, Strategy: cfg.Install.Strategy, Installed: installed})
	}

	ulog := logging.NewUnifiedLogger("wizard.install").WithOutput(cmd.OutOrStdout())
	if installed {
		ulog.Success(fmt.Sprintf("Installed %d package file(s)", len(args))).
			Field("files", args).
			Field("strategy", cfg.Install.Strategy).
			Log()
	} else {
		ulog.Warn("The package manager did not complete the install").
			Field("files", args).
			Log()
	}
	return nil
}
