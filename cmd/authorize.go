package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/polkit"
	"github.com/spf13/cobra"
)

// NewAuthorizeCmd creates the `authorize` command.
func NewAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize [ACTION]",
		Short: "Check whether this process may perform a polkit action",
		Long: `Runs the polkit check used before installs. Without ACTION the action of
the configured install strategy is checked. Exits with status 2 when the
action is denied.

Examples:
  wizard authorize
  wizard authorize org.debian.apt.install-file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd, nil)
			if err != nil {
				return err
			}
			action := eng.Config().Install.Action()
			if len(args) == 1 {
				action = args[0]
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			result, err := eng.Authorize(ctx, action)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]interface{}{
					"action":     action,
					"authorized": result == polkit.Authorized,
				}); err != nil {
					return err
				}
			} else if result == polkit.Authorized {
				prettyFor(cmd).Success(fmt.Sprintf("Authorized: %s", action))
			}

			if result != polkit.Authorized {
				return errors.Denied(action)
			}
			return nil
		},
	}
}
