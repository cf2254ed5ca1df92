package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/config"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/engine"
	"github.com/spf13/cobra"
)

// engineOptions are applied to every engine the commands build. Tests use
// it to swap the bus and the authorizer.
var engineOptions []engine.Option

func newEngine(cmd *cobra.Command, cfg *config.Config) (*engine.Engine, error) {
	if cfg == nil {
		loaded, err := cli.LoadConfig(cmd)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return engine.New(cfg, engineOptions...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func prettyFor(cmd *cobra.Command) *logging.PrettyLogger {
	return logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
}
