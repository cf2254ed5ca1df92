package main

import (
	"os"

	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/cmd"
	"github.com/grovetools/wizard/errors"
)

func main() {
	c, err := cmd.NewRootCmd().ExecuteC()
	if err == nil {
		return
	}

	opts := cli.GetOptions(c)
	// Usage mistakes from cobra get the help hint.
	if _, ok := errors.As(err); !ok && !opts.JSONOutput {
		cli.PrintError(c, err)
		os.Exit(cli.ExitFailure)
	}
	os.Exit(cli.NewErrorHandler(opts.Verbose, opts.JSONOutput).Handle(err))
}
