package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/internal/pidfile"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/engine"
	"github.com/grovetools/wizard/pkg/paths"
	"github.com/grovetools/wizard/pkg/watch"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Inspect package files as they land in a directory",
		Long: `Watches directories and prints the package metadata of every matching
file once it has stopped changing. Patterns and the quiet period come from
the watch section of the configuration. Only one watch runs per user.

Examples:
  # inspect downloads as they finish
  wizard watch ~/Downloads

  # include files already present, one JSON object per line
  wizard watch --existing --json ~/Downloads`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().Bool("existing", false, "Inspect matching files already present")
	cmd.Flags().StringSlice("pattern", nil, "File name pattern (repeatable, overrides watch.patterns)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if patterns, _ := cmd.Flags().GetStringSlice("pattern"); len(patterns) > 0 {
		cfg.Watch.Patterns = patterns
	}

	pidPath := filepath.Join(paths.StateDir(), "watch.pid")
	if err := pidfile.Acquire(pidPath); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "another wizard watch is active")
	}
	defer pidfile.Release(pidPath)

	eng, err := newEngine(cmd, cfg)
	if err != nil {
		return err
	}
	w, err := watch.New(args, cfg.Watch.Patterns, cfg.Watch.Debounce())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot watch directories")
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	emit := resultEmitter(cmd)
	if !cli.GetOptions(cmd).JSONOutput {
		logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr()).
			InfoPretty(fmt.Sprintf("Watching %s for %s", strings.Join(args, ", "), strings.Join(cfg.Watch.Patterns, " ")))
	}

	if existing, _ := cmd.Flags().GetBool("existing"); existing {
		files, err := w.Existing()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot list directories")
		}
		for _, r := range eng.QueryAll(ctx, files) {
			emit(r)
		}
	}

	return w.Run(ctx, func(ctx context.Context, path string) {
		details, err := eng.Query(ctx, path)
		emit(engine.QueryResult{Path: path, Details: details, Err: err})
	})
}

// resultEmitter prints one result at a time: a JSON line per file with
// --json, the pretty block otherwise.
func resultEmitter(cmd *cobra.Command) func(engine.QueryResult) {
	out := cmd.OutOrStdout()
	if cli.GetOptions(cmd).JSONOutput {
		return func(r engine.QueryResult) {
			writeJSONLine(out, r)
		}
	}
	pretty := prettyFor(cmd)
	first := true
	return func(r engine.QueryResult) {
		if !first {
			pretty.Blank()
		}
		first = false
		cli.RenderQueryResults(pretty, []engine.QueryResult{r})
	}
}

func writeJSONLine(out io.Writer, r engine.QueryResult) {
	entry := map[string]interface{}{
		"path":    r.Path,
		"details": r.Details,
	}
	if r.Details == nil {
		entry["details"] = []interface{}{}
	}
	if r.Err != nil {
		if wizErr, ok := errors.As(r.Err); ok {
			entry["error"] = wizErr
		} else {
			entry["error"] = r.Err.Error()
		}
	}
	_ = json.NewEncoder(out).Encode(entry)
}
