package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/wizard/cli"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var (
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	logMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show a component's log file",
		Long: `Prints the log file a component writes today, or its most recent one.
JSON lines are formatted for reading; other lines are printed as they are.

Examples:
  # last 50 lines of the CLI log
  wizard logs --lines 50

  # follow the engine log
  wizard logs -f --component engine`,
		Args: cobra.NoArgs,
		RunE: runLogs,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().IntP("lines", "n", -1, "Number of lines to show from the end (default: all)")
	cmd.Flags().String("component", "wizard", "Component whose log to show")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	var logCfg logging.Config
	if cfg, err := cli.LoadConfig(cmd); err == nil {
		_ = cfg.UnmarshalExtension("logging", &logCfg)
	}

	component, _ := cmd.Flags().GetString("component")
	follow, _ := cmd.Flags().GetBool("follow")
	lines, _ := cmd.Flags().GetInt("lines")
	jsonOutput := cli.GetOptions(cmd).JSONOutput

	path := logging.LogFilePath(component, logCfg.File)
	if path == "" || logCfg.File.Disabled {
		return errors.InvalidInput("file logging is disabled")
	}
	if _, err := os.Stat(path); err != nil && !follow {
		// Nothing logged today; show the last day that has output.
		latest, latestErr := logging.LatestLogFile(filepath.Dir(path), component)
		if logCfg.File.Path != "" || latestErr != nil {
			return errors.InvalidInput(fmt.Sprintf("no log file for %s: %s", component, path))
		}
		path = latest
	}

	emit := func(line string) {
		if jsonOutput {
			printLogJSON(cmd.OutOrStdout(), line)
		} else {
			printLogText(cmd.OutOrStdout(), line)
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if !follow {
		return readLog(ctx, path, lines, emit)
	}

	if lines != 0 {
		if _, err := os.Stat(path); err == nil {
			if err := readLog(ctx, path, lines, emit); err != nil {
				return err
			}
		}
	}
	return followLog(ctx, path, emit)
}

// readLog prints the last n lines of path, or all of it when n < 0.
func readLog(ctx context.Context, path string, n int, emit func(string)) error {
	t, err := tail.TailFile(path, tail.Config{
		MustExist: true,
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot open log file").WithDetail("path", path)
	}
	defer t.Cleanup()

	var ring []string
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				for _, l := range ring {
					emit(l)
				}
				return nil
			}
			if line.Err != nil {
				continue
			}
			if n < 0 {
				emit(line.Text)
				continue
			}
			if n == 0 {
				continue
			}
			ring = append(ring, line.Text)
			if len(ring) > n {
				ring = ring[1:]
			}
		}
	}
}

// followLog prints lines appended to path until ctx is done. The file may
// not exist yet and may be rotated.
func followLog(ctx context.Context, path string, emit func(string)) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot follow log file").WithDetail("path", path)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err == nil {
				emit(line.Text)
			}
		}
	}
}

// printLogJSON passes JSON lines through and wraps anything else.
func printLogJSON(out io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		entry = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(entry)
	fmt.Fprintln(out, string(data))
}

// printLogText formats logrus JSON lines; text lines are printed as is.
func printLogText(out io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		fmt.Fprintln(out, line)
		return
	}

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	component, _ := entry["component"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = logErrorStyle
	case "warning":
		levelStyle = logWarnStyle
	case "info":
		levelStyle = logInfoStyle
	default:
		levelStyle = logMutedStyle
	}

	var keys []string
	for k := range entry {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", logMutedStyle.Render(k), entry[k]))
	}

	fmt.Fprintf(out, "%s %s [%s] %s %s\n",
		timeStr,
		levelStyle.Render(strings.ToUpper(level)),
		logMutedStyle.Render(component),
		msg,
		strings.Join(fields, " "),
	)
}
