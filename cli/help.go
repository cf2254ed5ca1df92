package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	maxWidth = 72
	minWidth = 40
)

// palette holds the colors used by help and error output.
type palette struct {
	title   lipgloss.Style
	section lipgloss.Style
	command lipgloss.Style
	flag    lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
}

func newPalette() palette {
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("208")),
		command: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		flag:    lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errText: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// terminalWidth returns the stdout width clamped to [minWidth, maxWidth].
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth {
		return maxWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}

// wrapText wraps text to width, keeping existing line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = maxWidth
	}

	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			out = append(out, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// SetStyledHelp installs the styled help renderer on cmd and every
// subcommand added so far. Call it after the command tree is built.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	for _, sub := range cmd.Commands() {
		SetStyledHelp(sub)
	}
}

// PrintError prints a styled error line followed by a usage hint.
func PrintError(cmd *cobra.Command, err error) {
	p := newPalette()
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "%s %s\n", p.errText.Render("Error:"), err.Error())
	fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
}

// splitExamples separates an "Examples:" block from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

func styledHelpFunc(cmd *cobra.Command, _ []string) {
	renderHelp(cmd.OutOrStdout(), cmd, newPalette(), terminalWidth()-2)
}

func renderHelp(w io.Writer, cmd *cobra.Command, p palette, width int) {
	fmt.Fprintln(w, " "+p.title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		for _, line := range strings.Split(wrapText(cmd.Short, width), "\n") {
			fmt.Fprintln(w, " "+line)
		}
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(w)
		for _, line := range strings.Split(wrapText(description, width), "\n") {
			fmt.Fprintln(w, " "+line)
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		fmt.Fprintln(w, "\n "+p.section.Render("USAGE"))
		if cmd.Runnable() {
			fmt.Fprintf(w, " %s\n", cmd.UseLine())
		}
		if cmd.HasAvailableSubCommands() {
			fmt.Fprintf(w, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		longest := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() && len(sub.Name()) > longest {
				longest = len(sub.Name())
			}
		}
		fmt.Fprintln(w, "\n "+p.section.Render("COMMANDS"))
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			padding := strings.Repeat(" ", longest-len(sub.Name()))
			fmt.Fprintf(w, " %s%s  %s\n", p.command.Render(sub.Name()), padding, sub.Short)
		}
	}

	renderFlags(w, "FLAGS", cmd.LocalFlags(), p)
	if !cmd.HasAvailableSubCommands() {
		renderFlags(w, "GLOBAL FLAGS", cmd.InheritedFlags(), p)
	}

	exampleText := cmd.Example
	if exampleText == "" {
		exampleText = examples
	}
	if exampleText != "" {
		fmt.Fprintln(w, "\n "+p.section.Render("EXAMPLES"))
		root := strings.Fields(cmd.CommandPath())[0]
		for _, line := range strings.Split(exampleText, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				fmt.Fprintln(w)
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintln(w, " "+p.muted.Render(trimmed))
			default:
				fmt.Fprintln(w, " "+styleExample(trimmed, root, p))
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

func renderFlags(w io.Writer, title string, flags *pflag.FlagSet, p palette) {
	var visible []*pflag.Flag
	longest := 0
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		visible = append(visible, f)
		if n := len(flagName(f)); n > longest {
			longest = n
		}
	})
	if len(visible) == 0 {
		return
	}

	fmt.Fprintln(w, "\n "+p.section.Render(title))
	for _, f := range visible {
		name := flagName(f)
		padding := strings.Repeat(" ", longest-len(name))
		usage, choices := splitChoices(f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" && f.DefValue != "0" {
			usage += p.muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
		}
		fmt.Fprintf(w, " %s%s  %s\n", p.flag.Render(name), padding, usage)
		for _, choice := range choices {
			fmt.Fprintf(w, " %s  %s\n", strings.Repeat(" ", longest), p.muted.Render("• "+choice))
		}
	}
}

// flagName renders "-f, --flag" or "    --flag".
func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return fmt.Sprintf("    --%s", f.Name)
}

// splitChoices pulls bullet lines ("• x" or "- x") out of a multi-line
// flag usage.
func splitChoices(usage string) (string, []string) {
	lines := strings.Split(usage, "\n")
	if len(lines) == 1 {
		return usage, nil
	}
	var base string
	var choices []string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "• "):
			choices = append(choices, strings.TrimPrefix(trimmed, "• "))
		case strings.HasPrefix(trimmed, "- "):
			choices = append(choices, strings.TrimPrefix(trimmed, "- "))
		case i == 0:
			base = trimmed
		}
	}
	return base, choices
}

func styleExample(line, root string, p palette) string {
	parts := strings.Fields(line)
	for i, part := range parts {
		switch {
		case i == 0 && part == root:
			parts[i] = p.command.Render(part)
		case strings.HasPrefix(part, "-"):
			parts[i] = p.flag.Render(part)
		}
	}
	return "  " + strings.Join(parts, " ")
}
