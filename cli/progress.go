package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/engine"
	"github.com/grovetools/wizard/pkg/packagekit"
	"github.com/mattn/go-isatty"
)

// InstallJob performs an install and reports the aggregate percentage.
type InstallJob func(ctx context.Context, report packagekit.ProgressFunc) (bool, error)

// IsTerminal reports whether w is a terminal that can host the progress bar.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type progressMsg uint32

type finishedMsg struct{}

type installModel struct {
	title   string
	bar     progress.Model
	percent float64
	done    bool
	aborted bool
}

func newInstallModel(title string) installModel {
	return installModel{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m installModel) Init() tea.Cmd {
	return nil
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.aborted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.bar.Width = width
		}
	case progressMsg:
		m.percent = float64(msg) / 100
	case finishedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m installModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return fmt.Sprintf(" %s\n %s\n", m.title, m.bar.ViewAs(m.percent))
}

// RunInstall runs job while showing its progress on out. Interactive runs
// draw a progress bar and cancel the job on ctrl+c; otherwise every change
// of the percentage is printed on its own line.
func RunInstall(ctx context.Context, out io.Writer, title string, interactive bool, job InstallJob) (bool, error) {
	if !interactive {
		last := -1
		return job(ctx, func(pct uint32) {
			if int(pct) != last {
				last = int(pct)
				fmt.Fprintf(out, "%s %3d%%\n", logging.IconRunning, pct)
			}
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newInstallModel(title), tea.WithOutput(out), tea.WithContext(ctx))

	// Structured stderr output would tear the bar.
	logging.SetGlobalOutput(io.Discard)
	defer logging.SetGlobalOutput(os.Stderr)

	results := engine.Go(ctx, func(ctx context.Context) (bool, error) {
		return job(ctx, func(pct uint32) { p.Send(progressMsg(pct)) })
	})
	relay := make(chan engine.Completion[bool], 1)
	go func() {
		c := <-results
		relay <- c
		p.Send(finishedMsg{})
	}()

	final, runErr := p.Run()
	if m, ok := final.(installModel); ok && m.aborted {
		cancel()
		c := <-relay
		switch {
		case c.Err == nil:
			return c.Value, nil
		case errors.Is(c.Err, errors.ErrCodeCancelled):
			return false, c.Err
		default:
			return false, errors.Cancelled(c.Err)
		}
	}
	if runErr != nil {
		cancel()
	}

	c := <-relay
	return c.Value, c.Err
}
