package logging

import (
	"fmt"
	"io"
	"regexp"

	"github.com/sirupsen/logrus"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// UnifiedLogger writes each message twice: styled for the user and as a
// structured entry for the log file.
type UnifiedLogger struct {
	component  string
	pretty     *PrettyLogger
	structured *logrus.Entry
}

// NewUnifiedLogger creates a unified logger for a component.
func NewUnifiedLogger(component string) *UnifiedLogger {
	return &UnifiedLogger{
		component:  component,
		pretty:     NewPrettyLogger(),
		structured: NewLogger(component),
	}
}

// WithOutput sends the pretty half to w.
func (u *UnifiedLogger) WithOutput(w io.Writer) *UnifiedLogger {
	u.pretty.WithWriter(w)
	return u
}

func (u *UnifiedLogger) entry(level logrus.Level, icon, status, msg string) *LogEntry {
	e := &LogEntry{logger: u, msg: msg, level: level, icon: icon, fields: logrus.Fields{}}
	if status != "" {
		e.fields["status"] = status
	}
	return e
}

func (u *UnifiedLogger) Debug(msg string) *LogEntry {
	return u.entry(logrus.DebugLevel, "", "", msg)
}

func (u *UnifiedLogger) Info(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, "", "", msg)
}

func (u *UnifiedLogger) Warn(msg string) *LogEntry {
	return u.entry(logrus.WarnLevel, IconWarning, "", msg)
}

func (u *UnifiedLogger) Error(msg string) *LogEntry {
	return u.entry(logrus.ErrorLevel, IconError, "", msg)
}

// Success is logged at INFO with status=success.
func (u *UnifiedLogger) Success(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, IconSuccess, "success", msg)
}

// Progress is logged at INFO with status=progress.
func (u *UnifiedLogger) Progress(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, IconRunning, "progress", msg)
}

// LogEntry collects fields until Log is called.
type LogEntry struct {
	logger     *UnifiedLogger
	msg        string
	level      logrus.Level
	fields     logrus.Fields
	icon       string
	structOnly bool
	err        error
}

// Field adds a structured field. Fields are not shown in pretty output.
func (e *LogEntry) Field(key string, value interface{}) *LogEntry {
	e.fields[key] = value
	return e
}

// Err attaches an error as the "error" field and to the pretty line.
func (e *LogEntry) Err(err error) *LogEntry {
	if err != nil {
		e.err = err
		e.fields["error"] = err.Error()
	}
	return e
}

// StructuredOnly skips pretty output.
func (e *LogEntry) StructuredOnly() *LogEntry {
	e.structOnly = true
	return e
}

// Log writes the entry.
func (e *LogEntry) Log() {
	pretty := e.render()
	if !e.structOnly && (e.level != logrus.DebugLevel || e.logger.structured.Logger.IsLevelEnabled(logrus.DebugLevel)) {
		fmt.Fprintln(e.logger.pretty.writer, pretty)
	}
	e.fields["pretty_text"] = ansiRegex.ReplaceAllString(pretty, "")
	e.logger.structured.WithFields(e.fields).Log(e.level, e.msg)
}

func (e *LogEntry) render() string {
	styles := e.logger.pretty.styles
	icon := e.icon
	if icon == "" {
		icon = IconBullet
	}
	text := icon + " " + e.msg
	if e.err != nil {
		text += ": " + e.err.Error()
	}

	switch {
	case e.level == logrus.WarnLevel:
		return styles.Warning.Render(text)
	case e.level == logrus.ErrorLevel:
		return styles.Error.Render(text)
	case e.level == logrus.DebugLevel:
		return styles.Key.Render(text)
	case e.icon == IconSuccess:
		return styles.Success.Render(text)
	case e.icon == IconRunning:
		return styles.Info.Render(text)
	}
	return text
}

// Component returns the component name for this logger.
func (u *UnifiedLogger) Component() string {
	return u.component
}

// Structured returns the underlying logrus entry.
func (u *UnifiedLogger) Structured() *logrus.Entry {
	return u.structured
}

// Pretty returns the underlying PrettyLogger.
func (u *UnifiedLogger) Pretty() *PrettyLogger {
	return u.pretty
}
