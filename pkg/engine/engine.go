// Package engine is the caller-facing surface: inspect package files,
// install them and check authorization, each over its own bus connection.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/wizard/config"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/grovetools/wizard/pkg/helper"
	"github.com/grovetools/wizard/pkg/packagekit"
	"github.com/grovetools/wizard/pkg/polkit"
	"github.com/grovetools/wizard/pkg/profiling"
	"github.com/grovetools/wizard/util/pathutil"
	"github.com/sirupsen/logrus"
)

// Authorizer checks a polkit action. *polkit.Gate satisfies it.
type Authorizer interface {
	Check(ctx context.Context, actionID string) (polkit.Result, error)
}

// Engine runs queries and installs with one configuration.
type Engine struct {
	cfg        *config.Config
	dial       bus.Dialer
	authorizer Authorizer
	installer  helper.Installer
	flags      packagekit.TransactionFlag
	logger     *logrus.Entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialer replaces bus.Connect.
func WithDialer(d bus.Dialer) Option {
	return func(e *Engine) { e.dial = d }
}

// WithAuthorizer replaces the polkit gate.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) { e.authorizer = a }
}

// WithInstaller replaces the helper used by the modify and aptd strategies.
func WithInstaller(i helper.Installer) Option {
	return func(e *Engine) { e.installer = i }
}

// New builds an engine. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	flags, err := packagekit.ParseTransactionFlags(cfg.Install.Flags)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid install.flags")
	}

	e := &Engine{
		cfg:    cfg,
		dial:   bus.Connect,
		flags:  flags,
		logger: logging.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.authorizer == nil {
		e.authorizer = polkit.NewGate(e.dial)
	}
	if e.installer == nil {
		switch cfg.Install.Strategy {
		case config.StrategyModify:
			e.installer = helper.NewModify(e.dial, cfg.Install.WindowID, cfg.Install.Interaction)
		case config.StrategyAptd:
			e.installer = helper.NewAptd(e.dial)
		}
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Query returns the details PackageKit reports for one local file. An empty
// list means the file carried no usable metadata.
func (e *Engine) Query(ctx context.Context, path string) ([]packagekit.PackageDetail, error) {
	defer profiling.Start("query " + filepath.Base(path)).Stop()

	files, err := resolveFiles([]string{path})
	if err != nil {
		return nil, err
	}

	timeout, _ := e.cfg.Query.TimeoutDuration()
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	out, err := e.runSession(ctx, packagekit.Request{
		Operation: packagekit.OperationQuery,
		Files:     files,
		Hints:     e.cfg.Install.Hints,
	}, nil)
	if err != nil {
		return nil, err
	}
	return out.Details, nil
}

// Install installs local files with the configured strategy. progress
// receives aggregate percentages when the transaction strategy is used.
// A refused authorization returns false and a PERMISSION_DENIED error.
func (e *Engine) Install(ctx context.Context, paths []string, progress packagekit.ProgressFunc) (bool, error) {
	if len(paths) == 0 {
		return false, errors.InvalidInput("no files to install")
	}
	defer profiling.Start("install").Stop()

	files, err := resolveFiles(paths)
	if err != nil {
		return false, err
	}

	timeout, _ := e.cfg.Install.TimeoutDuration()
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	logger := e.logger.WithFields(logrus.Fields{
		"strategy": e.cfg.Install.Strategy,
		"files":    files,
	})

	if e.cfg.Install.AuthorizeEnabled() {
		action := e.cfg.Install.Action()
		result, err := e.Authorize(ctx, action)
		if err != nil {
			return false, err
		}
		if result == polkit.Denied {
			logger.WithField("action", action).Warn("Install not permitted")
			return false, errors.Denied(action)
		}
	}

	logger.Info("Installing")
	switch e.cfg.Install.Strategy {
	case config.StrategyModify, config.StrategyAptd:
		if e.installer == nil {
			return false, errors.New(errors.ErrCodeInternal, "no installer for strategy").
				WithDetail("strategy", e.cfg.Install.Strategy)
		}
		return e.installer.Install(ctx, files)
	default:
		out, err := e.runSession(ctx, packagekit.Request{
			Operation: packagekit.OperationInstall,
			Files:     files,
			Flags:     e.flags,
			Hints:     e.cfg.Install.Hints,
		}, progress)
		if err != nil {
			return false, err
		}
		return out.Installed, nil
	}
}

// Authorize checks a polkit action for this process.
func (e *Engine) Authorize(ctx context.Context, actionID string) (polkit.Result, error) {
	defer profiling.Start("authorize " + actionID).Stop()
	return e.authorizer.Check(ctx, actionID)
}

// runSession opens a system bus connection for one transaction and closes
// it when the session ends.
func (e *Engine) runSession(ctx context.Context, req packagekit.Request, progress packagekit.ProgressFunc) (*packagekit.Outcome, error) {
	conn, err := e.dial(ctx, bus.SystemScope)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tx, err := packagekit.NewClient(conn).CreateTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return packagekit.NewSession(tx).Run(ctx, req, progress)
}

// resolveFiles expands paths and checks they name regular files.
func resolveFiles(paths []string) ([]string, error) {
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := pathutil.Expand(p)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid path %q", p)).WithDetail("path", p)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("cannot read %s", abs)).WithDetail("path", abs)
		}
		if !info.Mode().IsRegular() {
			return nil, errors.InvalidInput(fmt.Sprintf("%s is not a regular file", abs)).WithDetail("path", abs)
		}
		files = append(files, abs)
	}
	return files, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
