// Package helper installs package files by handing them to a privileged
// helper service instead of running a PackageKit transaction.
package helper

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/sirupsen/logrus"
)

// Installer installs local package files. The bool is true when the helper
// accepted the files.
type Installer interface {
	Install(ctx context.Context, files []string) (bool, error)
}

const (
	modifyName      = "org.freedesktop.PackageKit"
	modifyPath      = dbus.ObjectPath("/org/freedesktop/PackageKit")
	modifyInterface = "org.freedesktop.PackageKit.Modify"

	aptName                 = "org.debian.apt"
	aptPath                 = dbus.ObjectPath("/org/debian/apt")
	aptInterface            = "org.debian.apt"
	aptTransactionInterface = "org.debian.apt.transaction"
)

// Error names that mean the user or policy refused the install.
var deniedErrors = map[string]bool{
	modifyInterface + ".Cancelled":                  true,
	modifyInterface + ".Forbidden":                  true,
	"org.debian.apt.errors.NotAuthorizedError":      true,
	"org.freedesktop.PolicyKit1.Error.Cancelled":    true,
	"org.freedesktop.PolicyKit.Error.NotAuthorized": true,
}

// DefaultInteraction confirms missing dependencies and hides the
// finished dialog.
const DefaultInteraction = "show-confirm-search,hide-finished"

// Modify hands files to the session PackageKit helper. It has no
// completion signal; success means the call returned without error.
type Modify struct {
	dial        bus.Dialer
	windowID    uint32
	interaction string
	logger      *logrus.Entry
}

// NewModify returns the session helper strategy. An empty interaction uses
// DefaultInteraction.
func NewModify(dial bus.Dialer, windowID uint32, interaction string) *Modify {
	if interaction == "" {
		interaction = DefaultInteraction
	}
	return &Modify{
		dial:        dial,
		windowID:    windowID,
		interaction: interaction,
		logger:      logging.NewLogger("helper"),
	}
}

// Install calls InstallPackageFiles on the session bus.
func (m *Modify) Install(ctx context.Context, files []string) (bool, error) {
	conn, err := m.dial(ctx, bus.SessionScope)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	m.logger.WithFields(logrus.Fields{
		"files":       files,
		"interaction": m.interaction,
	}).Info("Handing files to session helper")

	obj := conn.Object(modifyName, modifyPath)
	call := obj.CallWithContext(ctx, modifyInterface+".InstallPackageFiles", 0, m.windowID, files, m.interaction)
	if err := callError("InstallPackageFiles", call.Err); err != nil {
		return false, err
	}
	return true, nil
}

// Aptd installs files through aptdaemon, one transaction per file.
type Aptd struct {
	dial   bus.Dialer
	logger *logrus.Entry
}

// NewAptd returns the aptdaemon strategy.
func NewAptd(dial bus.Dialer) *Aptd {
	return &Aptd{dial: dial, logger: logging.NewLogger("helper")}
}

// Install creates and runs an aptdaemon transaction for each file. It stops
// at the first failure.
func (a *Aptd) Install(ctx context.Context, files []string) (bool, error) {
	conn, err := a.dial(ctx, bus.SystemScope)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	daemon := conn.Object(aptName, aptPath)
	for _, file := range files {
		var txPath string
		call := daemon.CallWithContext(ctx, aptInterface+".InstallFile", 0, file, false)
		if err := callError("InstallFile", call.Err); err != nil {
			return false, err
		}
		if err := call.Store(&txPath); err != nil {
			return false, errors.TransactionCall("InstallFile", err).WithDetail("file", file)
		}
		if !dbus.ObjectPath(txPath).IsValid() {
			return false, errors.New(errors.ErrCodeTransactionCall, "aptd returned an invalid transaction path").
				WithDetail("path", txPath)
		}

		a.logger.WithFields(logrus.Fields{"file": file, "transaction": txPath}).Info("Running aptd transaction")
		tx := conn.Object(aptName, dbus.ObjectPath(txPath))
		if err := callError("Run", tx.CallWithContext(ctx, aptTransactionInterface+".Run", 0).Err); err != nil {
			return false, err
		}
	}
	return true, nil
}

func callError(method string, err error) error {
	if err == nil {
		return nil
	}
	if deniedErrors[bus.ErrorName(err)] {
		return errors.Denied(method)
	}
	return errors.TransactionCall(method, err)
}
