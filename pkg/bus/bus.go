// Package bus opens message-bus connections and hands out the narrow
// object and signal-feed views the rest of wizard works with.
package bus

import (
	"context"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
)

// Scope selects the bus a connection is opened on.
type Scope int

const (
	// SystemScope is the machine-wide bus (PackageKit, polkit, aptd).
	SystemScope Scope = iota
	// SessionScope is the per-login bus (the PackageKit session helper).
	SessionScope
)

func (s Scope) String() string {
	switch s {
	case SessionScope:
		return "session"
	default:
		return "system"
	}
}

// Object is the subset of dbus.BusObject wizard calls. *dbus.Object
// satisfies it.
type Object interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
	Path() dbus.ObjectPath
	Destination() string
}

// Feed delivers the signals matched by one subscription. Signals is closed
// when the underlying connection goes away.
type Feed interface {
	Signals() <-chan *dbus.Signal
	Close()
}

// Conn is an open bus connection.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) Object
	// Subscribe starts delivering signals emitted on path for iface.
	Subscribe(path dbus.ObjectPath, iface string) (Feed, error)
	Close() error
}

// Dialer opens a connection on a scope. Connect is the production dialer;
// tests inject their own.
type Dialer func(ctx context.Context, scope Scope) (Conn, error)

var _ Dialer = Connect

// Connect opens a private connection on the requested bus. The caller owns
// it and must Close it.
func Connect(ctx context.Context, scope Scope) (Conn, error) {
	logger := logging.NewLogger("bus")

	var (
		c   *dbus.Conn
		err error
	)
	switch scope {
	case SessionScope:
		c, err = dbus.ConnectSessionBus(dbus.WithContext(ctx))
	default:
		c, err = dbus.ConnectSystemBus(dbus.WithContext(ctx))
	}
	if err != nil {
		return nil, errors.BusUnavailable(scope.String(), err)
	}

	logger.WithField("scope", scope.String()).Debug("Connected to bus")
	return &conn{c: c, scope: scope}, nil
}

type conn struct {
	c     *dbus.Conn
	scope Scope
}

func (c *conn) Object(dest string, path dbus.ObjectPath) Object {
	return c.c.Object(dest, path)
}

func (c *conn) Subscribe(path dbus.ObjectPath, iface string) (Feed, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
	}
	if err := c.c.AddMatchSignal(opts...); err != nil {
		return nil, errors.TransactionCall("AddMatch", err).WithDetail("path", string(path))
	}

	ch := make(chan *dbus.Signal, 64)
	c.c.Signal(ch)
	return &feed{conn: c.c, ch: ch, opts: opts}, nil
}

func (c *conn) Close() error {
	return c.c.Close()
}

type feed struct {
	conn *dbus.Conn
	ch   chan *dbus.Signal
	opts []dbus.MatchOption
}

func (f *feed) Signals() <-chan *dbus.Signal {
	return f.ch
}

// Close stops delivery. The channel itself is left for the connection to
// close.
func (f *feed) Close() {
	f.conn.RemoveSignal(f.ch)
	_ = f.conn.RemoveMatchSignal(f.opts...)
}

// Member returns the member part of a fully qualified signal name,
// "org.freedesktop.PackageKit.Transaction.Finished" -> "Finished".
func Member(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ErrorName returns the D-Bus error name carried by err, or "".
func ErrorName(err error) string {
	switch e := err.(type) {
	case dbus.Error:
		return e.Name
	case *dbus.Error:
		if e != nil {
			return e.Name
		}
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok && wrapped.Unwrap() != nil {
		return ErrorName(wrapped.Unwrap())
	}
	return ""
}
