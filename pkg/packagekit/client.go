// Package packagekit drives PackageKit transactions over the system bus:
// it creates transactions, decodes their signals and folds a signal stream
// into one outcome per session.
package packagekit

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
)

const (
	ServiceName          = "org.freedesktop.PackageKit"
	ServicePath          = dbus.ObjectPath("/org/freedesktop/PackageKit")
	TransactionInterface = "org.freedesktop.PackageKit.Transaction"
)

// Client creates transactions on one connection.
type Client struct {
	conn bus.Conn
}

// NewClient returns a client bound to conn. The caller keeps ownership of
// the connection.
func NewClient(conn bus.Conn) *Client {
	return &Client{conn: conn}
}

// CreateTransaction asks PackageKit for a new transaction and binds it on
// the same connection and destination.
func (c *Client) CreateTransaction(ctx context.Context) (*Transaction, error) {
	obj := c.conn.Object(ServiceName, ServicePath)

	var path dbus.ObjectPath
	if err := obj.CallWithContext(ctx, ServiceName+".CreateTransaction", 0).Store(&path); err != nil {
		return nil, errors.TransactionCall("CreateTransaction", err)
	}
	if !path.IsValid() {
		return nil, errors.TransactionCall("CreateTransaction",
			fmt.Errorf("invalid transaction path %q", path))
	}

	log.WithField("path", string(path)).Debug("Created transaction")
	return &Transaction{
		conn: c.conn,
		obj:  c.conn.Object(obj.Destination(), path),
	}, nil
}
