package packagekit

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
)

// TransactionFlag is the PackageKit transaction flag bitfield.
type TransactionFlag uint64

const (
	FlagNone TransactionFlag = 1 << iota
	FlagOnlyTrusted
	FlagSimulate
	FlagOnlyDownload
	FlagAllowReinstall
	FlagJustReinstall
	FlagAllowDowngrade
)

var flagNames = []struct {
	flag TransactionFlag
	name string
}{
	{FlagNone, "none"},
	{FlagOnlyTrusted, "only-trusted"},
	{FlagSimulate, "simulate"},
	{FlagOnlyDownload, "only-download"},
	{FlagAllowReinstall, "allow-reinstall"},
	{FlagJustReinstall, "just-reinstall"},
	{FlagAllowDowngrade, "allow-downgrade"},
}

func (f TransactionFlag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("flags(%d)", uint64(f))
	}
	return strings.Join(names, ",")
}

// ParseTransactionFlags combines flag names such as "only-trusted". An
// empty list is FlagNone.
func ParseTransactionFlags(names []string) (TransactionFlag, error) {
	if len(names) == 0 {
		return FlagNone, nil
	}
	var flags TransactionFlag
	for _, name := range names {
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(strings.TrimSpace(name), fn.name) {
				flags |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.InvalidInput(fmt.Sprintf("unknown transaction flag %q", name))
		}
	}
	return flags, nil
}

// Transaction is one PackageKit transaction object. It is used by a single
// session and dropped after its terminal signal.
type Transaction struct {
	conn bus.Conn
	obj  bus.Object
}

// Path returns the transaction's object path.
func (t *Transaction) Path() dbus.ObjectPath {
	return t.obj.Path()
}

// Subscribe starts delivery of the transaction's signals.
func (t *Transaction) Subscribe() (bus.Feed, error) {
	return t.conn.Subscribe(t.obj.Path(), TransactionInterface)
}

// SetHints sends session hints such as "interactive=true".
func (t *Transaction) SetHints(ctx context.Context, hints ...string) error {
	return t.call(ctx, "SetHints", hints)
}

// GetDetailsLocal requests Details signals for local package files.
func (t *Transaction) GetDetailsLocal(ctx context.Context, files []string) error {
	return t.call(ctx, "GetDetailsLocal", files)
}

// InstallFiles requests installation of local package files.
func (t *Transaction) InstallFiles(ctx context.Context, flags TransactionFlag, files []string) error {
	return t.call(ctx, "InstallFiles", uint64(flags), files)
}

// Percentage reads the live aggregate percentage. PackageKit reports 101
// when it has no estimate.
func (t *Transaction) Percentage() (uint32, error) {
	v, err := t.obj.GetProperty(TransactionInterface + ".Percentage")
	if err != nil {
		return 0, err
	}
	pct, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("percentage has type %T", v.Value())
	}
	return pct, nil
}

func (t *Transaction) call(ctx context.Context, method string, args ...interface{}) error {
	if err := t.obj.CallWithContext(ctx, TransactionInterface+"."+method, 0, args...).Err; err != nil {
		return errors.TransactionCall(method, err).WithDetail("path", string(t.obj.Path()))
	}
	return nil
}
