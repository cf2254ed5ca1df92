package packagekit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/grovetools/wizard/pkg/bus/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const txPath = dbus.ObjectPath("/org/freedesktop/PackageKit/Transactions/1")

// harness is a fake PackageKit: CreateTransaction returns txPath and the
// transaction's signals come from feed.
type harness struct {
	conn *mocks.MockConn
	root *mocks.MockObject
	tx   *mocks.MockObject
	feed *mocks.MockFeed

	live []uint32
}

func newHarness(signals ...*dbus.Signal) *harness {
	h := &harness{feed: mocks.NewFeed(signals...)}
	h.root = &mocks.MockObject{
		Dest:       ServiceName,
		ObjectPath: ServicePath,
		CallFunc: func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
			return mocks.Reply(txPath)
		},
	}
	h.tx = &mocks.MockObject{
		Dest:       ServiceName,
		ObjectPath: txPath,
		GetPropertyFunc: func(name string) (dbus.Variant, error) {
			if name != TransactionInterface+".Percentage" || len(h.live) == 0 {
				return dbus.Variant{}, fmt.Errorf("no such property")
			}
			v := h.live[0]
			h.live = h.live[1:]
			return dbus.MakeVariant(v), nil
		},
	}
	h.conn = &mocks.MockConn{
		ObjectFunc: func(dest string, path dbus.ObjectPath) bus.Object {
			if path == txPath {
				return h.tx
			}
			return h.root
		},
		SubscribeFunc: func(path dbus.ObjectPath, iface string) (bus.Feed, error) {
			return h.feed, nil
		},
	}
	return h
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	tx, err := NewClient(h.conn).CreateTransaction(context.Background())
	require.NoError(t, err)
	return NewSession(tx)
}

func sig(member string, body ...interface{}) *dbus.Signal {
	return mocks.Signal(txPath, TransactionInterface, member, body...)
}

func details(id, summary string, size uint64) *dbus.Signal {
	return sig("Details", map[string]dbus.Variant{
		"package-id": dbus.MakeVariant(id),
		"summary":    dbus.MakeVariant(summary),
		"size":       dbus.MakeVariant(size),
	})
}

func progress(pct uint32) *dbus.Signal {
	return sig("ItemProgress", "pkg;1.0;amd64", uint32(9), pct)
}

func finished() *dbus.Signal {
	return sig("Finished", uint32(ExitSuccess), uint32(10))
}

func TestCreateTransaction(t *testing.T) {
	h := newHarness()
	tx, err := NewClient(h.conn).CreateTransaction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txPath, tx.Path())
	assert.Equal(t, []string{ServiceName + ".CreateTransaction"}, h.root.Methods())

	t.Run("service absent", func(t *testing.T) {
		h := newHarness()
		h.root.CallFunc = func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
			return mocks.Failure(dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"})
		}
		_, err := NewClient(h.conn).CreateTransaction(context.Background())
		assert.True(t, errors.Is(err, errors.ErrCodeTransactionCall))
		assert.Equal(t, "org.freedesktop.DBus.Error.ServiceUnknown", bus.ErrorName(err))
	})

	t.Run("invalid path", func(t *testing.T) {
		h := newHarness()
		h.root.CallFunc = func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
			return mocks.Reply(dbus.ObjectPath("not a path"))
		}
		_, err := NewClient(h.conn).CreateTransaction(context.Background())
		assert.True(t, errors.Is(err, errors.ErrCodeTransactionCall))
	})
}

func TestQuerySession(t *testing.T) {
	h := newHarness(details("pkg;1.0;amd64", "A tool", 1_000_000), finished())
	s := h.session(t)
	assert.Equal(t, StateCreated, s.State())
	assert.NotEmpty(t, s.ID())

	out, err := s.Run(context.Background(), Request{Operation: OperationQuery, Files: []string{"/tmp/pkg.deb"}}, nil)
	require.NoError(t, err)

	require.Len(t, out.Details, 1)
	d := out.Details[0]
	assert.Equal(t, "pkg;1.0;amd64", d.ID)
	assert.Equal(t, "pkg", d.Name)
	assert.Equal(t, "1.0", d.Version)
	assert.Equal(t, "amd64", d.Architecture)
	assert.Equal(t, "A tool", d.Summary)
	assert.Equal(t, "1 MB", d.Size)
	assert.Equal(t, StateSucceeded, s.State())
	assert.True(t, h.feed.Detached())

	calls := h.tx.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, TransactionInterface+".SetHints", calls[0].Method)
	assert.Equal(t, []interface{}{DefaultHints}, calls[0].Args)
	assert.Equal(t, TransactionInterface+".GetDetailsLocal", calls[1].Method)
	assert.Equal(t, []interface{}{[]string{"/tmp/pkg.deb"}}, calls[1].Args)
}

func TestQueryKeepsDuplicatesInOrder(t *testing.T) {
	h := newHarness(
		details("pkg;1.0;amd64", "first", 1),
		sig("Details", map[string]dbus.Variant{"summary": dbus.MakeVariant("no id")}),
		details("pkg;1.0;i386", "second", 1),
		details("pkg;1.0;amd64", "third", 1),
		finished(),
	)
	out, err := h.session(t).Run(context.Background(), Request{Files: []string{"/tmp/pkg.deb"}}, nil)
	require.NoError(t, err)

	var summaries []string
	for _, d := range out.Details {
		summaries = append(summaries, d.Summary)
	}
	assert.Equal(t, []string{"first", "second", "third"}, summaries)
}

func TestFinishedWithoutDetails(t *testing.T) {
	h := newHarness(finished())
	s := h.session(t)
	out, err := s.Run(context.Background(), Request{Files: []string{"/tmp/empty.deb"}}, nil)
	require.NoError(t, err)
	assert.NotNil(t, out.Details)
	assert.Empty(t, out.Details)
	assert.Equal(t, StateSucceeded, s.State())
}

func TestInstallSession(t *testing.T) {
	h := newHarness(progress(10), progress(50), progress(90), finished())
	h.live = []uint32{10, 50, 90}

	var seen []uint32
	files := []string{"/tmp/a.deb", "/tmp/b.deb"}
	out, err := h.session(t).Run(context.Background(),
		Request{Operation: OperationInstall, Files: files},
		func(pct uint32) { seen = append(seen, pct) })
	require.NoError(t, err)

	assert.True(t, out.Installed)
	assert.Equal(t, []uint32{10, 50, 90}, seen)
	require.NotNil(t, out.Progress)
	assert.Equal(t, uint32(90), out.Progress.OverallPercentage)

	calls := h.tx.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, TransactionInterface+".InstallFiles", calls[1].Method)
	assert.Equal(t, []interface{}{uint64(FlagNone), files}, calls[1].Args)
}

func TestProgressUsesLatestLiveValue(t *testing.T) {
	h := newHarness(progress(5), progress(5), finished())
	h.live = []uint32{30, 70}

	var seen []uint32
	out, err := h.session(t).Run(context.Background(), Request{Operation: OperationInstall, Files: []string{"/tmp/a.deb"}},
		func(pct uint32) { seen = append(seen, pct) })
	require.NoError(t, err)
	assert.Equal(t, []uint32{30, 70}, seen)
	assert.Equal(t, uint32(70), out.Progress.OverallPercentage)
}

func TestProgressUnknownKeepsLastAggregate(t *testing.T) {
	h := newHarness(progress(20), sig("ItemProgress", "pkg", uint32(9), uint32(101)), finished())
	h.live = []uint32{20, 101}

	var seen []uint32
	_, err := h.session(t).Run(context.Background(), Request{Operation: OperationInstall, Files: []string{"/tmp/a.deb"}},
		func(pct uint32) { seen = append(seen, pct) })
	require.NoError(t, err)
	assert.Equal(t, []uint32{20, 20}, seen)
}

func TestInstallExitStatus(t *testing.T) {
	tests := []struct {
		exit Exit
		want bool
	}{
		{ExitSuccess, true},
		{ExitUnknown, true},
		{ExitFailed, false},
		{ExitCancelled, false},
		{ExitKilled, false},
	}
	for _, tt := range tests {
		t.Run(tt.exit.String(), func(t *testing.T) {
			h := newHarness(sig("Finished", uint32(tt.exit), uint32(0)))
			out, err := h.session(t).Run(context.Background(), Request{Operation: OperationInstall, Files: []string{"/tmp/a.deb"}}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Installed)
			assert.Equal(t, tt.exit, out.Exit)
		})
	}
}

func TestErrorCodeHaltsConsumption(t *testing.T) {
	h := newHarness(
		progress(10),
		sig("ErrorCode", uint32(2), "no space left"),
		details("late;1.0;amd64", "never read", 1),
		finished(),
	)
	s := h.session(t)
	out, err := s.Run(context.Background(), Request{Operation: OperationInstall, Files: []string{"/tmp/a.deb"}}, nil)
	require.Error(t, err)
	assert.Nil(t, out)

	wizErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeTransactionFailed, wizErr.Code)
	assert.Equal(t, "no space left", wizErr.Message)
	code, ok := errors.RemoteCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(2), code)

	assert.Equal(t, StateFailed, s.State())
	assert.Len(t, h.feed.Signals(), 2)
}

func TestMalformedSignalFails(t *testing.T) {
	h := newHarness(sig("Package", "not", "a", "tuple", "at all"), finished())
	_, err := h.session(t).Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeMalformedSignal))
	assert.True(t, errors.IsTransactionError(err))
}

func TestFeedClosed(t *testing.T) {
	h := newHarness(details("pkg;1.0;amd64", "A tool", 1))
	h.feed.End()
	s := h.session(t)

	_, err := s.Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConnectionClosed))
	assert.Contains(t, err.Error(), "connection closed unexpectedly")
	assert.Equal(t, StateFailed, s.State())
}

func TestContextCancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.session(t).Run(ctx, Request{Files: []string{"/tmp/a.deb"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeCancelled))
}

func TestForeignSignalsIgnored(t *testing.T) {
	h := newHarness(
		mocks.Signal("/org/freedesktop/PackageKit/Transactions/2", TransactionInterface, "ErrorCode", uint32(1), "other"),
		mocks.Signal(txPath, "org.freedesktop.DBus.Properties", "PropertiesChanged", "x"),
		sig("RepoDetail", "main", "Main", true),
		finished(),
	)
	out, err := h.session(t).Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Details)
}

func TestPluralPackages(t *testing.T) {
	h := newHarness(
		sig("Package", uint32(12), "a;1;amd64;local", "A"),
		sig("Packages", [][]interface{}{{uint32(1), "b;1;amd64;installed", "B"}}),
		finished(),
	)
	out, err := h.session(t).Run(context.Background(), Request{Operation: OperationInstall, Files: []string{"/tmp/a.deb"}}, nil)
	require.NoError(t, err)
	require.Len(t, out.Packages, 2)
	assert.Equal(t, "b;1;amd64;installed", out.Packages[1].PackageID)
}

func TestSetHintsFailure(t *testing.T) {
	h := newHarness(finished())
	h.tx.CallFunc = func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
		return mocks.Failure(fmt.Errorf("refused"))
	}
	s := h.session(t)
	_, err := s.Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}, Hints: []string{"interactive=false"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeTransactionCall))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, []string{TransactionInterface + ".SetHints"}, h.tx.Methods())
}

func TestSessionRunsOnce(t *testing.T) {
	h := newHarness(finished())
	s := h.session(t)
	_, err := s.Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}}, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), Request{Files: []string{"/tmp/a.deb"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
}

func TestParseTransactionFlags(t *testing.T) {
	flags, err := ParseTransactionFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, FlagNone, flags)

	flags, err = ParseTransactionFlags([]string{"only-trusted", "Allow-Reinstall"})
	require.NoError(t, err)
	assert.Equal(t, FlagOnlyTrusted|FlagAllowReinstall, flags)
	assert.Equal(t, "only-trusted,allow-reinstall", flags.String())

	_, err = ParseTransactionFlags([]string{"yolo"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
