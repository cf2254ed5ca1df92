package polkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/grovetools/wizard/pkg/bus/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, pid uint32) (Subject, error) {
	f.calls++
	if f.err != nil {
		return Subject{}, f.err
	}
	return Subject{Kind: "unix-process", Details: map[string]dbus.Variant{"pid": dbus.MakeVariant(pid)}}, nil
}

// authorityDialer returns a dialer whose authority answers with reply.
func authorityDialer(authority *mocks.MockObject, dials *int) bus.Dialer {
	return func(ctx context.Context, scope bus.Scope) (bus.Conn, error) {
		*dials++
		return &mocks.MockConn{
			ObjectFunc: func(dest string, path dbus.ObjectPath) bus.Object { return authority },
		}, nil
	}
}

func authorityReplying(call *dbus.Call) *mocks.MockObject {
	return &mocks.MockObject{
		Dest:       AuthorityName,
		ObjectPath: AuthorityPath,
		CallFunc: func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
			return call
		},
	}
}

func TestGatePIDZero(t *testing.T) {
	dials := 0
	resolver := &fakeResolver{}
	gate := NewGate(authorityDialer(authorityReplying(mocks.Reply(AuthorizationResult{})), &dials),
		WithPID(0), WithResolver(resolver))

	result, err := gate.Check(context.Background(), "org.debian.apt.install-file")
	require.NoError(t, err)
	assert.Equal(t, Authorized, result)
	assert.Zero(t, dials)
	assert.Zero(t, resolver.calls)
}

func TestGateCheck(t *testing.T) {
	tests := []struct {
		name    string
		reply   *dbus.Call
		want    Result
		wantErr bool
	}{
		{"authorized", mocks.Reply(AuthorizationResult{IsAuthorized: true}), Authorized, false},
		{"refused", mocks.Reply(AuthorizationResult{IsChallenge: true}), Denied, false},
		{"prompt dismissed", mocks.Failure(dbus.Error{Name: errorCancelled}), Denied, false},
		{"not authorized error", mocks.Failure(&dbus.Error{Name: errorNotAuthorized}), Denied, false},
		{"service failure", mocks.Failure(dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}), Denied, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dials := 0
			authority := authorityReplying(tt.reply)
			gate := NewGate(authorityDialer(authority, &dials), WithPID(4242), WithResolver(&fakeResolver{}))

			result, err := gate.Check(context.Background(), "org.freedesktop.packagekit.package-install")
			assert.Equal(t, tt.want, result)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrCodeGateFailed))
				assert.False(t, errors.IsDenied(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, dials)

			calls := authority.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, AuthorityInterface+".CheckAuthorization", calls[0].Method)
			require.Len(t, calls[0].Args, 5)
			assert.Equal(t, "org.freedesktop.packagekit.package-install", calls[0].Args[1])
			assert.Equal(t, map[string]string{}, calls[0].Args[2])
			assert.Equal(t, AllowUserInteraction, calls[0].Args[3])
			assert.Equal(t, "", calls[0].Args[4])
		})
	}
}

func TestGateResolveFailure(t *testing.T) {
	dials := 0
	gate := NewGate(authorityDialer(authorityReplying(mocks.Reply()), &dials),
		WithPID(7), WithResolver(&fakeResolver{err: fmt.Errorf("no such process")}))

	_, err := gate.Check(context.Background(), "x")
	assert.True(t, errors.Is(err, errors.ErrCodeGateFailed))
	assert.Zero(t, dials)
}

func TestGateBusUnavailable(t *testing.T) {
	dial := func(ctx context.Context, scope bus.Scope) (bus.Conn, error) {
		return nil, errors.BusUnavailable(scope.String(), fmt.Errorf("no socket"))
	}
	gate := NewGate(dial, WithPID(7), WithResolver(&fakeResolver{}))

	_, err := gate.Check(context.Background(), "x")
	assert.True(t, errors.Is(err, errors.ErrCodeGateFailed))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "authorized", Authorized.String())
	assert.Equal(t, "denied", Denied.String())
}

func writeStat(t *testing.T, root string, pid int, content string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0644))
}

func TestStartTime(t *testing.T) {
	root := t.TempDir()
	// Field 22 is 987654; the command name contains spaces and parentheses.
	writeStat(t, root, 1, "1 (odd (name) x) S 0 1 1 0 -1 4194560 100 0 0 0 1 2 0 0 20 0 1 0 987654 1000 200\n")
	ticks, err := startTime(filepath.Join(root, "1", "stat"))
	require.NoError(t, err)
	assert.Equal(t, uint64(987654), ticks)

	writeStat(t, root, 2, "2 (short) S 0 1\n")
	_, err = startTime(filepath.Join(root, "2", "stat"))
	assert.Error(t, err)

	_, err = startTime(filepath.Join(root, "3", "stat"))
	assert.Error(t, err)
}

func TestProcessResolver(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("proc filesystem required")
	}
	pid := os.Getpid()
	root := t.TempDir()
	writeStat(t, root, pid, fmt.Sprintf("%d (wizard.test) R 1 1 1 0 -1 0 0 0 0 0 0 0 0 0 20 0 1 0 5555 0 0\n", pid))

	subject, err := ProcessResolver{ProcRoot: root}.Resolve(context.Background(), uint32(pid))
	require.NoError(t, err)
	assert.Equal(t, "unix-process", subject.Kind)
	assert.Equal(t, uint32(pid), subject.Details["pid"].Value())
	assert.Equal(t, uint64(5555), subject.Details["start-time"].Value())
	assert.Equal(t, int32(os.Getuid()), subject.Details["uid"].Value())

	_, err = ProcessResolver{ProcRoot: t.TempDir()}.Resolve(context.Background(), uint32(pid))
	assert.Error(t, err)
}
