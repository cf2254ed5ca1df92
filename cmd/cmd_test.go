package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/grovetools/wizard/pkg/bus/mocks"
	"github.com/grovetools/wizard/pkg/engine"
	"github.com/grovetools/wizard/pkg/packagekit"
	"github.com/grovetools/wizard/pkg/polkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus answers like a PackageKit daemon that knows every file.
type fakeBus struct {
	mu      sync.Mutex
	n       int
	exit    packagekit.Exit
	dialErr error
	methods []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{exit: packagekit.ExitSuccess}
}

func (f *fakeBus) dial(ctx context.Context, scope bus.Scope) (bus.Conn, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	f.mu.Lock()
	f.n++
	txPath := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/PackageKit/Transactions/%d", f.n))
	f.mu.Unlock()

	feed := mocks.NewFeed()
	emit := func(member string, body ...interface{}) {
		feed.Emit(mocks.Signal(txPath, packagekit.TransactionInterface, member, body...))
	}

	tx := &mocks.MockObject{Dest: packagekit.ServiceName, ObjectPath: txPath}
	tx.CallFunc = func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
		member := bus.Member(method)
		f.mu.Lock()
		f.methods = append(f.methods, member)
		f.mu.Unlock()

		switch member {
		case "GetDetailsLocal":
			for _, file := range args[0].([]string) {
				name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
				emit("Details", map[string]dbus.Variant{
					"package-id": dbus.MakeVariant(name + ";1.0;amd64;local"),
					"summary":    dbus.MakeVariant("test package"),
					"size":       dbus.MakeVariant(uint64(3_500_000)),
				})
			}
			emit("Finished", uint32(packagekit.ExitSuccess), uint32(10))
		case "InstallFiles":
			emit("ItemProgress", "hello;1.0;amd64;local", uint32(1), uint32(50))
			emit("Finished", uint32(f.exit), uint32(10))
		}
		return mocks.Reply()
	}
	root := &mocks.MockObject{
		Dest:       packagekit.ServiceName,
		ObjectPath: packagekit.ServicePath,
		CallFunc: func(ctx context.Context, method string, args ...interface{}) *dbus.Call {
			return mocks.Reply(txPath)
		},
	}

	return &mocks.MockConn{
		ObjectFunc: func(dest string, path dbus.ObjectPath) bus.Object {
			if path == txPath {
				return tx
			}
			return root
		},
		SubscribeFunc: func(path dbus.ObjectPath, iface string) (bus.Feed, error) {
			return feed, nil
		},
	}, nil
}

type fakeAuthorizer struct {
	result  polkit.Result
	actions []string
}

func (f *fakeAuthorizer) Check(ctx context.Context, actionID string) (polkit.Result, error) {
	f.actions = append(f.actions, actionID)
	return f.result, nil
}

func setup(t *testing.T, opts ...engine.Option) {
	t.Helper()
	t.Setenv("WIZARD_HOME", t.TempDir())
	t.Setenv("WIZARD_CONFIG", "")
	engineOptions = opts
	t.Cleanup(func() { engineOptions = nil })
}

func execute(ctx context.Context, args ...string) (string, string, error) {
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func packageFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("!<arch>\n"), 0644))
	return path
}

func TestDetailsJSON(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial))
	dir := t.TempDir()
	a := packageFile(t, dir, "hello.deb")
	b := packageFile(t, dir, "world.deb")

	stdout, _, err := execute(context.Background(), "details", "--json", a, b)
	require.NoError(t, err)

	var results []struct {
		Path    string                     `json:"path"`
		Details []packagekit.PackageDetail `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].Path)
	require.Len(t, results[0].Details, 1)
	assert.Equal(t, "hello", results[0].Details[0].Name)
	assert.Equal(t, "3 MB", results[0].Details[0].Size)
	assert.Equal(t, "world", results[1].Details[0].Name)
}

func TestDetailsText(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial))
	file := packageFile(t, t.TempDir(), "hello.deb")

	stdout, _, err := execute(context.Background(), "details", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "hello")
	assert.Contains(t, stdout, "test package")
}

func TestDetailsBusUnavailable(t *testing.T) {
	fake := newFakeBus()
	fake.dialErr = errors.BusUnavailable("system", fmt.Errorf("no socket"))
	setup(t, engine.WithDialer(fake.dial))
	file := packageFile(t, t.TempDir(), "hello.deb")

	_, _, err := execute(context.Background(), "details", "--json", file)
	assert.True(t, errors.Is(err, errors.ErrCodeBusUnavailable), "got %v", err)
}

func TestInstallJSON(t *testing.T) {
	fake := newFakeBus()
	auth := &fakeAuthorizer{result: polkit.Authorized}
	setup(t, engine.WithDialer(fake.dial), engine.WithAuthorizer(auth))
	file := packageFile(t, t.TempDir(), "hello.deb")

	stdout, _, err := execute(context.Background(), "install", "--json", file)
	require.NoError(t, err)

	var report installReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Installed)
	assert.Equal(t, "transaction", report.Strategy)
	assert.Equal(t, []string{"org.freedesktop.packagekit.package-install"}, auth.actions)
	assert.Contains(t, fake.methods, "InstallFiles")
}

func TestInstallProgressLines(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial), engine.WithAuthorizer(&fakeAuthorizer{result: polkit.Authorized}))
	file := packageFile(t, t.TempDir(), "hello.deb")

	stdout, stderr, err := execute(context.Background(), "install", "--no-progress", file)
	require.NoError(t, err)
	assert.Contains(t, stderr, "50%")
	assert.Contains(t, stdout, "Installed 1 package file(s)")
}

func TestInstallNotCompleted(t *testing.T) {
	fake := newFakeBus()
	fake.exit = packagekit.ExitCancelled
	setup(t, engine.WithDialer(fake.dial), engine.WithAuthorizer(&fakeAuthorizer{result: polkit.Authorized}))
	file := packageFile(t, t.TempDir(), "hello.deb")

	stdout, _, err := execute(context.Background(), "install", "--no-progress", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "did not complete")
}

func TestInstallDenied(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial), engine.WithAuthorizer(&fakeAuthorizer{result: polkit.Denied}))
	file := packageFile(t, t.TempDir(), "hello.deb")

	_, _, err := execute(context.Background(), "install", "--json", file)
	require.Error(t, err)
	assert.True(t, errors.IsDenied(err))
	assert.NotContains(t, fake.methods, "InstallFiles")
}

func TestInstallNoAuthorize(t *testing.T) {
	fake := newFakeBus()
	auth := &fakeAuthorizer{result: polkit.Denied}
	setup(t, engine.WithDialer(fake.dial), engine.WithAuthorizer(auth))
	file := packageFile(t, t.TempDir(), "hello.deb")

	_, _, err := execute(context.Background(), "install", "--json", "--no-authorize", file)
	require.NoError(t, err)
	assert.Empty(t, auth.actions)
}

func TestInstallRejectsUnknownStrategy(t *testing.T) {
	setup(t, engine.WithDialer(newFakeBus().dial))
	file := packageFile(t, t.TempDir(), "hello.deb")

	_, _, err := execute(context.Background(), "install", "--strategy", "snap", file)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "got %v", err)
}

func TestAuthorize(t *testing.T) {
	auth := &fakeAuthorizer{result: polkit.Authorized}
	setup(t, engine.WithAuthorizer(auth))

	stdout, _, err := execute(context.Background(), "authorize", "--json", "org.example.action")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"authorized": true`)
	assert.Equal(t, []string{"org.example.action"}, auth.actions)

	auth.result = polkit.Denied
	_, _, err = execute(context.Background(), "authorize")
	assert.True(t, errors.IsDenied(err))
	assert.Equal(t, "org.freedesktop.packagekit.package-install", auth.actions[1])
}

func TestWatchExisting(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial))
	dir := t.TempDir()
	packageFile(t, dir, "hello.deb")
	packageFile(t, dir, "notes.txt")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	stdout, _, err := execute(ctx, "watch", "--existing", "--json", dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, filepath.Join(dir, "hello.deb"), entry["path"])
}

func TestConfigShow(t *testing.T) {
	setup(t)

	stdout, _, err := execute(context.Background(), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "strategy: transaction")

	stdout, _, err = execute(context.Background(), "config", "show", "--format", "toml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[install]")

	stdout, _, err = execute(context.Background(), "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"max_concurrent": 2`)

	_, _, err = execute(context.Background(), "config", "show", "--format", "ini")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestConfigSchema(t *testing.T) {
	setup(t)
	stdout, _, err := execute(context.Background(), "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wizard Configuration")
}

func TestConfigValidate(t *testing.T) {
	setup(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yml")
	require.NoError(t, os.WriteFile(good, []byte("install:\n  strategy: aptd\n"), 0644))
	stdout, _, err := execute(context.Background(), "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[query]\nmax_concurrent = -1\n"), 0644))
	_, _, err = execute(context.Background(), "config", "validate", bad)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "got %v", err)

	_, _, err = execute(context.Background(), "config", "validate")
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLogs(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	logFile := filepath.Join(dir, "wizard.log")
	require.NoError(t, os.WriteFile(logFile, []byte(
		"plain first line\n"+
			`{"level":"info","msg":"second","component":"engine","time":"2026-10-19T10:00:00Z","path":"/tmp/a.deb"}`+"\n"+
			"plain third line\n"), 0644))

	cfgFile := filepath.Join(dir, "wizard.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf("logging:\n  file:\n    path: %s\n", logFile)), 0644))

	stdout, _, err := execute(context.Background(), "logs", "-c", cfgFile, "--lines", "2")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "first line")
	assert.Contains(t, stdout, "second")
	assert.Contains(t, stdout, "path=/tmp/a.deb")
	assert.Contains(t, stdout, "plain third line")

	stdout, _, err = execute(context.Background(), "logs", "-c", cfgFile, "--json")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"raw_line":"plain first line"`)
	assert.Contains(t, lines[1], `"msg":"second"`)
}

func TestVersion(t *testing.T) {
	setup(t)
	stdout, _, err := execute(context.Background(), "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"goVersion"`)
}

func TestTimingFlag(t *testing.T) {
	fake := newFakeBus()
	setup(t, engine.WithDialer(fake.dial))
	file := packageFile(t, t.TempDir(), "hello.deb")

	_, stderr, err := execute(context.Background(), "details", "--json", "--timing", file)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Timing Profile")
	assert.Contains(t, stderr, "query hello.deb")
}
