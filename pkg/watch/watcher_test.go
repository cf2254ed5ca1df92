package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/wizard/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	w, err := New([]string{t.TempDir()}, []string{"*.deb", "*.rpm"}, 0)
	require.NoError(t, err)
	defer w.stop()

	assert.True(t, w.Matches("/downloads/tool_1.0_amd64.deb"))
	assert.True(t, w.Matches("tool-1.0.x86_64.rpm"))
	assert.False(t, w.Matches("/downloads/notes.txt"))
	assert.False(t, w.Matches("tool.deb.part"))
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, []string{"*.deb"}, 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = New([]string{filepath.Join(t.TempDir(), "missing")}, []string{"*.deb"}, 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.deb", "a.rpm", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.deb"), 0755))

	w, err := New([]string{dir}, []string{"*.deb", "*.rpm"}, 0)
	require.NoError(t, err)
	defer w.stop()

	files, err := w.Existing()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.rpm"), filepath.Join(dir, "b.deb")}, files)
}

func TestRunReportsSettledFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, []string{"*.deb"}, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arrived := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, path string) { arrived <- path })
	}()

	target := filepath.Join(dir, "tool.deb")
	f, err := os.Create(target)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644))

	select {
	case path := <-arrived:
		assert.Equal(t, target, path)
	case <-time.After(2 * time.Second):
		t.Fatal("package file not reported")
	}

	select {
	case path := <-arrived:
		t.Fatalf("unexpected second report: %s", path)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
