package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("WIZARD_TEST_DIR", "/srv/packages")

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/Downloads/hello.deb", filepath.Join(home, "Downloads", "hello.deb")},
		{"$WIZARD_TEST_DIR/hello.deb", "/srv/packages/hello.deb"},
		{"/tmp/../tmp/a.deb", "/tmp/a.deb"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Expand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	cwd, err := os.Getwd()
	require.NoError(t, err)
	got, err := Expand("hello.deb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "hello.deb"), got)
}
