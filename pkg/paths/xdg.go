// Package paths provides XDG-compliant path resolution for wizard.
//
// Resolution order:
// 1. WIZARD_HOME (portable root) → $WIZARD_HOME/{config,state,cache}
// 2. XDG env vars → $XDG_*_HOME/wizard
// 3. Platform defaults → ~/.config/wizard, ~/.local/state/wizard, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "wizard"

// xdgHome resolves one base directory: the WIZARD_HOME subdirectory, the
// XDG variable, or the fallback under the user's home directory.
func xdgHome(homeSubdir, xdgVar string, fallback ...string) string {
	if wizardHome := os.Getenv("WIZARD_HOME"); wizardHome != "" {
		return filepath.Join(wizardHome, homeSubdir)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

func join(base string) string {
	if base == "" {
		return ""
	}
	// WIZARD_HOME is already application specific.
	if os.Getenv("WIZARD_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the configuration directory (wizard.yml / wizard.toml).
func ConfigDir() string {
	return join(xdgHome("config", "XDG_CONFIG_HOME", ".config"))
}

// StateDir returns the state directory.
// Used for logs.
func StateDir() string {
	return join(xdgHome("state", "XDG_STATE_HOME", ".local", "state"))
}

// CacheDir returns the cache directory.
func CacheDir() string {
	return join(xdgHome("cache", "XDG_CACHE_HOME", ".cache"))
}

// LogDir returns the directory the file log sink writes to.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// EnsureDirs creates all wizard directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), CacheDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
