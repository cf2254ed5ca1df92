package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/grovetools/wizard/version.Version=..." by
// the release build. Binaries built with `go install` fall back to the
// module and VCS data embedded by the toolchain.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// busModule is reported so bug reports name the D-Bus binding in use.
const busModule = "github.com/godbus/dbus/v5"

// Info describes the running binary.
type Info struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Modified   bool   `json:"modified,omitempty"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
	DBusModule string `json:"dbusModule,omitempty"`
}

// GetInfo returns the version information of the running binary.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi)
	}
	return info
}

// fill replaces linker defaults with what the toolchain recorded.
func (i *Info) fill(bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "none" {
				i.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if i.BuildDate == "unknown" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	for _, dep := range bi.Deps {
		if dep.Path == busModule {
			i.DBusModule = dep.Path + " " + dep.Version
			break
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String returns the multi-line form printed by `wizard version`.
func (i Info) String() string {
	var b strings.Builder
	commit := i.Commit
	if i.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(&b, "Commit:\t\t%s\n", commit)
	fmt.Fprintf(&b, "Build Date:\t%s\n", i.BuildDate)
	fmt.Fprintf(&b, "Go Version:\t%s\n", i.GoVersion)
	fmt.Fprintf(&b, "Platform:\t%s", i.Platform)
	if i.DBusModule != "" {
		fmt.Fprintf(&b, "\nD-Bus:\t\t%s", i.DBusModule)
	}
	return b.String()
}
