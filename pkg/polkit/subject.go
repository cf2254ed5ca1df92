package polkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/shirou/gopsutil/v3/process"
)

// Subject is a polkit subject, marshalled as (sa{sv}).
type Subject struct {
	Kind    string
	Details map[string]dbus.Variant
}

// SubjectResolver builds the subject for a process.
type SubjectResolver interface {
	Resolve(ctx context.Context, pid uint32) (Subject, error)
}

// ProcessResolver builds "unix-process" subjects from the proc filesystem.
type ProcessResolver struct {
	// ProcRoot defaults to /proc.
	ProcRoot string
}

// Resolve returns the unix-process subject for pid: its id, start time in
// clock ticks and real uid.
func (r ProcessResolver) Resolve(ctx context.Context, pid uint32) (Subject, error) {
	root := r.ProcRoot
	if root == "" {
		root = "/proc"
	}

	startTime, err := startTime(filepath.Join(root, strconv.FormatUint(uint64(pid), 10), "stat"))
	if err != nil {
		return Subject{}, err
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Subject{}, fmt.Errorf("process %d: %w", pid, err)
	}
	uids, err := proc.UidsWithContext(ctx)
	if err != nil {
		return Subject{}, fmt.Errorf("uid of process %d: %w", pid, err)
	}
	if len(uids) == 0 {
		return Subject{}, fmt.Errorf("uid of process %d: not reported", pid)
	}

	return Subject{
		Kind: "unix-process",
		Details: map[string]dbus.Variant{
			"pid":        dbus.MakeVariant(pid),
			"start-time": dbus.MakeVariant(startTime),
			"uid":        dbus.MakeVariant(uids[0]),
		},
	}, nil
}

// startTime reads field 22 of a proc stat file. The command name in field 2
// may contain spaces and parentheses, so fields are counted from the last
// closing parenthesis.
func startTime(statPath string) (uint64, error) {
	data, err := os.ReadFile(statPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", statPath, err)
	}
	stat := string(data)
	end := strings.LastIndexByte(stat, ')')
	if end < 0 {
		return 0, fmt.Errorf("malformed %s", statPath)
	}
	// fields[0] is field 3 (state).
	fields := strings.Fields(stat[end+1:])
	if len(fields) < 20 {
		return 0, fmt.Errorf("malformed %s: %d fields", statPath, len(fields)+2)
	}
	ticks, err := strconv.ParseUint(fields[19], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed start time in %s: %w", statPath, err)
	}
	return ticks, nil
}
