package packagekit

import (
	"fmt"
	"strings"
)

// PackageDetail is the metadata reported for one package in a local file.
type PackageDetail struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	License      string `json:"license"`
	SizeBytes    uint64 `json:"size_bytes"`
	// Size is the display size in whole decimal megabytes, e.g. "2 MB".
	Size string `json:"size"`
}

// NewPackageDetail splits id into its name, version and architecture
// fields. Missing fields stay empty.
func NewPackageDetail(id string) *PackageDetail {
	d := &PackageDetail{ID: id, Size: FormatSize(0)}
	parts := strings.Split(id, ";")
	d.Name = parts[0]
	if len(parts) > 1 {
		d.Version = parts[1]
	}
	if len(parts) > 2 {
		d.Architecture = parts[2]
	}
	return d
}

// FormatSize renders bytes as truncated decimal megabytes.
func FormatSize(bytes uint64) string {
	return fmt.Sprintf("%d MB", bytes/1_000_000)
}

// Info is a PackageKit package info code.
type Info uint32

var infoNames = []string{
	"unknown", "installed", "available", "low", "enhancement", "normal",
	"bugfix", "important", "security", "blocked", "downloading", "updating",
	"installing", "removing", "cleanup", "obsoleting", "collection-installed",
	"collection-available", "finished", "reinstalling", "downgrading",
	"preparing", "decompressing", "untrusted", "trusted", "unavailable",
	"critical",
}

func (i Info) String() string {
	if int(i) < len(infoNames) {
		return infoNames[i]
	}
	return fmt.Sprintf("info(%d)", uint32(i))
}

// Status is a PackageKit transaction status code.
type Status uint32

var statusNames = []string{
	"unknown", "wait", "setup", "running", "query", "info", "remove",
	"refresh-cache", "download", "install", "update", "cleanup", "obsolete",
	"dep-resolve", "sig-check", "test-commit", "commit", "request",
	"finished", "cancel",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint32(s))
}

// Exit is the exit enum carried by the Finished signal.
type Exit uint32

const (
	ExitUnknown Exit = iota
	ExitSuccess
	ExitFailed
	ExitCancelled
	ExitKeyRequired
	ExitEulaRequired
	ExitKilled
)

var exitNames = []string{
	"unknown", "success", "failed", "cancelled", "key-required",
	"eula-required", "killed",
}

func (e Exit) String() string {
	if int(e) < len(exitNames) {
		return exitNames[e]
	}
	return fmt.Sprintf("exit(%d)", uint32(e))
}

// Failed reports whether the exit means the install did not happen.
func (e Exit) Failed() bool {
	return e == ExitFailed || e == ExitCancelled || e == ExitKilled
}

// ErrorKind names the PackageKit error codes wizard reports specially.
type ErrorKind uint32

const (
	ErrorUnknown             ErrorKind = 0
	ErrorOOM                 ErrorKind = 1
	ErrorNoNetwork           ErrorKind = 2
	ErrorNotSupported        ErrorKind = 3
	ErrorInternal            ErrorKind = 4
	ErrorTransactionCanceled ErrorKind = 17
	ErrorLocalInstallFailed  ErrorKind = 29
	ErrorInvalidPackageFile  ErrorKind = 38
	ErrorNoSpaceOnDevice     ErrorKind = 46
	ErrorNotAuthorized       ErrorKind = 48
)

var errorKindNames = map[ErrorKind]string{
	ErrorUnknown:             "unknown",
	ErrorOOM:                 "oom",
	ErrorNoNetwork:           "no-network",
	ErrorNotSupported:        "not-supported",
	ErrorInternal:            "internal-error",
	ErrorTransactionCanceled: "transaction-cancelled",
	ErrorLocalInstallFailed:  "local-install-failed",
	ErrorInvalidPackageFile:  "invalid-package-file",
	ErrorNoSpaceOnDevice:     "no-space-on-device",
	ErrorNotAuthorized:       "not-authorized",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error(%d)", uint32(k))
}

// InstalledPackageInfo is one entry of a Package signal.
type InstalledPackageInfo struct {
	Info      Info   `json:"info"`
	PackageID string `json:"package_id"`
	Summary   string `json:"summary"`
}

// ProgressSample is one ItemProgress signal together with the aggregate
// percentage read when it was handled.
type ProgressSample struct {
	PackageID         string `json:"package_id"`
	Status            Status `json:"status"`
	ItemPercentage    uint32 `json:"item_percentage"`
	OverallPercentage uint32 `json:"overall_percentage"`
}

// Event is a decoded transaction signal.
type Event interface {
	event()
}

// Details carries one Details signal. Detail is nil when the payload had no
// usable package id.
type Details struct {
	Detail *PackageDetail
}

// Package carries a Package signal, or several entries of a Packages signal.
type Package struct {
	Infos []InstalledPackageInfo
}

// ItemProgress carries a progress update.
type ItemProgress struct {
	Sample ProgressSample
}

// ErrorCode is the terminal failure signal.
type ErrorCode struct {
	Code    uint32
	Message string
}

// Finished is the terminal completion signal.
type Finished struct {
	Exit    Exit
	Runtime uint32
}

// Unknown is any signal wizard does not act on.
type Unknown struct {
	Name string
}

func (Details) event()      {}
func (Package) event()      {}
func (ItemProgress) event() {}
func (ErrorCode) event()    {}
func (Finished) event()     {}
func (Unknown) event()      {}
