package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Install strategies. One is chosen per deployment.
const (
	// StrategyTransaction runs the install as a PackageKit transaction and
	// follows its signal stream.
	StrategyTransaction = "transaction"
	// StrategyModify hands the files to the session PackageKit helper.
	StrategyModify = "modify"
	// StrategyAptd hands the files to aptdaemon after a polkit check.
	StrategyAptd = "aptd"
)

// Polkit actions used when install.action_id is not set.
const (
	ActionPackageKitInstall = "org.freedesktop.packagekit.package-install"
	ActionAptInstallFile    = "org.debian.apt.install-file"
)

// DefaultHints are sent to every PackageKit transaction.
var DefaultHints = []string{"interactive=true", "supports-plural-signals=true"}

// DefaultInteraction is the interaction mode passed to the session helper.
const DefaultInteraction = "show-confirm-search,hide-finished"

// DefaultWatchPatterns select the files the watch command inspects.
var DefaultWatchPatterns = []string{"*.deb", "*.rpm"}

// Config is the wizard configuration file.
type Config struct {
	Version string        `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	Install InstallConfig `yaml:"install" toml:"install" json:"install"`
	Query   QueryConfig   `yaml:"query" toml:"query" json:"query"`
	Watch   WatchConfig   `yaml:"watch" toml:"watch" json:"watch"`

	// Extensions holds top-level sections owned by other packages, such as
	// "logging". Decode them with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-"`
}

// InstallConfig controls the install path.
type InstallConfig struct {
	Strategy    string   `yaml:"strategy,omitempty" toml:"strategy,omitempty" json:"strategy,omitempty" jsonschema:"enum=transaction,enum=modify,enum=aptd,description=How packages are installed"`
	Authorize   *bool    `yaml:"authorize,omitempty" toml:"authorize,omitempty" json:"authorize,omitempty" jsonschema:"description=Run the polkit check before installing"`
	ActionID    string   `yaml:"action_id,omitempty" toml:"action_id,omitempty" json:"action_id,omitempty" jsonschema:"description=Polkit action checked before installing"`
	Flags       []string `yaml:"flags,omitempty" toml:"flags,omitempty" json:"flags,omitempty" jsonschema:"description=PackageKit transaction flags (e.g. only-trusted)"`
	Hints       []string `yaml:"hints,omitempty" toml:"hints,omitempty" json:"hints,omitempty" jsonschema:"description=PackageKit session hints"`
	Interaction string   `yaml:"interaction,omitempty" toml:"interaction,omitempty" json:"interaction,omitempty" jsonschema:"description=Interaction mode for the session helper"`
	WindowID    uint32   `yaml:"window_id,omitempty" toml:"window_id,omitempty" json:"window_id,omitempty" jsonschema:"description=Parent window id passed to the session helper"`
	Timeout     string   `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Deadline for one install (Go duration, empty for none)"`
}

// QueryConfig controls package inspection.
type QueryConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent,omitempty" toml:"max_concurrent,omitempty" json:"max_concurrent,omitempty" jsonschema:"minimum=1,description=Inspections run in parallel"`
	Timeout       string `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Deadline for one inspection (Go duration, empty for none)"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Patterns   []string `yaml:"patterns,omitempty" toml:"patterns,omitempty" json:"patterns,omitempty" jsonschema:"description=File name patterns to inspect"`
	DebounceMs int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" jsonschema:"minimum=0"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Install.Strategy == "" {
		c.Install.Strategy = StrategyTransaction
	}
	if c.Install.Authorize == nil {
		authorize := true
		c.Install.Authorize = &authorize
	}
	if len(c.Install.Hints) == 0 {
		c.Install.Hints = append([]string(nil), DefaultHints...)
	}
	if c.Install.Interaction == "" {
		c.Install.Interaction = DefaultInteraction
	}
	if c.Query.MaxConcurrent == 0 {
		c.Query.MaxConcurrent = 2
	}
	if len(c.Watch.Patterns) == 0 {
		c.Watch.Patterns = append([]string(nil), DefaultWatchPatterns...)
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = 200
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// AuthorizeEnabled reports whether installs go through the polkit check.
func (i InstallConfig) AuthorizeEnabled() bool {
	return i.Authorize == nil || *i.Authorize
}

// Action returns the polkit action for the configured strategy.
func (i InstallConfig) Action() string {
	if i.ActionID != "" {
		return i.ActionID
	}
	if i.Strategy == StrategyAptd {
		return ActionAptInstallFile
	}
	return ActionPackageKitInstall
}

// TimeoutDuration parses the install timeout. Zero means no deadline.
func (i InstallConfig) TimeoutDuration() (time.Duration, error) {
	return parseTimeout("install.timeout", i.Timeout)
}

// TimeoutDuration parses the query timeout. Zero means no deadline.
func (q QueryConfig) TimeoutDuration() (time.Duration, error) {
	return parseTimeout("query.timeout", q.Timeout)
}

// Debounce returns the watch debounce interval.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

func parseTimeout(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded file into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
