package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grovetools/wizard/errors"
)

var hintRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*=.*$`)

// Validate checks the configuration against the generated schema and then
// applies the checks a schema cannot express.
func (c *Config) Validate() error {
	validator, err := NewSchemaValidator()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(c); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}

	return c.ValidateSemantics()
}

// ValidateSemantics checks values whose syntax the schema leaves open.
func (c *Config) ValidateSemantics() error {
	switch c.Install.Strategy {
	case StrategyTransaction, StrategyModify, StrategyAptd:
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("install.strategy must be one of transaction, modify, aptd (got %q)", c.Install.Strategy))
	}

	for _, hint := range c.Install.Hints {
		if !hintRegex.MatchString(hint) {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("install.hints entry %q must look like key=value", hint)).
				WithDetail("hint", hint)
		}
	}

	for _, flag := range c.Install.Flags {
		if strings.TrimSpace(flag) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "install.flags must not contain empty entries")
		}
	}

	if _, err := c.Install.TimeoutDuration(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid install timeout")
	}
	if _, err := c.Query.TimeoutDuration(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid query timeout")
	}

	if c.Query.MaxConcurrent < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "query.max_concurrent must be at least 1")
	}

	for _, pattern := range c.Watch.Patterns {
		if strings.TrimSpace(pattern) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "watch.patterns must not contain empty entries")
		}
	}

	return nil
}
