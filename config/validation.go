package config

import (
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/pkg/channel"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DebounceMs < 0 {
		return errors.ConfigInvalid("debounce_ms cannot be negative").
			WithDetail("debounce_ms", c.DebounceMs)
	}

	if err := validatePath("root", c.Root); err != nil {
		return err
	}

	for _, pattern := range c.Ignore {
		if strings.TrimSpace(pattern) == "" {
			return errors.ConfigInvalid("ignore patterns cannot be empty")
		}
	}

	// Validate channels
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if err := channel.ValidateName(ch.Name); err != nil {
			return err
		}
		if seen[ch.Name] {
			return errors.InvalidChannel(ch.Name, "declared more than once")
		}
		seen[ch.Name] = true

		if len(ch.Patterns) == 0 {
			return errors.InvalidChannel(ch.Name, "at least one pattern is required")
		}
		for _, pattern := range ch.Patterns {
			if err := channel.ValidatePattern(ch.Name, pattern); err != nil {
				return err
			}
		}
	}

	// Validate pipelines
	pipelineNames := make(map[string]bool, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if err := c.validatePipeline(p); err != nil {
			return err.WithDetail("pipeline", p.Name)
		}
		if pipelineNames[p.Name] {
			return errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' is declared more than once", p.Name)).
				WithDetail("pipeline", p.Name)
		}
		pipelineNames[p.Name] = true
	}

	// Validate serve settings
	if c.Serve != nil {
		if _, _, err := net.SplitHostPort(c.Serve.Addr); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("invalid serve address '%s'", c.Serve.Addr)).
				WithDetail("addr", c.Serve.Addr)
		}
		if !strings.HasPrefix(c.Serve.Path, "/") {
			return errors.ConfigInvalid("serve path must start with '/'").
				WithDetail("path", c.Serve.Path)
		}
	}

	return nil
}

func (c *Config) validatePipeline(p PipelineConfig) *errors.BasinError {
	if strings.TrimSpace(p.Name) == "" {
		return errors.ConfigInvalid("pipeline name cannot be empty")
	}

	switch p.Action {
	case ActionCopy:
		if p.Out == "" {
			return errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' requires 'out' for the copy action", p.Name))
		}
		if err := validatePath("out", p.Out); err != nil {
			return err
		}
	case ActionLog:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' has unknown action '%s' (must be copy or log)", p.Name, p.Action)).
			WithDetail("action", p.Action)
	}

	// Channels may be omitted when the defaults apply, in which case only the
	// default channel exists.
	if p.Channel != "" {
		if len(c.Channels) == 0 {
			if p.Channel != channel.DefaultName {
				return errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' references unknown channel '%s'", p.Name, p.Channel)).
					WithDetail("channel", p.Channel)
			}
		} else if _, ok := c.Channels.Lookup(p.Channel); !ok {
			return errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' references unknown channel '%s'", p.Name, p.Channel)).
				WithDetail("channel", p.Channel)
		}
	}

	return nil
}

// validatePath validates that a path is appropriate for the current OS
func validatePath(fieldName, path string) *errors.BasinError {
	if path == "" {
		return nil
	}

	// Check for Windows absolute paths on Unix systems
	if runtime.GOOS != "windows" && filepath.IsAbs(path) && strings.Contains(path, "\\") {
		return errors.ConfigInvalid(fmt.Sprintf("%s contains Windows-style path on Unix system", fieldName)).
			WithDetail("path", path)
	}

	// Check for Unix absolute paths on Windows systems
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") {
		return errors.ConfigInvalid(fmt.Sprintf("%s contains Unix-style path on Windows system", fieldName)).
			WithDetail("path", path)
	}

	return nil
}
