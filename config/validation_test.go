package config

import (
	"testing"

	"github.com/grovetools/basin/errors"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := &Config{
		Root:   "/project",
		Ignore: []string{"node_modules"},
		Channels: Channels{
			{Name: "js", Patterns: []string{"**/*.js"}},
			{Name: "css", Patterns: []string{"**/*.css", "!vendor/**"}},
		},
		Pipelines: []PipelineConfig{
			{Name: "scripts", Action: ActionCopy, Channel: "js", Out: "dist"},
			{Name: "print", Action: ActionLog},
		},
		Serve: &ServeConfig{Addr: ":35729", Path: "/livereload"},
	}
	return cfg
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	testCases := []struct {
		name   string
		mutate func(c *Config)
		code   errors.ErrorCode
	}{
		{"negative debounce", func(c *Config) { c.DebounceMs = -1 }, errors.ErrCodeConfigInvalid},
		{"blank ignore", func(c *Config) { c.Ignore = []string{" "} }, errors.ErrCodeConfigInvalid},
		{"reserved channel", func(c *Config) { c.Channels[0].Name = "@ready" }, errors.ErrCodeConfigInvalid},
		{"empty channel name", func(c *Config) { c.Channels[0].Name = "" }, errors.ErrCodeConfigInvalid},
		{"duplicate channel", func(c *Config) { c.Channels[1].Name = "js" }, errors.ErrCodeConfigInvalid},
		{"channel without patterns", func(c *Config) { c.Channels[0].Patterns = nil }, errors.ErrCodeConfigInvalid},
		{"blank pattern", func(c *Config) { c.Channels[0].Patterns = []string{""} }, errors.ErrCodeConfigInvalid},
		{"copy without out", func(c *Config) { c.Pipelines[0].Out = "" }, errors.ErrCodeConfigInvalid},
		{"unknown action", func(c *Config) { c.Pipelines[1].Action = "zip" }, errors.ErrCodeConfigInvalid},
		{"unnamed pipeline", func(c *Config) { c.Pipelines[1].Name = "" }, errors.ErrCodeConfigInvalid},
		{"duplicate pipeline", func(c *Config) { c.Pipelines[1].Name = "scripts" }, errors.ErrCodeConfigInvalid},
		{"unknown channel", func(c *Config) { c.Pipelines[0].Channel = "html" }, errors.ErrCodeConfigInvalid},
		{"bad serve addr", func(c *Config) { c.Serve.Addr = "35729" }, errors.ErrCodeConfigInvalid},
		{"bad serve path", func(c *Config) { c.Serve.Path = "reload" }, errors.ErrCodeConfigInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Equal(t, tc.code, errors.GetCode(err))
		})
	}
}

func TestValidatePipelineOnDefaultChannel(t *testing.T) {
	cfg := &Config{
		Pipelines: []PipelineConfig{{Name: "all", Action: ActionLog, Channel: "@default"}},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Pipelines[0].Channel = "js"
	assert.Error(t, cfg.Validate())
}

func TestValidatePipelineErrorCarriesName(t *testing.T) {
	cfg := validConfig()
	cfg.Pipelines[0].Channel = "html"

	basinErr, ok := errors.AsBasinError(cfg.Validate())
	if assert.True(t, ok) {
		assert.Equal(t, "scripts", basinErr.Details["pipeline"])
		assert.Equal(t, "html", basinErr.Details["channel"])
	}
}
