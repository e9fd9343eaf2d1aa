package logging

// Config is the `logging` extension of basin.yml. It is read with
// config.UnmarshalExtension, so unknown keys are ignored.
type Config struct {
	// Level is the lowest level written: debug, info, warn or error.
	// BASIN_LOG_LEVEL wins over it.
	Level string `yaml:"level"`

	// ReportCaller adds file:line and function to text output.
	// BASIN_LOG_CALLER=true turns it on as well.
	ReportCaller bool `yaml:"report_caller"`

	File   FileSinkConfig `yaml:"file"`
	Format FormatConfig   `yaml:"format"`
}

// FileSinkConfig controls the per-component log file that `basin logs` reads.
type FileSinkConfig struct {
	// Disabled stops writing the dated file under paths.LogDir().
	Disabled bool `yaml:"disabled"`
	// Path writes to this file instead. A leading ~ is expanded.
	Path string `yaml:"path"`
}

// FormatConfig selects how entries are rendered.
type FormatConfig struct {
	// Preset is "default" (TextFormatter), "simple" (TextFormatter without
	// timestamps) or "json".
	Preset string `yaml:"preset"`
	// DisableTimestamp and DisableComponent trim the text presets.
	DisableTimestamp bool `yaml:"disable_timestamp"`
	DisableComponent bool `yaml:"disable_component"`
	// StructuredToStderr mirrors entries to stderr: "auto" does so when
	// stderr is not a terminal or the level is debug, "always" and "never"
	// are literal.
	StructuredToStderr string `yaml:"structured_to_stderr"`
}
