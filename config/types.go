package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Pipeline actions understood by the built-in pipeline package.
const (
	ActionCopy = "copy"
	ActionLog  = "log"
)

// Config is the parsed contents of a basin.yml or basin.toml file.
type Config struct {
	Root       string           `yaml:"root,omitempty" toml:"root,omitempty" jsonschema:"description=Base directory; watch patterns and emitted paths are relative to it (default: the config file directory)"`
	Watch      bool             `yaml:"watch,omitempty" toml:"watch,omitempty" jsonschema:"description=Keep watching after the initial scan (default: one-shot)"`
	EmitFile   bool             `yaml:"emit_file,omitempty" toml:"emit_file,omitempty" jsonschema:"description=Attach file contents to added and modified events"`
	Ignore     []string         `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Glob patterns excluded from watching and dispatch"`
	DebounceMs int              `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" jsonschema:"description=Window for coalescing rapid writes to the same path in milliseconds,minimum=0"`
	Channels   Channels         `yaml:"channels,omitempty" toml:"channels,omitempty" jsonschema:"description=Named channels mapping to one or more glob patterns"`
	Clean      []string         `yaml:"clean,omitempty" toml:"clean,omitempty" jsonschema:"description=Glob patterns removed before the initial scan"`
	Pipelines  []PipelineConfig `yaml:"pipelines,omitempty" toml:"pipelines,omitempty" jsonschema:"description=Built-in pipelines attached to channels"`
	Serve      *ServeConfig     `yaml:"serve,omitempty" toml:"serve,omitempty" jsonschema:"description=Live reload websocket server"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`

	// Dir is the directory of the file the config was loaded from.
	Dir string `yaml:"-" toml:"-" jsonschema:"-"`
}

// ChannelConfig is one named channel and its glob patterns.
type ChannelConfig struct {
	Name     string
	Patterns []string
}

// Channels is an ordered channel mapping. YAML documents keep their key order;
// TOML tables are ordered by name.
type Channels []ChannelConfig

// PipelineConfig declares a built-in pipeline.
type PipelineConfig struct {
	Name        string `yaml:"name" toml:"name" jsonschema:"required,description=Unique pipeline name; also used as the cache store name"`
	Action      string `yaml:"action" toml:"action" jsonschema:"required,enum=copy,enum=log,description=What the pipeline does with each change"`
	Channel     string `yaml:"channel,omitempty" toml:"channel,omitempty" jsonschema:"description=Channel the pipeline listens on (default: every change)"`
	Out         string `yaml:"out,omitempty" toml:"out,omitempty" jsonschema:"description=Output directory for copy pipelines"`
	StripPrefix string `yaml:"strip_prefix,omitempty" toml:"strip_prefix,omitempty" jsonschema:"description=Path prefix removed from targets of copy pipelines"`
}

// ServeConfig configures the live reload server.
type ServeConfig struct {
	Addr string `yaml:"addr" toml:"addr" jsonschema:"required,description=Listen address (e.g. :35729)"`
	Path string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Websocket endpoint path (default: /livereload)"`
}

// Names returns channel names in order.
func (c Channels) Names() []string {
	names := make([]string, 0, len(c))
	for _, ch := range c {
		names = append(names, ch.Name)
	}
	return names
}

// Lookup returns the channel with the given name.
func (c Channels) Lookup(name string) (ChannelConfig, bool) {
	for _, ch := range c {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// UnmarshalYAML decodes a channel mapping while keeping document order.
// Each value is either a single pattern or a list of patterns.
func (c *Channels) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: channels must be a mapping of name to patterns", node.Line)
	}

	channels := make(Channels, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var patterns []string
		switch valueNode.Kind {
		case yaml.ScalarNode:
			patterns = []string{valueNode.Value}
		case yaml.SequenceNode:
			if err := valueNode.Decode(&patterns); err != nil {
				return fmt.Errorf("line %d: channel '%s': %w", valueNode.Line, keyNode.Value, err)
			}
		default:
			return fmt.Errorf("line %d: channel '%s' must be a pattern or a list of patterns", valueNode.Line, keyNode.Value)
		}

		channels = append(channels, ChannelConfig{Name: keyNode.Value, Patterns: patterns})
	}

	*c = channels
	return nil
}

// MarshalYAML renders channels back into a mapping.
func (c Channels) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ch := range c {
		value := &yaml.Node{Kind: yaml.SequenceNode}
		for _, p := range ch.Patterns {
			value.Content = append(value.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: p})
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: ch.Name}, value)
	}
	return node, nil
}

// channelsFromTable converts a generic channel table, as produced by the TOML
// parser, into Channels.
func channelsFromTable(data interface{}) (Channels, error) {
	if data == nil {
		return nil, nil
	}
	table, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("channels must be a table of name to patterns")
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	channels := make(Channels, 0, len(names))
	for _, name := range names {
		var patterns []string
		switch v := table[name].(type) {
		case string:
			patterns = []string{v}
		case []interface{}:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("channel '%s': patterns must be strings", name)
				}
				patterns = append(patterns, s)
			}
		default:
			return nil, fmt.Errorf("channel '%s' must be a pattern or a list of patterns", name)
		}
		channels = append(channels, ChannelConfig{Name: name, Patterns: patterns})
	}
	return channels, nil
}

// knownKeys lists the top-level keys owned by Config.
var knownKeys = map[string]bool{
	"root":        true,
	"watch":       true,
	"emit_file":   true,
	"ignore":      true,
	"debounce_ms": true,
	"channels":    true,
	"clean":       true,
	"pipelines":   true,
	"serve":       true,
}

// decodeGeneric maps a generic document (as produced by the TOML parser)
// onto a Config. Single strings are accepted where lists are expected.
func decodeGeneric(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	known := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		if key == "channels" {
			continue
		}
		if knownKeys[key] {
			known[key] = value
			continue
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]interface{})
		}
		cfg.Extensions[key] = value
	}

	if err := decoder.Decode(known); err != nil {
		return nil, err
	}

	channels, err := channelsFromTable(raw["channels"])
	if err != nil {
		return nil, err
	}
	cfg.Channels = channels
	return &cfg, nil
}

// SetDefaults fills in values left empty by the config file.
func (c *Config) SetDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	for i := range c.Pipelines {
		c.Pipelines[i].Action = strings.ToLower(c.Pipelines[i].Action)
	}
	if c.Serve != nil && c.Serve.Path == "" {
		c.Serve.Path = "/livereload"
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded basin.yml into the provided target struct. The target must be a pointer.
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
