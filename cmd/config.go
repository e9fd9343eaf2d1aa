package cmd

import (
	"fmt"

	"github.com/grovetools/basin/cli"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the resolved configuration",
		Long: `Shows the configuration after environment expansion and defaults, with
root and output paths made absolute. Useful for debugging basin.yml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			w := cmd.OutOrStdout()

			switch {
			case cli.GetOptions(cmd).JSONOutput:
				return writeJSON(w, cfg)
			case format == "toml":
				// TOML has no ordered tables, so channels are rendered as a table
				// ordered by name.
				doc := map[string]interface{}{
					"root":        cfg.Root,
					"watch":       cfg.Watch,
					"emit_file":   cfg.EmitFile,
					"ignore":      cfg.Ignore,
					"debounce_ms": cfg.DebounceMs,
					"clean":       cfg.Clean,
				}
				channels := make(map[string][]string, len(cfg.Channels))
				for _, ch := range cfg.Channels {
					channels[ch.Name] = ch.Patterns
				}
				doc["channels"] = channels
				if len(cfg.Pipelines) > 0 {
					doc["pipelines"] = cfg.Pipelines
				}
				if cfg.Serve != nil {
					doc["serve"] = cfg.Serve
				}
				data, err := toml.Marshal(doc)
				if err != nil {
					return fmt.Errorf("failed to render config: %w", err)
				}
				_, err = w.Write(data)
				return err
			case format == "yaml", format == "":
				if cfg.Dir != "" {
					fmt.Fprintf(w, "# Source: %s\n", cfg.Dir)
				}
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to render config: %w", err)
				}
				_, err = w.Write(data)
				return err
			default:
				return fmt.Errorf("unknown format %q (want yaml or toml)", format)
			}
		},
	}

	cmd.Flags().String("format", "yaml", "Output format: yaml or toml")
	return cmd
}
