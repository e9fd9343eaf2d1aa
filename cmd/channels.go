package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/basin/cli"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/channel"
	"github.com/spf13/cobra"
)

// ChannelInfo is one channel in `basin channels` output.
type ChannelInfo struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
}

// PathMatch lists the channels a path is dispatched to.
type PathMatch struct {
	Path     string   `json:"path"`
	Channels []string `json:"channels"`
}

// NewChannelsCmd creates the `channels` command.
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels [path...]",
		Short: "List channels, or show which channels paths match",
		Long: `Lists the configured channels with their patterns. Given paths relative to
the root, prints the channels each path would be dispatched to.

Examples:
  basin channels
  basin channels src/app.css src/index.html
`,
		RunE: runChannelsE,
	}
	return cmd
}

func runChannelsE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	specs := make([]channel.Spec, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		specs = append(specs, channel.Spec{Name: ch.Name, Patterns: ch.Patterns})
	}
	registry, err := channel.New(specs)
	if err != nil {
		return err
	}

	jsonOutput := cli.GetOptions(cmd).JSONOutput
	w := cmd.OutOrStdout()

	if len(args) == 0 {
		infos := make([]ChannelInfo, 0, registry.Len())
		for _, name := range registry.Names() {
			ch, _ := registry.Lookup(name)
			infos = append(infos, ChannelInfo{Name: ch.Name, Patterns: ch.Patterns})
		}
		if jsonOutput {
			return writeJSON(w, infos)
		}
		printChannels(w, infos)
		return nil
	}

	matches := make([]PathMatch, 0, len(args))
	for _, arg := range args {
		p := filepath.ToSlash(arg)
		if filepath.IsAbs(arg) && cfg.Root != "" {
			if rel, err := filepath.Rel(cfg.Root, arg); err == nil {
				p = filepath.ToSlash(rel)
			}
		}
		matched := registry.ChannelsMatching(p)
		if matched == nil {
			matched = []string{}
		}
		matches = append(matches, PathMatch{Path: p, Channels: matched})
	}
	if jsonOutput {
		return writeJSON(w, matches)
	}
	printMatches(w, matches)
	return nil
}

func printChannels(w io.Writer, infos []ChannelInfo) {
	styles := logging.NewPrettyLogger().WithWriter(w).Styles()

	nameWidth := 0
	for _, info := range infos {
		nameWidth = max(nameWidth, lipgloss.Width(info.Name))
	}
	patternWidth := cli.TerminalWidth(w) - nameWidth - 2

	for _, info := range infos {
		name := styles.Value.Width(nameWidth).Render(info.Name)
		patterns := truncate(strings.Join(info.Patterns, ", "), patternWidth)
		fmt.Fprintf(w, "%s  %s\n", name, styles.Path.Render(patterns))
	}
}

func printMatches(w io.Writer, matches []PathMatch) {
	styles := logging.NewPrettyLogger().WithWriter(w).Styles()

	for _, m := range matches {
		channels := styles.Key.Render("(no channel)")
		if len(m.Channels) > 0 {
			channels = styles.Value.Render(strings.Join(m.Channels, ", "))
		}
		fmt.Fprintf(w, "%s -> %s\n", styles.Path.Render(m.Path), channels)
	}
}

func truncate(s string, width int) string {
	if width < 4 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
