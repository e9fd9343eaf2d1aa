package cmd

import (
	"github.com/grovetools/basin/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories basin uses outside the project.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	LogDir    string `json:"log_dir"`
}

// NewPathsCmd creates the `paths` command.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the directories used by basin",
		Long: `Prints, as JSON, the directories basin uses outside the project:
- config_dir: fallback basin.yml location
- state_dir: runtime state
- log_dir: dated log files read by 'basin logs'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				LogDir:    paths.LogDir(),
			})
		},
	}
}
