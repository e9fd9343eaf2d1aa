package cmd

import (
	"github.com/grovetools/basin/cli"
	"github.com/grovetools/basin/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the basin command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"basin",
		"File-change-driven build orchestrator",
	)
	root.Long = `basin watches a project tree, sorts every change into named channels and
runs the pipelines attached to them.`

	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewChannelsCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewSchemaCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("basin"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
