package cli

import (
	"github.com/kolah/argo-mcp/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "argo-mcp",
		Short:         "Expose the Argo Workflows REST API as MCP tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.BindCommonFlags(root)
	root.AddCommand(
		ServeCommand(),
		ToolsCommand(),
		CallCommand(),
	)

	return root
}
