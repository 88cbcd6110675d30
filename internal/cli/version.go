package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/worklog-dev/worklog/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the worklog version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "worklog v%s\n", server.Version)
		},
	}
}
