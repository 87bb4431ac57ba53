package cmd

import (
	"fmt"

	"dharana-gateway/internal/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Dharana client %s\n", version.GetVersion())
	},
}
