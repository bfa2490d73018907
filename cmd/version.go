package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.Info(cmd.Root().Name()))
	},
}
