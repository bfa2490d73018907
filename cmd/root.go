// Package cmd implements the imgcluster command line.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/logging"
	"github.com/Yutarop/imgcluster/internal/version"
)

var (
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "imgcluster",
	Short: "Image clustering CLI tool",
	Long: `imgcluster groups a folder of images into visually similar clusters.

Every image is described by an HSV color histogram, a dominant color palette
and a HOG shape descriptor. The fused vectors are min-max normalized and
partitioned with seeded k-means++, and each image is copied into a
cluster_<id> folder under the output directory.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(versionCmd)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	rootCmd.SetVersionTemplate(`{{printf "%s version %s" .Name .Version}}
`)
}

// Execute runs the root command. An interrupt cancels the running batch.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(cmd *cobra.Command) *logging.Logger {
	return logging.FromFlags(cmd.ErrOrStderr(), logFormat, verbose)
}
