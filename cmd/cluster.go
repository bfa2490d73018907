package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/materialize"
	"github.com/Yutarop/imgcluster/internal/pipeline"
)

var (
	clusterFlags pipelineFlags
	outputDir    string
	noVisualize  bool
	force        bool

	clusterConfig pipeline.Config
)

var clusterCmd = &cobra.Command{
	Use:   "cluster [flags]",
	Short: "Cluster images by visual similarity",
	Long: `Cluster images based on color and shape features with seeded k-means++.
By default, it processes all images in the current directory and saves clustered results to './clustered_images'.

The clustering process involves:
1. Loading and resizing images in parallel
2. Extracting an HSV histogram, dominant colors and a HOG descriptor per image
3. Fusing and min-max normalizing the feature vectors
4. K-means clustering with restarts
5. Organizing images into cluster-specific folders
6. Writing summary.json and an optional visualization`,
	Example: `  # Cluster images in current directory
  imgcluster cluster

  # Specify input and output directories
  imgcluster cluster -i ./photos -o ./clustered_photos

  # Use 4 clusters with 4 workers
  imgcluster cluster -k 4 -w 4

  # Let a silhouette sweep over K=2..8 pick the cluster count
  imgcluster cluster -k 0 --max-k 8

  # Describe shape over the whole image instead of a 64x128 window
  imgcluster cluster --hog-window full

  # Start from an empty output directory
  imgcluster cluster --force`,
	PreRunE: validateClusterFlags,
	RunE:    runCluster,
}

func init() {
	currentDir, _ := os.Getwd()

	clusterFlags.register(clusterCmd)
	clusterCmd.Flags().StringVarP(&outputDir, "output", "o", filepath.Join(currentDir, "clustered_images"), "Output directory for clustered images")
	clusterCmd.Flags().IntVarP(&clusterFlags.clusters, "clusters", "k", pipeline.DefaultConfig().KMeans.K, "Number of clusters (1-50), or 0 to pick it with a silhouette sweep")
	clusterCmd.Flags().BoolVar(&noVisualize, "no-viz", false, "Disable cluster visualization")
	clusterCmd.Flags().BoolVar(&force, "force", false, "Remove the existing output directory before writing")
}

func validateClusterFlags(cmd *cobra.Command, args []string) error {
	if clusterFlags.clusters < 0 || clusterFlags.clusters > 50 {
		return fmt.Errorf("%w: cluster count must be between 0 and 50, got %d", pipeline.ErrInvalidConfig, clusterFlags.clusters)
	}
	if outputDir == "" {
		return fmt.Errorf("%w: output directory is required", pipeline.ErrInvalidConfig)
	}

	cfg, err := clusterFlags.config()
	if err != nil {
		return err
	}
	cfg.OutputDir = outputDir
	cfg.Force = force
	cfg.Visualize = !noVisualize
	clusterConfig = cfg
	return nil
}

func runCluster(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd)

	p, err := pipeline.New(clusterConfig, log)
	if err != nil {
		return err
	}

	printConfiguration(cmd, clusterConfig)
	fmt.Fprintln(cmd.OutOrStdout(), "Starting image clustering pipeline...")

	run, err := p.Execute(cmd.Context())
	if err != nil {
		return fmt.Errorf("clustering pipeline failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nClustering completed successfully!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Results saved to: %s\n", clusterConfig.OutputDir)

	showClusterSummary(cmd, run)
	return nil
}

func printConfiguration(cmd *cobra.Command, cfg pipeline.Config) {
	out := cmd.OutOrStdout()
	layout := cfg.Features.Layout(cfg.Width, cfg.Height)

	fmt.Fprintf(out, "\nConfiguration:\n")
	fmt.Fprintf(out, "  Input directory: %s\n", cfg.InputDir)
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.OutputDir)
	fmt.Fprintf(out, "  Image size: %dx%d (%s)\n", cfg.Width, cfg.Height, cfg.Interpolation)
	if cfg.AutoK {
		fmt.Fprintf(out, "  Number of clusters: automatic (K up to %d)\n", cfg.MaxK)
	} else {
		fmt.Fprintf(out, "  Number of clusters: %d\n", cfg.KMeans.K)
	}
	fmt.Fprintf(out, "  Parallel workers: %d\n", cfg.Workers)
	fmt.Fprintf(out, "  Feature dimensions: %s (histogram %s, dominant %d, shape %s)\n",
		humanize.Comma(int64(layout.Len())),
		humanize.Comma(int64(layout.Histogram)),
		layout.Dominant,
		humanize.Comma(int64(layout.Shape)))
	fmt.Fprintf(out, "  Normalization: %s\n", cfg.Normalize)
	fmt.Fprintf(out, "  Seed: %d, restarts: %d\n", cfg.KMeans.Seed, cfg.KMeans.Restarts)

	if cfg.Visualize {
		fmt.Fprintf(out, "  Visualization enabled\n")
	} else {
		fmt.Fprintf(out, "  Visualization disabled\n")
	}

	fmt.Fprintln(out)
}

func showClusterSummary(cmd *cobra.Command, run *pipeline.Run) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nImages: %d found, %d clustered, %d skipped\n",
		len(run.Paths), len(run.Images), len(run.Skipped))
	if len(run.Sweep) > 0 {
		fmt.Fprintf(out, "Selected number of clusters: %d\n", run.K)
	}

	if run.Copy != nil && len(run.Copy.Clusters) > 0 {
		ids := make([]int, 0, len(run.Copy.Clusters))
		for id := range run.Copy.Clusters {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		fmt.Fprintln(out, "\nCluster Summary:")
		for _, id := range ids {
			fmt.Fprintf(out, "  %s: %d images\n",
				filepath.Base(materialize.ClusterDir(run.Config.OutputDir, id)), run.Copy.Clusters[id])
		}
		fmt.Fprintf(out, "\nCopied %s in %.2fs\n", humanize.Bytes(uint64(run.Copy.Bytes)), run.Copy.ProcessingTimeSeconds)
		if n := len(run.Copy.Failures); n > 0 {
			fmt.Fprintf(out, "Warning: %d images could not be copied\n", n)
		}
	}

	if run.Silhouette != nil {
		fmt.Fprintf(out, "Inertia: %.4f, silhouette: %.4f\n", run.Result.Inertia, *run.Silhouette)
	}

	// Check for visualization files
	for _, name := range []string{pipeline.VisualizationFile, pipeline.EvaluationFile} {
		vizPath := filepath.Join(run.Config.OutputDir, name)
		if _, err := os.Stat(vizPath); err == nil {
			fmt.Fprintf(out, "\nVisualization saved: %s\n", vizPath)
		}
	}
}
