package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/pipeline"
	"github.com/Yutarop/imgcluster/internal/report"
)

var (
	suggestFlags  pipelineFlags
	sweepPlot     string
	suggestConfig pipeline.Config
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [flags]",
	Short: "Suggest a cluster count with an elbow and silhouette sweep",
	Long: `Extract features once, then cluster them for every K from 1 to --max-k
and report the inertia (elbow curve) and mean silhouette of each. The K with
the highest silhouette is recommended. With --plot both curves are saved as a
PNG; nothing else is written to disk.

To cluster with the recommended K directly, run "cluster -k 0".`,
	Example: `  # Sweep K from 1 to 10 over ./photos
  imgcluster suggest -i ./photos

  # Wider sweep, saving the curves
  imgcluster suggest -i ./photos --max-k 15 --plot cluster_evaluation.png`,
	PreRunE: validateSuggestFlags,
	RunE:    runSuggest,
}

func init() {
	suggestFlags.register(suggestCmd)
	suggestCmd.Flags().StringVar(&sweepPlot, "plot", "", "Save the elbow and silhouette curves as a PNG at this path")
}

func validateSuggestFlags(cmd *cobra.Command, args []string) error {
	// The sweep sets K itself; any valid value passes validation.
	suggestFlags.clusters = 1

	cfg, err := suggestFlags.config()
	if err != nil {
		return err
	}
	suggestConfig = cfg
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	p, err := pipeline.New(suggestConfig, newLogger(cmd))
	if err != nil {
		return err
	}
	run, err := p.Features(cmd.Context())
	if err != nil {
		return fmt.Errorf("feature extraction failed: %w", err)
	}

	points, err := kmeans.Sweep(cmd.Context(), run.Matrix, suggestConfig.KMeans, suggestConfig.MaxK)
	if err != nil {
		return fmt.Errorf("cluster sweep failed: %w", err)
	}

	fmt.Fprintf(out, "\nImages: %d found, %d usable, %d skipped\n\n",
		len(run.Paths), len(run.Images), len(run.Skipped))
	fmt.Fprintf(out, "  %4s  %14s  %10s\n", "K", "Inertia", "Silhouette")
	for _, pt := range points {
		fmt.Fprintf(out, "  %4d  %14.4f  %10.4f\n", pt.K, pt.Inertia, pt.Silhouette)
	}

	if sweepPlot != "" {
		if err := report.PlotSweep(points, sweepPlot); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nCurves saved: %s\n", sweepPlot)
	}

	if len(points) < 2 {
		fmt.Fprintf(out, "\nNot enough images to compare cluster counts\n")
		return nil
	}
	fmt.Fprintf(out, "\nRecommended number of clusters: %d\n", kmeans.Recommend(points))
	return nil
}
