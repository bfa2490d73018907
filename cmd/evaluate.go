package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/evaluate"
	"github.com/Yutarop/imgcluster/internal/imageio"
	"github.com/Yutarop/imgcluster/internal/pipeline"
	"github.com/Yutarop/imgcluster/internal/report"
)

var (
	evalDir       string
	prefixLen     int
	evalExtension []string
	evalPlotDir   string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [flags]",
	Short: "Score a clustered output directory against file name categories",
	Long: `Count the images in every cluster_* folder by category, where the
category is the first --prefix-len characters of the file name. Each cluster's
predominant category is its most frequent one; ties go to a category that no
earlier cluster already claimed. Every other image is counted as misplaced.`,
	Example: `  # Files named a_001.jpg, c_002.jpg, ... in ./clustered_images
  imgcluster evaluate -d ./clustered_images

  # Also save the per-category bar charts
  imgcluster evaluate -d ./clustered_images --plot-dir ./charts`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if prefixLen < 1 {
			return fmt.Errorf("%w: prefix length must be positive, got %d", pipeline.ErrInvalidConfig, prefixLen)
		}
		return nil
	},
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalDir, "dir", "d", "clustered_images", "Output directory produced by the cluster command")
	evaluateCmd.Flags().IntVar(&prefixLen, "prefix-len", 1, "File name prefix length that encodes the category")
	evaluateCmd.Flags().StringSliceVar(&evalExtension, "ext", imageio.DefaultExtensions, "Image file extensions to count")
	evaluateCmd.Flags().StringVar(&evalPlotDir, "plot-dir", "", "Save category and misplaced-image bar charts in this directory")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	eval, err := evaluate.Evaluate(evalDir, evaluate.PrefixCategorizer(prefixLen), evalExtension)
	if err != nil {
		return err
	}

	for _, c := range eval.Clusters {
		cats := make([]string, 0, len(c.Counts))
		for cat := range c.Counts {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		parts := make([]string, len(cats))
		for i, cat := range cats {
			parts[i] = fmt.Sprintf("%s=%d", cat, c.Counts[cat])
		}
		fmt.Fprintf(out, "%s: %d images [%s]\n", c.Name, c.Total, strings.Join(parts, " "))
		if c.Predominant != "" {
			fmt.Fprintf(out, "  predominant: %s, misplaced: %d\n", c.Predominant, c.Misplaced)
		}
	}

	fmt.Fprintf(out, "\nTotal images: %d\n", eval.Total)
	fmt.Fprintf(out, "Misplaced: %d\n", eval.Misplaced)
	fmt.Fprintf(out, "Purity: %.2f%%\n", 100*eval.Purity())

	if evalPlotDir == "" {
		return nil
	}
	if err := os.MkdirAll(evalPlotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	for _, chart := range []struct {
		file string
		plot func(*evaluate.Evaluation, string) error
	}{
		{report.CategoryCountsFile, report.PlotCategoryCounts},
		{report.MisplacedFile, report.PlotMisplaced},
	} {
		path := filepath.Join(evalPlotDir, chart.file)
		if err := chart.plot(eval, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "Chart saved: %s\n", path)
	}
	return nil
}
