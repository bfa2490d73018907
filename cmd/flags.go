package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/imageio"
	"github.com/Yutarop/imgcluster/internal/pipeline"
)

// pipelineFlags are the extraction and clustering flags shared by the
// cluster and suggest commands.
type pipelineFlags struct {
	inputDir      string
	extensions    []string
	size          string
	interpolation string
	workers       int

	bins   int
	colors int

	hogWindow       string
	hogWindowStride string
	hogBlock        string
	hogStride       string
	hogCell         string
	hogBins         int

	clusters  int
	maxK      int
	maxIter   int
	tolerance float64
	restarts  int
	seed      int64
	normalize string
}

func (f *pipelineFlags) register(c *cobra.Command) {
	currentDir, _ := os.Getwd()
	fc := features.DefaultConfig()
	pc := pipeline.DefaultConfig()
	hog := fc.HOG

	fs := c.Flags()
	fs.StringVarP(&f.inputDir, "input", "i", currentDir, "Input directory containing images")
	fs.StringSliceVar(&f.extensions, "ext", imageio.DefaultExtensions, "Image file extensions to include")
	fs.StringVar(&f.size, "size", "128", "Resize target as N or WxH")
	fs.StringVar(&f.interpolation, "interpolation", pc.Interpolation, "Resize interpolation (nearest, bilinear, bicubic, mitchell, lanczos2, lanczos3)")
	fs.IntVarP(&f.workers, "workers", "w", min(runtime.NumCPU(), 32), "Number of parallel workers (1-32)")

	fs.IntVar(&f.bins, "bins", fc.HistogramBins, "HSV histogram bins per channel")
	fs.IntVar(&f.colors, "colors", fc.Colors, "Dominant colors per image")

	fs.StringVar(&f.hogWindow, "hog-window", hog.Window.String(), "HOG detection window as WxH, or full")
	fs.StringVar(&f.hogWindowStride, "hog-window-stride", hog.WindowStride.String(), "HOG window stride as WxH")
	fs.StringVar(&f.hogBlock, "hog-block", hog.Block.String(), "HOG block size as WxH")
	fs.StringVar(&f.hogStride, "hog-stride", hog.BlockStride.String(), "HOG block stride as WxH")
	fs.StringVar(&f.hogCell, "hog-cell", hog.Cell.String(), "HOG cell size as WxH")
	fs.IntVar(&f.hogBins, "hog-bins", hog.Bins, "HOG orientation bins")

	fs.IntVar(&f.maxK, "max-k", pc.MaxK, "Largest cluster count tried by the silhouette sweep (2-50)")
	fs.IntVar(&f.maxIter, "max-iter", pc.KMeans.MaxIterations, "Maximum k-means iterations per restart")
	fs.Float64Var(&f.tolerance, "tolerance", pc.KMeans.Tolerance, "Convergence tolerance on centroid movement")
	fs.IntVar(&f.restarts, "restarts", pc.KMeans.Restarts, "k-means restarts; the lowest inertia wins")
	fs.Int64Var(&f.seed, "seed", pc.KMeans.Seed, "Random seed for every k-means run")
	fs.StringVar(&f.normalize, "normalize", string(pc.Normalize), "Min-max normalization scope (global, segment, column)")
}

// config builds and validates the pipeline configuration described by f.
func (f *pipelineFlags) config() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	if f.workers < 1 || f.workers > 32 {
		return cfg, fmt.Errorf("%w: worker count must be between 1 and 32, got %d", pipeline.ErrInvalidConfig, f.workers)
	}
	if _, err := os.Stat(f.inputDir); os.IsNotExist(err) {
		return cfg, fmt.Errorf("%w: input directory does not exist: %s", pipeline.ErrInvalidConfig, f.inputDir)
	}
	if file, err := os.Open(f.inputDir); err != nil {
		return cfg, fmt.Errorf("%w: cannot read input directory: %v", pipeline.ErrInvalidConfig, err)
	} else {
		file.Close()
	}

	if f.maxK < 2 || f.maxK > 50 {
		return cfg, fmt.Errorf("%w: max-k must be between 2 and 50, got %d", pipeline.ErrInvalidConfig, f.maxK)
	}

	size, err := features.ParseSize(f.size)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", pipeline.ErrInvalidConfig, err)
	}
	mode, err := features.ParseNormalizeMode(f.normalize)
	if err != nil {
		return cfg, err
	}

	hog := features.HOGConfig{Bins: f.hogBins, ClipThreshold: cfg.Features.HOG.ClipThreshold}
	if !strings.EqualFold(strings.TrimSpace(f.hogWindow), "full") {
		if hog.Window, err = features.ParseSize(f.hogWindow); err != nil {
			return cfg, fmt.Errorf("%w: hog window: %v", pipeline.ErrInvalidConfig, err)
		}
	}
	for _, s := range []struct {
		name string
		raw  string
		dst  *features.Size
	}{
		{"hog window stride", f.hogWindowStride, &hog.WindowStride},
		{"hog block", f.hogBlock, &hog.Block},
		{"hog stride", f.hogStride, &hog.BlockStride},
		{"hog cell", f.hogCell, &hog.Cell},
	} {
		if *s.dst, err = features.ParseSize(s.raw); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", pipeline.ErrInvalidConfig, s.name, err)
		}
	}

	cfg.InputDir = f.inputDir
	cfg.Extensions = f.extensions
	cfg.Width, cfg.Height = size.Width, size.Height
	cfg.Interpolation = f.interpolation
	cfg.Workers = f.workers
	cfg.Normalize = mode

	cfg.Features.HistogramBins = f.bins
	cfg.Features.Colors = f.colors
	cfg.Features.HOG = hog
	cfg.Features.Seed = f.seed

	cfg.KMeans.K = f.clusters
	cfg.AutoK = f.clusters == 0
	cfg.MaxK = f.maxK
	cfg.KMeans.MaxIterations = f.maxIter
	cfg.KMeans.Tolerance = f.tolerance
	cfg.KMeans.Restarts = f.restarts
	cfg.KMeans.Seed = f.seed

	return cfg, cfg.Validate()
}
