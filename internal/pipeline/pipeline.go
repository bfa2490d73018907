// Package pipeline runs one batch: scan, extract, fuse, normalize, cluster
// and materialize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/imageio"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/logging"
	"github.com/Yutarop/imgcluster/internal/materialize"
	"github.com/Yutarop/imgcluster/internal/report"
)

// ErrEmptyBatch means no image in the batch produced a feature vector.
var ErrEmptyBatch = errors.New("no features extracted")

// SilhouetteLimit is the largest batch for which the summary silhouette is
// computed. The score is quadratic in the number of images.
const SilhouetteLimit = 500

// Output file names written next to the cluster folders.
const (
	SummaryFile       = "summary.json"
	VisualizationFile = "cluster_visualization.png"
	EvaluationFile    = "cluster_evaluation.png"
)

// Pipeline executes batch runs for one configuration.
type Pipeline struct {
	cfg    Config
	log    *logging.Logger
	loader *imageio.Loader
	set    *features.Set
}

// New validates cfg and prepares the loader and extractors.
func New(cfg Config, log *logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interp, err := imageio.ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NoopLogger()
	}
	return &Pipeline{
		cfg:    cfg,
		log:    log,
		loader: imageio.NewLoader(cfg.Width, cfg.Height, interp),
		set:    features.NewSet(cfg.Features),
	}, nil
}

// WithExtractors replaces the extractor set.
func (p *Pipeline) WithExtractors(set *features.Set) *Pipeline {
	p.set = set
	return p
}

// Execute runs every stage and writes the output tree.
func (p *Pipeline) Execute(ctx context.Context) (*Run, error) {
	run, err := p.Features(ctx)
	if err != nil {
		return run, err
	}
	for _, stage := range []func(context.Context, *Run) error{
		p.Cluster,
		p.Materialize,
		p.Report,
	} {
		if err := stage(ctx, run); err != nil {
			return run, err
		}
	}
	return run, nil
}

// Features scans the input and builds the normalized feature matrix.
func (p *Pipeline) Features(ctx context.Context) (*Run, error) {
	run := NewRun(p.cfg)
	if err := p.Scan(ctx, run); err != nil {
		return run, err
	}
	if err := p.Extract(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Scan lists the candidate images of the input directory.
func (p *Pipeline) Scan(ctx context.Context, run *Run) error {
	paths, err := imageio.Scan(p.cfg.InputDir, p.cfg.Extensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no supported image files found in %s", ErrEmptyBatch, p.cfg.InputDir)
	}
	run.Paths = paths
	p.log.WithRun(run.ID).InfoContext(ctx, "scanned input directory",
		"dir", p.cfg.InputDir,
		"images", len(paths),
	)
	return nil
}

type extractTask struct {
	index int
	path  string
}

type extractResult struct {
	index int
	segs  features.Segments
	err   error
}

// Extract loads every scanned image on the worker pool, then fuses the
// surviving rows in scan order and normalizes the matrix.
func (p *Pipeline) Extract(ctx context.Context, run *Run) error {
	log := p.log.WithRun(run.ID).WithStage("extract")

	workers := p.cfg.Workers
	if workers > len(run.Paths) {
		workers = len(run.Paths)
	}
	tasks := make(chan extractTask, len(run.Paths))
	results := make(chan extractResult, len(run.Paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results <- p.extractOne(ctx, task)
			}
		}()
	}

	for i, path := range run.Paths {
		tasks <- extractTask{index: i, path: path}
	}
	close(tasks)

	go func() {
		wg.Wait()
		close(results)
	}()

	slots := make([]extractResult, len(run.Paths))
	for r := range results {
		slots[r.index] = r
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Past the barrier: rows are fused in scan order regardless of which
	// worker finished first.
	var fuser features.Fuser
	for i, r := range slots {
		path := run.Paths[i]
		if r.err != nil {
			log.LogSkip(ctx, path, r.err)
			run.Skipped = append(run.Skipped, Skip{Path: path, Reason: r.err.Error()})
			continue
		}
		if err := fuser.Add(path, r.segs); err != nil {
			return err
		}
		run.Images = append(run.Images, path)
		run.Palettes = append(run.Palettes, r.segs.Dominant)
	}
	log.LogBatch(ctx, len(run.Paths), len(run.Images))

	if fuser.Len() == 0 {
		return fmt.Errorf("%w: all %d images were skipped", ErrEmptyBatch, len(run.Paths))
	}
	m, err := fuser.Matrix()
	if err != nil {
		if errors.Is(err, features.ErrNoRows) {
			return fmt.Errorf("%w: %v", ErrEmptyBatch, err)
		}
		return err
	}
	run.Layout = fuser.Layout()
	if err := features.Normalize(m, p.cfg.Normalize, run.Layout); err != nil {
		return err
	}
	run.Matrix = m
	log.DebugContext(ctx, "feature matrix ready",
		"rows", len(run.Images),
		"dimensions", run.Layout.Len(),
		"normalize", p.cfg.Normalize,
	)
	return nil
}

func (p *Pipeline) extractOne(ctx context.Context, task extractTask) extractResult {
	res := extractResult{index: task.index}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	img, err := p.loader.Load(task.path)
	if err != nil {
		res.err = err
		return res
	}
	segs, err := p.set.Extract(ctx, img)
	if err != nil {
		res.err = &imageio.LoadError{Path: task.path, Err: err}
		return res
	}
	res.segs = segs
	p.log.WithPath(task.path).DebugContext(ctx, "features extracted",
		"histogram", len(segs.Histogram),
		"dominant", len(segs.Dominant),
		"shape", len(segs.Shape),
	)
	return res
}

// Cluster partitions the feature matrix. With AutoK the cluster count is
// the one recommended by a silhouette sweep over 1..MaxK.
func (p *Pipeline) Cluster(ctx context.Context, run *Run) error {
	log := p.log.WithRun(run.ID).WithStage("cluster")

	cfg := p.cfg.KMeans
	if p.cfg.AutoK {
		points, err := kmeans.Sweep(ctx, run.Matrix, cfg, p.cfg.MaxK)
		if err != nil {
			return fmt.Errorf("cluster count sweep failed: %w", err)
		}
		run.Sweep = points
		cfg.K = kmeans.Recommend(points)
		log.InfoContext(ctx, "cluster count selected",
			"k", cfg.K,
			"max_k", p.cfg.MaxK,
		)
	}
	run.K = cfg.K

	res, err := kmeans.Cluster(ctx, run.Matrix, cfg)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	run.Result = res

	if n := len(res.Labels); n <= SilhouetteLimit {
		s := kmeans.Silhouette(run.Matrix, res.Labels)
		run.Silhouette = &s
	}
	log.InfoContext(ctx, "clustering completed",
		"k", cfg.K,
		"inertia", res.Inertia,
		"iterations", res.Iterations,
		"converged", res.Converged,
	)
	return nil
}

// Materialize copies every accepted image into its cluster folder.
func (p *Pipeline) Materialize(ctx context.Context, run *Run) error {
	log := p.log.WithRun(run.ID).WithStage("materialize")

	err := materialize.PrepareOutput(p.cfg.OutputDir, p.cfg.Force, SummaryFile, VisualizationFile, EvaluationFile)
	if err != nil {
		return err
	}
	rep, err := materialize.New(p.cfg.Workers, log).Materialize(ctx, p.cfg.OutputDir, run.Assignments())
	if err != nil {
		return fmt.Errorf("failed to organize images: %w", err)
	}
	run.Copy = rep
	log.InfoContext(ctx, "images organized",
		"copied", rep.Copied,
		"failed", len(rep.Failures),
	)
	return nil
}

// Report writes summary.json and, when enabled, the cluster scatter plot.
func (p *Pipeline) Report(ctx context.Context, run *Run) error {
	log := p.log.WithRun(run.ID).WithStage("report")

	if err := report.WriteSummary(filepath.Join(p.cfg.OutputDir, SummaryFile), p.Summary(run)); err != nil {
		return err
	}
	if !p.cfg.Visualize {
		return nil
	}

	if len(run.Sweep) > 0 {
		path := filepath.Join(p.cfg.OutputDir, EvaluationFile)
		if err := report.PlotSweep(run.Sweep, path); err != nil {
			log.WarnContext(ctx, "skipping cluster count chart", "error", err)
		}
	}

	points, err := report.Project2D(run.Matrix)
	if err != nil {
		// The plot is optional output; a failed projection leaves the clusters intact.
		log.WarnContext(ctx, "skipping visualization", "error", err)
		return nil
	}
	path := filepath.Join(p.cfg.OutputDir, VisualizationFile)
	if err := report.PlotClusters(points, run.Result.Labels, run.K, path); err != nil {
		log.WarnContext(ctx, "skipping visualization", "error", err)
		return nil
	}
	log.DebugContext(ctx, "visualization saved", "path", path)
	return nil
}

// Summary assembles the summary.json document of run.
func (p *Pipeline) Summary(run *Run) *report.Summary {
	s := &report.Summary{
		RunID:          run.ID,
		StartedAt:      run.Started,
		TotalImages:    len(run.Paths),
		AcceptedImages: len(run.Images),
		NClusters:      run.K,
		Sweep:          run.Sweep,
		Dimensions:     run.Layout.Len(),
		Layout:         run.Layout,
		Normalization:  string(p.cfg.Normalize),
		Silhouette:     run.Silhouette,
		Copy:           run.Copy,
		Config:         report.NewConfigSnapshot(p.cfg.Width, p.cfg.Height, p.cfg.Interpolation, p.cfg.Features, p.cfg.KMeans),
	}
	for _, skip := range run.Skipped {
		s.Skipped = append(s.Skipped, report.Skip{Path: skip.Path, Reason: skip.Reason})
	}
	if run.Result != nil {
		s.Inertia = run.Result.Inertia
		s.Iterations = run.Result.Iterations
		s.Converged = run.Result.Converged
		s.ClusterDistribution = report.Distribution(run.Result.Labels)
		for i, path := range run.Images {
			s.Images = append(s.Images, report.ImageEntry{
				Path:    path,
				Cluster: run.Result.Labels[i],
				Palette: report.HexPalette(run.Palettes[i]),
			})
		}
	}
	return s
}
