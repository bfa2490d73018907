// Package materialize copies clustered images into per-cluster directories.
package materialize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yutarop/imgcluster/internal/logging"
)

// Assignment pairs a source image with its cluster id.
type Assignment struct {
	Path    string
	Cluster int
}

// CopyError reports one image that could not be placed. It never
// invalidates the placement of other images.
type CopyError struct {
	Source      string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.Source, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Report summarises one Materialize call.
type Report struct {
	Copied                int          `json:"copied"`
	Bytes                 int64        `json:"bytes"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	Clusters              map[int]int  `json:"clusters"`
	Errors                []string     `json:"errors"`
	Failures              []*CopyError `json:"-"`
}

// Materializer copies images with a bounded number of concurrent workers.
type Materializer struct {
	workers int
	log     *logging.Logger
}

// New returns a Materializer. workers below 1 means one worker.
func New(workers int, log *logging.Logger) *Materializer {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logging.NoopLogger()
	}
	return &Materializer{workers: workers, log: log}
}

// ClusterDir is the directory holding the images of cluster id.
func ClusterDir(outputDir string, id int) string {
	return filepath.Join(outputDir, fmt.Sprintf("cluster_%d", id))
}

// IsClusterDir reports whether name is a directory name produced by
// ClusterDir.
func IsClusterDir(name string) bool {
	id, ok := strings.CutPrefix(name, "cluster_")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(id)
	return err == nil
}

// PrepareOutput creates outputDir. With force, any existing tree is removed
// first. Without it, the cluster folders and the named result files of an
// earlier run are removed and every other entry is left alone.
func PrepareOutput(outputDir string, force bool, results ...string) error {
	if force {
		if err := os.RemoveAll(outputDir); err != nil {
			return fmt.Errorf("failed to remove existing output directory: %w", err)
		}
	} else if err := removePrevious(outputDir, results); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

func removePrevious(outputDir string, results []string) error {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	stale := make(map[string]bool, len(results))
	for _, name := range results {
		stale[name] = true
	}
	for _, entry := range entries {
		if entry.IsDir() && !IsClusterDir(entry.Name()) {
			continue
		}
		if !entry.IsDir() && !stale[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(outputDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove previous results: %w", err)
		}
	}
	return nil
}

// Materialize copies every assigned image to ClusterDir(outputDir, id).
// Individual copy failures are collected in the report; only cancellation
// is returned as an error.
func (m *Materializer) Materialize(ctx context.Context, outputDir string, assignments []Assignment) (*Report, error) {
	start := time.Now()
	report := &Report{Clusters: make(map[int]int)}

	// Only observed cluster ids get a directory.
	observed := make(map[int]bool)
	for _, a := range assignments {
		observed[a.Cluster] = true
	}
	ids := make([]int, 0, len(observed))
	for id := range observed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		report.Clusters[id] = 0
		if err := os.MkdirAll(ClusterDir(outputDir, id), 0o755); err != nil {
			m.log.WarnContext(ctx, "failed to create cluster folder", "cluster", id, "error", err)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, a := range assignments {
		a := a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(ClusterDir(outputDir, a.Cluster), filepath.Base(a.Path))
			n, err := copyFile(a.Path, dst)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ce := &CopyError{Source: a.Path, Destination: dst, Err: err}
				report.Failures = append(report.Failures, ce)
				report.Errors = append(report.Errors, ce.Error())
				m.log.WarnContext(gctx, "failed to copy image", "path", a.Path, "cluster", a.Cluster, "error", err)
				return nil
			}
			report.Copied++
			report.Bytes += n
			report.Clusters[a.Cluster]++
			m.log.DebugContext(gctx, "copied image", "path", a.Path, "destination", dst)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(report.Errors)
	report.ProcessingTimeSeconds = time.Since(start).Seconds()
	return report, nil
}

// copyFile copies src to dst, truncating any existing dst.
func copyFile(src, dst string) (int64, error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	destinationFile, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := io.Copy(destinationFile, sourceFile)
	if err != nil {
		destinationFile.Close()
		return n, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := destinationFile.Close(); err != nil {
		return n, fmt.Errorf("failed to close destination file: %w", err)
	}
	return n, nil
}
