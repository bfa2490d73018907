// Package report writes the artifacts that describe a finished batch run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/materialize"
)

// Skip is one image dropped from the batch.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ImageEntry records where one accepted image went.
type ImageEntry struct {
	Path    string   `json:"path"`
	Cluster int      `json:"cluster"`
	Palette []string `json:"palette,omitempty"`
}

// ConfigSnapshot is the subset of the run configuration kept in the summary.
type ConfigSnapshot struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Interpolation string  `json:"interpolation"`
	HistogramBins int     `json:"histogram_bins"`
	Colors        int     `json:"colors"`
	HOGWindow     string  `json:"hog_window"`
	HOGBlock      string  `json:"hog_block"`
	HOGCell       string  `json:"hog_cell"`
	HOGBins       int     `json:"hog_bins"`
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"`
	Restarts      int     `json:"restarts"`
	Seed          int64   `json:"seed"`
	Init          string  `json:"init"`
}

// NewConfigSnapshot captures the parameters that shaped a run.
func NewConfigSnapshot(width, height int, interpolation string, fc features.Config, kc kmeans.Config) ConfigSnapshot {
	window := "full"
	if fc.HOG.Window.Width > 0 {
		window = fc.HOG.Window.String()
	}
	return ConfigSnapshot{
		Width:         width,
		Height:        height,
		Interpolation: interpolation,
		HistogramBins: fc.HistogramBins,
		Colors:        fc.Colors,
		HOGWindow:     window,
		HOGBlock:      fc.HOG.Block.String(),
		HOGCell:       fc.HOG.Cell.String(),
		HOGBins:       fc.HOG.Bins,
		MaxIterations: kc.MaxIterations,
		Tolerance:     kc.Tolerance,
		Restarts:      kc.Restarts,
		Seed:          kc.Seed,
		Init:          kc.Init.String(),
	}
}

// Summary is the content of summary.json.
type Summary struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	TotalImages    int       `json:"total_images"`
	AcceptedImages int       `json:"accepted_images"`
	Skipped        []Skip    `json:"skipped,omitempty"`

	NClusters     int                 `json:"n_clusters"`
	Sweep         []kmeans.SweepPoint `json:"k_sweep,omitempty"`
	Dimensions    int                 `json:"feature_dimensions"`
	Layout        features.Layout     `json:"feature_layout"`
	Normalization string              `json:"normalization"`

	Inertia             float64        `json:"inertia"`
	Iterations          int            `json:"iterations"`
	Converged           bool           `json:"converged"`
	Silhouette          *float64       `json:"silhouette,omitempty"`
	ClusterDistribution map[string]int `json:"cluster_distribution"`

	Images []ImageEntry        `json:"images"`
	Copy   *materialize.Report `json:"copy,omitempty"`
	Config ConfigSnapshot      `json:"config"`
}

// Distribution counts labels per "cluster_<id>" key.
func Distribution(labels []int) map[string]int {
	dist := make(map[string]int)
	for _, l := range labels {
		dist[fmt.Sprintf("cluster_%d", l)]++
	}
	return dist
}

// HexPalette renders a dominant color segment as "#rrggbb" strings.
func HexPalette(v features.Vector) []string {
	palette := features.Palette(v)
	out := make([]string, len(palette))
	for i, c := range palette {
		out[i] = colorful.Color{R: c[0] / 255, G: c[1] / 255, B: c[2] / 255}.Clamped().Hex()
	}
	return out
}

// WriteSummary writes s as indented JSON to path.
func WriteSummary(path string, s *Summary) error {
	sort.SliceStable(s.Skipped, func(i, j int) bool { return s.Skipped[i].Path < s.Skipped[j].Path })

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &s, nil
}
