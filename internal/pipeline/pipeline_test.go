package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/logging"
	"github.com/Yutarop/imgcluster/internal/materialize"
	"github.com/Yutarop/imgcluster/internal/report"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func writeSolid(t *testing.T, dir, name string, c color.RGBA, size int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func redBlueDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"red_1.png", "red_2.png", "red_3.png"} {
		writeSolid(t, dir, name, red, 128)
	}
	for _, name := range []string{"blue_1.png", "blue_2.png", "blue_3.png"} {
		writeSolid(t, dir, name, blue, 128)
	}
	return dir
}

// smallConfig keeps rasters small so tests that do not depend on the
// default geometry run fast.
func smallConfig(in, out string) Config {
	cfg := DefaultConfig()
	cfg.InputDir = in
	cfg.OutputDir = out
	cfg.Width, cfg.Height = 32, 32
	cfg.Features.HistogramBins = 8
	cfg.Features.HOG.Window = features.Size{}
	cfg.Workers = 2
	cfg.Visualize = false
	return cfg
}

func names(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	sort.Strings(out)
	return out
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestExecute_RedBlue(t *testing.T) {
	in := redBlueDir(t)

	var memberships []map[int][]string
	for i := 0; i < 2; i++ {
		out := filepath.Join(t.TempDir(), "out")
		cfg := DefaultConfig()
		cfg.InputDir = in
		cfg.OutputDir = out
		cfg.KMeans.K = 2
		cfg.Workers = 3

		p, err := New(cfg, nil)
		require.NoError(t, err)
		run, err := p.Execute(context.Background())
		require.NoError(t, err)

		require.Len(t, run.Images, 6)
		assert.Empty(t, run.Skipped)
		assert.Equal(t, features.DefaultConfig().Layout(128, 128), run.Layout)
		assert.Equal(t, 32768+15+34020, run.Layout.Len())

		members := run.Members()
		require.Len(t, members, 2)
		groups := [][]string{names(members[0]), names(members[1])}
		sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
		assert.Equal(t, []string{"blue_1.png", "blue_2.png", "blue_3.png"}, groups[0])
		assert.Equal(t, []string{"red_1.png", "red_2.png", "red_3.png"}, groups[1])

		for id, paths := range members {
			dir := materialize.ClusterDir(out, id)
			assert.ElementsMatch(t, names(paths), listDir(t, dir))
			for _, src := range paths {
				want, err := os.ReadFile(src)
				require.NoError(t, err)
				got, err := os.ReadFile(filepath.Join(dir, filepath.Base(src)))
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}
		assert.Equal(t, 6, run.Copy.Copied)

		summary, err := report.ReadSummary(filepath.Join(out, SummaryFile))
		require.NoError(t, err)
		assert.Equal(t, run.ID, summary.RunID)
		assert.Equal(t, 6, summary.AcceptedImages)
		assert.Equal(t, 2, summary.NClusters)
		assert.Len(t, summary.Images, 6)
		require.NotNil(t, summary.Silhouette)
		assert.InDelta(t, 1.0, *summary.Silhouette, 1e-9)
		assert.FileExists(t, filepath.Join(out, VisualizationFile))

		for _, img := range summary.Images {
			if filepath.Base(img.Path)[:3] == "red" {
				assert.Equal(t, "#ff0000", img.Palette[0])
			} else {
				assert.Equal(t, "#0000ff", img.Palette[0])
			}
		}

		memberships = append(memberships, members)
	}
	assert.Equal(t, memberships[0], memberships[1], "same seed must give the same membership")
}

func TestExecute_SkipsUndecodable(t *testing.T) {
	in := t.TempDir()
	writeSolid(t, in, "a.png", red, 40)
	writeSolid(t, in, "b.png", red, 40)
	writeSolid(t, in, "c.png", blue, 40)
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0o644))

	out := filepath.Join(t.TempDir(), "out")
	cfg := smallConfig(in, out)
	cfg.KMeans.K = 2

	p, err := New(cfg, nil)
	require.NoError(t, err)
	run, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Len(t, run.Paths, 4)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, names(run.Images))
	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "broken.png", filepath.Base(run.Skipped[0].Path))

	r, _ := run.Matrix.Dims()
	assert.Equal(t, 3, r, "one row per accepted image")
	assert.Equal(t, run.Result.Labels[0], run.Result.Labels[1])
	assert.NotEqual(t, run.Result.Labels[0], run.Result.Labels[2])
}

func TestExecute_RowOrderFollowsScanOrder(t *testing.T) {
	in := t.TempDir()
	for _, name := range []string{"d.png", "a.png", "c.png", "b.png"} {
		writeSolid(t, in, name, red, 32)
	}
	cfg := smallConfig(in, filepath.Join(t.TempDir(), "out"))
	cfg.Workers = 4

	p, err := New(cfg, nil)
	require.NoError(t, err)
	run, err := p.Features(context.Background())
	require.NoError(t, err)

	var got []string
	for _, path := range run.Images {
		got = append(got, filepath.Base(path))
	}
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"}, got)
}

func TestExecute_EmptyBatch(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		p, err := New(smallConfig(t.TempDir(), t.TempDir()), nil)
		require.NoError(t, err)
		_, err = p.Execute(context.Background())
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("all skipped", func(t *testing.T) {
		in := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(in, "x.png"), []byte("junk"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(in, "y.jpg"), []byte("junk"), 0o644))

		p, err := New(smallConfig(in, t.TempDir()), nil)
		require.NoError(t, err)
		run, err := p.Execute(context.Background())
		assert.ErrorIs(t, err, ErrEmptyBatch)
		assert.Len(t, run.Skipped, 2)
	})
}

func TestExecute_InsufficientData(t *testing.T) {
	in := t.TempDir()
	writeSolid(t, in, "a.png", red, 32)
	writeSolid(t, in, "b.png", blue, 32)
	out := filepath.Join(t.TempDir(), "out")

	cfg := smallConfig(in, out)
	cfg.KMeans.K = 3
	p, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	assert.ErrorIs(t, err, kmeans.ErrInsufficientData)
	assert.False(t, errors.Is(err, ErrEmptyBatch))
	assert.NoDirExists(t, out, "nothing is materialized after a fatal error")
}

// lengthByColor returns a one-entry vector for red images and a two-entry
// vector otherwise.
type lengthByColor struct{ name string }

func (e lengthByColor) Name() string { return e.name }

func (e lengthByColor) Extract(_ context.Context, img *image.RGBA) (features.Vector, error) {
	if img.Pix[0] > 128 {
		return features.Vector{1}, nil
	}
	return features.Vector{0, 1}, nil
}

type constant struct{ name string }

func (e constant) Name() string { return e.name }

func (e constant) Extract(context.Context, *image.RGBA) (features.Vector, error) {
	return features.Vector{0.5}, nil
}

type failing struct{ name string }

func (e failing) Name() string { return e.name }

func (e failing) Extract(_ context.Context, img *image.RGBA) (features.Vector, error) {
	if img.Pix[2] > 128 {
		return nil, errors.New("boom")
	}
	return features.Vector{1}, nil
}

func TestExecute_DimensionMismatch(t *testing.T) {
	in := t.TempDir()
	writeSolid(t, in, "a.png", red, 32)
	writeSolid(t, in, "b.png", blue, 32)

	p, err := New(smallConfig(in, t.TempDir()), nil)
	require.NoError(t, err)
	p.WithExtractors(&features.Set{
		Histogram: constant{features.SegmentHistogram},
		Dominant:  constant{features.SegmentDominant},
		Shape:     lengthByColor{features.SegmentShape},
	})

	_, err = p.Execute(context.Background())
	var mismatch *features.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, features.SegmentShape, mismatch.Segment)
	assert.Equal(t, 1, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
	assert.Equal(t, "b.png", filepath.Base(mismatch.Path))
}

func TestExecute_ExtractorFailureSkipsImage(t *testing.T) {
	in := t.TempDir()
	writeSolid(t, in, "a.png", red, 32)
	writeSolid(t, in, "b.png", blue, 32)
	writeSolid(t, in, "c.png", red, 32)

	cfg := smallConfig(in, filepath.Join(t.TempDir(), "out"))
	cfg.KMeans.K = 1
	p, err := New(cfg, nil)
	require.NoError(t, err)
	p.WithExtractors(&features.Set{
		Histogram: constant{features.SegmentHistogram},
		Dominant:  failing{features.SegmentDominant},
		Shape:     constant{features.SegmentShape},
	})

	run, err := p.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "c.png"}, names(run.Images))
	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "b.png", filepath.Base(run.Skipped[0].Path))
	assert.Contains(t, run.Skipped[0].Reason, "dominant extractor")
}

func TestExecute_Cancelled(t *testing.T) {
	in := redBlueDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(smallConfig(in, t.TempDir()), nil)
	require.NoError(t, err)
	_, err = p.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	base := smallConfig("in", "out")
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input", func(c *Config) { c.InputDir = "" }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
		{"tiny image", func(c *Config) { c.Width = 4 }},
		{"bad interpolation", func(c *Config) { c.Interpolation = "cubic-ish" }},
		{"bad normalization", func(c *Config) { c.Normalize = "per-pixel" }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"bad k", func(c *Config) { c.KMeans.K = 0 }},
		{"hog window too large", func(c *Config) { c.Features.HOG.Window = features.Size{Width: 64, Height: 128} }},
		{"auto k without range", func(c *Config) { c.AutoK, c.MaxK = true, 1 }},
		{"force on input directory", func(c *Config) { c.OutputDir, c.Force = c.InputDir, true }},
		{"force on parent of input", func(c *Config) {
			c.InputDir, c.OutputDir, c.Force = filepath.Join("photos", "raw"), "photos", true
		}},
		{"input inside a cluster folder", func(c *Config) {
			c.InputDir, c.OutputDir = filepath.Join("out", "cluster_1"), "out"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateOutputLocations(t *testing.T) {
	tests := []struct {
		name    string
		in, out string
		force   bool
	}{
		{"separate trees with force", "photos", "clustered", true},
		{"sibling with shared prefix", "photos", "photos-out", true},
		{"output inside input with force", "photos", filepath.Join("photos", "clustered"), true},
		{"same directory without force", "photos", "photos", false},
		{"input in plain subfolder without force", filepath.Join("out", "raw"), "out", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig(tt.in, tt.out)
			cfg.Force = tt.force
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNew_ForceOverInputKeepsImages(t *testing.T) {
	in := redBlueDir(t)
	cfg := smallConfig(in, in)
	cfg.Force = true
	cfg.KMeans.K = 2

	_, err := New(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg.OutputDir = filepath.Dir(in)
	_, err = New(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	assert.FileExists(t, filepath.Join(in, "red_1.png"))
	assert.Len(t, listDir(t, in), 6)
}

func TestExecute_RerunReplacesPreviousResults(t *testing.T) {
	in := t.TempDir()
	for i := 1; i <= 3; i++ {
		writeSolid(t, in, fmt.Sprintf("red_%d.png", i), red, 32)
		writeSolid(t, in, fmt.Sprintf("blue_%d.png", i), blue, 32)
	}
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "notes.txt"), []byte("keep"), 0o644))

	for seed := int64(1); seed <= 6; seed++ {
		cfg := smallConfig(in, out)
		cfg.KMeans.Seed = seed
		cfg.KMeans.K = 2 + int(seed%2)

		p, err := New(cfg, nil)
		require.NoError(t, err)
		run, err := p.Execute(context.Background())
		require.NoError(t, err)

		members := run.Members()
		var clusterDirs []string
		copies := 0
		for _, name := range listDir(t, out) {
			if !materialize.IsClusterDir(name) {
				continue
			}
			clusterDirs = append(clusterDirs, name)
			copies += len(listDir(t, filepath.Join(out, name)))
		}
		assert.Len(t, clusterDirs, len(members), "seed %d", seed)
		assert.Equal(t, 6, copies, "seed %d: every image is copied exactly once", seed)
		for id, paths := range members {
			assert.ElementsMatch(t, names(paths), listDir(t, materialize.ClusterDir(out, id)), "seed %d", seed)
		}
	}
	assert.FileExists(t, filepath.Join(out, "notes.txt"))
}

func TestExecute_AutoK(t *testing.T) {
	in := t.TempDir()
	for i := 1; i <= 3; i++ {
		writeSolid(t, in, fmt.Sprintf("red_%d.png", i), red, 32)
		writeSolid(t, in, fmt.Sprintf("blue_%d.png", i), blue, 32)
	}
	out := filepath.Join(t.TempDir(), "out")
	cfg := smallConfig(in, out)
	cfg.AutoK = true
	cfg.MaxK = 4
	cfg.KMeans.K = 0
	cfg.Visualize = true

	p, err := New(cfg, nil)
	require.NoError(t, err)
	run, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, run.K)
	require.Len(t, run.Sweep, 4)
	assert.Equal(t, 1, run.Sweep[0].K)
	assert.Len(t, run.Members(), 2)
	assert.FileExists(t, filepath.Join(out, EvaluationFile))
	assert.FileExists(t, filepath.Join(out, VisualizationFile))

	summary, err := report.ReadSummary(filepath.Join(out, SummaryFile))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NClusters)
	assert.Len(t, summary.Sweep, 4)
}

func TestExtract_LogsEveryImagePath(t *testing.T) {
	in := t.TempDir()
	a := writeSolid(t, in, "a.png", red, 32)
	b := writeSolid(t, in, "b.png", blue, 32)

	var buf bytes.Buffer
	p, err := New(smallConfig(in, ""), logging.NewJSONLogger(&buf, slog.LevelDebug))
	require.NoError(t, err)
	_, err = p.Features(context.Background())
	require.NoError(t, err)

	var logged []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] == "features extracted" {
			logged = append(logged, rec["path"].(string))
			assert.EqualValues(t, 3*5, rec["dominant"])
		}
	}
	assert.ElementsMatch(t, []string{a, b}, logged)
}

func TestRun_AssignmentsBeforeClustering(t *testing.T) {
	run := NewRun(DefaultConfig())
	assert.NotEmpty(t, run.ID)
	assert.Nil(t, run.Assignments())
	assert.Empty(t, run.Members())
}
