package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/imageio"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/materialize"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every named parameter of a batch run.
type Config struct {
	InputDir   string
	OutputDir  string
	Extensions []string

	Width         int
	Height        int
	Interpolation string

	Features  features.Config
	Normalize features.NormalizeMode
	KMeans    kmeans.Config

	// AutoK picks K by sweeping 1..MaxK and keeping the best silhouette.
	// KMeans.K is ignored when it is set.
	AutoK bool
	MaxK  int

	Workers   int
	Force     bool
	Visualize bool
}

// DefaultConfig returns the defaults of the cluster command.
func DefaultConfig() Config {
	return Config{
		Extensions:    imageio.DefaultExtensions,
		Width:         128,
		Height:        128,
		Interpolation: "bilinear",
		Features:      features.DefaultConfig(),
		Normalize:     features.NormalizeSegment,
		KMeans:        kmeans.DefaultConfig(),
		MaxK:          10,
		Workers:       runtime.NumCPU(),
		Visualize:     true,
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory is required", ErrInvalidConfig)
	}
	if len(imageio.NormalizeExtensions(c.Extensions)) == 0 {
		return fmt.Errorf("%w: at least one image extension is required", ErrInvalidConfig)
	}
	if c.Width < 8 || c.Height < 8 {
		return fmt.Errorf("%w: image size must be at least 8x8, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if _, err := imageio.ParseInterpolation(c.Interpolation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := features.ParseNormalizeMode(string(c.Normalize)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: worker count must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if err := c.Features.Validate(c.Width, c.Height); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	km := c.KMeans
	if c.AutoK {
		if c.MaxK < 2 {
			return fmt.Errorf("%w: automatic cluster count needs max K of at least 2, got %d", ErrInvalidConfig, c.MaxK)
		}
		km.K = 1
	}
	if err := km.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c.validateOutput()
}

// validateOutput refuses output locations whose cleanup would delete the
// input images.
func (c Config) validateOutput() error {
	if c.OutputDir == "" {
		return nil
	}
	in, err := filepath.Abs(c.InputDir)
	if err != nil {
		return fmt.Errorf("%w: input directory: %v", ErrInvalidConfig, err)
	}
	out, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output directory: %v", ErrInvalidConfig, err)
	}

	rel, err := filepath.Rel(out, in)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Input is not inside the output tree.
		return nil
	}
	if c.Force {
		return fmt.Errorf("%w: --force would remove the input directory %s with the output directory %s",
			ErrInvalidConfig, c.InputDir, c.OutputDir)
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	if materialize.IsClusterDir(first) {
		return fmt.Errorf("%w: input directory %s lies inside a cluster folder of %s, which is replaced on every run",
			ErrInvalidConfig, c.InputDir, c.OutputDir)
	}
	return nil
}
