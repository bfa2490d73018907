package features

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrInvalidConfig is returned for extractor parameters that cannot run.
var ErrInvalidConfig = errors.New("invalid feature configuration")

// Vector is one feature vector or one segment of it.
type Vector []float64

// Extractor computes one segment of the fused feature vector.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, img *image.RGBA) (Vector, error)
}

// Segment names, in fused order.
const (
	SegmentHistogram = "histogram"
	SegmentDominant  = "dominant"
	SegmentShape     = "shape"
)

// Segments holds the three sub-vectors of one image.
type Segments struct {
	Histogram Vector
	Dominant  Vector
	Shape     Vector
}

// Config holds every extractor parameter of a run.
type Config struct {
	HistogramBins int

	Colors          int
	ColorIterations int
	ColorTolerance  float64
	ColorRestarts   int

	HOG HOGConfig

	// Seed drives dominant color initialization.
	Seed int64
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		HistogramBins:   32,
		Colors:          5,
		ColorIterations: 100,
		ColorTolerance:  0.2,
		ColorRestarts:   3,
		HOG:             DefaultHOGConfig(),
		Seed:            42,
	}
}

// Validate checks c against the raster geometry the extractors will see.
func (c Config) Validate(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidConfig, width, height)
	}
	if c.HistogramBins < 1 || c.HistogramBins > 256 {
		return fmt.Errorf("%w: histogram bins must be in [1, 256], got %d", ErrInvalidConfig, c.HistogramBins)
	}
	if c.Colors < 1 || c.Colors > width*height {
		return fmt.Errorf("%w: dominant colors must be in [1, %d], got %d", ErrInvalidConfig, width*height, c.Colors)
	}
	if c.ColorIterations < 1 || c.ColorRestarts < 1 || c.ColorTolerance < 0 {
		return fmt.Errorf("%w: dominant color iterations, restarts and tolerance must be positive", ErrInvalidConfig)
	}
	return c.HOG.Validate(width, height)
}

// Layout returns the segment lengths c produces for a width x height raster.
func (c Config) Layout(width, height int) Layout {
	return Layout{
		Histogram: c.HistogramBins * c.HistogramBins * c.HistogramBins,
		Dominant:  3 * c.Colors,
		Shape:     c.HOG.Len(width, height),
	}
}

// Set runs the three extractors of one configuration.
type Set struct {
	Histogram Extractor
	Dominant  Extractor
	Shape     Extractor
}

// NewSet builds the extractors described by c.
func NewSet(c Config) *Set {
	return &Set{
		Histogram: ColorHistogram{Bins: c.HistogramBins},
		Dominant: DominantColors{
			K:             c.Colors,
			MaxIterations: c.ColorIterations,
			Tolerance:     c.ColorTolerance,
			Restarts:      c.ColorRestarts,
			Seed:          c.Seed,
		},
		Shape: HOG{Config: c.HOG},
	}
}

// Extract computes all segments of img. Any extractor failure fails the image.
func (s *Set) Extract(ctx context.Context, img *image.RGBA) (Segments, error) {
	var segs Segments
	for _, step := range []struct {
		ex  Extractor
		dst *Vector
	}{
		{s.Histogram, &segs.Histogram},
		{s.Dominant, &segs.Dominant},
		{s.Shape, &segs.Shape},
	} {
		v, err := step.ex.Extract(ctx, img)
		if err != nil {
			return Segments{}, fmt.Errorf("%s extractor: %w", step.ex.Name(), err)
		}
		*step.dst = v
	}
	return segs, nil
}
