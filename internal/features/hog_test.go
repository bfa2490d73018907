package features

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHOGConfig_Len(t *testing.T) {
	cfg := DefaultHOGConfig()
	// 9 windows x 105 blocks x 4 cells x 9 bins.
	assert.Equal(t, 34020, cfg.Len(128, 128))

	cfg.Window = Size{}
	// 15 x 15 blocks over the whole image.
	assert.Equal(t, 8100, cfg.Len(128, 128))
}

func TestHOG_LengthDependsOnGeometryOnly(t *testing.T) {
	cfg := DefaultHOGConfig()
	cfg.Window = Size{32, 32}
	h := HOG{Config: cfg}

	for _, img := range []struct {
		name string
		v    func() (Vector, error)
	}{
		{"solid", func() (Vector, error) { return h.Extract(context.Background(), solid(64, 48, red)) }},
		{"noise", func() (Vector, error) { return h.Extract(context.Background(), noise(64, 48, 5)) }},
		{"halves", func() (Vector, error) { return h.Extract(context.Background(), halves(64, 48, red, blue)) }},
	} {
		v, err := img.v()
		require.NoError(t, err, img.name)
		assert.Len(t, v, cfg.Len(64, 48), img.name)
	}
}

func TestHOG_SolidImageIsZero(t *testing.T) {
	v, err := HOG{Config: DefaultHOGConfig()}.Extract(context.Background(), solid(64, 128, blue))
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestHOG_VerticalEdgeVotesHorizontalGradient(t *testing.T) {
	cfg := HOGConfig{
		Window:        Size{16, 16},
		WindowStride:  Size{8, 8},
		Block:         Size{16, 16},
		BlockStride:   Size{8, 8},
		Cell:          Size{16, 16},
		Bins:          9,
		ClipThreshold: 0.2,
	}
	img := halves(16, 16, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255})

	v, err := HOG{Config: cfg}.Extract(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, v, 9)

	// A horizontal gradient sits at 0 degrees, between the first and last bin.
	assert.Greater(t, v[0], 0.0)
	assert.Greater(t, v[8], 0.0)
	for _, x := range v[2:7] {
		assert.Zero(t, x)
	}
	for _, x := range v {
		assert.LessOrEqual(t, x, 1.0)
	}
}

func TestHOGConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultHOGConfig().Validate(128, 128))

	bad := []func(*HOGConfig){
		func(c *HOGConfig) { c.Cell = Size{0, 8} },
		func(c *HOGConfig) { c.Bins = 0 },
		func(c *HOGConfig) { c.ClipThreshold = 0 },
		func(c *HOGConfig) { c.Window = Size{256, 256} },
		func(c *HOGConfig) { c.Block = Size{12, 12} },
		func(c *HOGConfig) { c.BlockStride = Size{5, 5} },
		func(c *HOGConfig) { c.Block = Size{128, 128}; c.Window = Size{64, 64} },
	}
	for i, mutate := range bad {
		cfg := DefaultHOGConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(128, 128), ErrInvalidConfig, "case %d", i)
	}
}

func TestParseSize(t *testing.T) {
	s, err := ParseSize("64x128")
	require.NoError(t, err)
	assert.Equal(t, Size{64, 128}, s)

	s, err = ParseSize("16")
	require.NoError(t, err)
	assert.Equal(t, Size{16, 16}, s)

	_, err = ParseSize("axb")
	assert.Error(t, err)
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(2, 5))
	assert.Equal(t, 0, reflect101(-1, 1))
}
