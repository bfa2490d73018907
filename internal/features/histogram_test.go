package features

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHistogram_ShapeAndRange(t *testing.T) {
	for _, bins := range []int{1, 8, 16, 32} {
		v, err := ColorHistogram{Bins: bins}.Extract(context.Background(), noise(32, 32, int64(bins)))
		require.NoError(t, err)
		require.Len(t, v, bins*bins*bins)

		maxSeen := 0.0
		for _, x := range v {
			assert.GreaterOrEqual(t, x, 0.0)
			assert.LessOrEqual(t, x, 1.0)
			maxSeen = max(maxSeen, x)
		}
		if bins > 1 {
			assert.Equal(t, 1.0, maxSeen)
		}
	}
}

func TestColorHistogram_SolidColorsHitExpectedBin(t *testing.T) {
	const bins = 16
	cases := []struct {
		name string
		c    color.RGBA
		h    int
	}{
		{"red", red, 0},
		{"blue", blue, 120 * bins / HueRange},
		{"green", color.RGBA{0, 255, 0, 255}, 60 * bins / HueRange},
	}
	for _, tc := range cases {
		v, err := ColorHistogram{Bins: bins}.Extract(context.Background(), solid(8, 8, tc.c))
		require.NoError(t, err)

		want := (tc.h*bins+bins-1)*bins + bins - 1
		for i, x := range v {
			if i == want {
				assert.Equal(t, 1.0, x, tc.name)
			} else {
				assert.Zero(t, x, tc.name)
			}
		}
	}
}

func TestColorHistogram_LengthIndependentOfContent(t *testing.T) {
	h := ColorHistogram{Bins: 8}
	a, err := h.Extract(context.Background(), solid(16, 16, red))
	require.NoError(t, err)
	b, err := h.Extract(context.Background(), noise(16, 16, 3))
	require.NoError(t, err)
	assert.Equal(t, len(a), len(b))
}

func TestHSV8(t *testing.T) {
	h, s, v := hsv8OfRGBA(color.RGBA{0, 0, 255, 255})
	assert.Equal(t, 120, h)
	assert.Equal(t, 255, s)
	assert.Equal(t, 255, v)

	h, s, v = hsv8OfRGBA(color.RGBA{128, 128, 128, 255})
	assert.Equal(t, 0, h)
	assert.Equal(t, 0, s)
	assert.Equal(t, 128, v)
}
