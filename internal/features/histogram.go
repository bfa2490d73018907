package features

import (
	"context"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// HSV channel ranges. Hue uses the 8-bit half-degree convention, [0, 180).
const (
	HueRange     = 180
	ChannelRange = 256
)

// ColorHistogram computes a joint hue/saturation/value histogram with Bins
// bins per channel, flattened hue-major and min-max scaled to [0, 1].
type ColorHistogram struct {
	Bins int
}

func (ColorHistogram) Name() string { return SegmentHistogram }

func (h ColorHistogram) Extract(_ context.Context, img *image.RGBA) (Vector, error) {
	bins := h.Bins
	hist := make(Vector, bins*bins*bins)

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, _ := colorful.MakeColor(img.RGBAAt(x, y))
			hue, sat, val := hsv8(c)
			idx := (bin(hue, HueRange, bins)*bins+bin(sat, ChannelRange, bins))*bins + bin(val, ChannelRange, bins)
			hist[idx]++
		}
	}

	minMaxScale(hist)
	return hist, nil
}

// hsv8 converts to 8-bit HSV: hue in [0, 180), saturation and value in [0, 255].
func hsv8(c colorful.Color) (h, s, v int) {
	hue, sat, val := c.Hsv()
	h = int(math.Round(hue / 2))
	if h >= HueRange {
		h -= HueRange
	}
	s = int(math.Round(sat * 255))
	v = int(math.Round(val * 255))
	return h, s, v
}

func bin(value, valueRange, bins int) int {
	b := value * bins / valueRange
	if b >= bins {
		b = bins - 1
	}
	return b
}
