package features

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// Size is a width x height pair in pixels.
type Size struct {
	Width, Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ParseSize parses "WxH" or a single "N" meaning NxN.
func ParseSize(s string) (Size, error) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		h = w
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return Size{Width: width, Height: height}, nil
}

// HOGConfig is the descriptor geometry. A zero Window covers the whole image.
type HOGConfig struct {
	Window        Size
	WindowStride  Size
	Block         Size
	BlockStride   Size
	Cell          Size
	Bins          int
	ClipThreshold float64
}

// DefaultHOGConfig returns the classic 64x128 pedestrian geometry.
func DefaultHOGConfig() HOGConfig {
	return HOGConfig{
		Window:        Size{64, 128},
		WindowStride:  Size{8, 8},
		Block:         Size{16, 16},
		BlockStride:   Size{8, 8},
		Cell:          Size{8, 8},
		Bins:          9,
		ClipThreshold: 0.2,
	}
}

func (c HOGConfig) window(width, height int) Size {
	if c.Window == (Size{}) {
		return Size{width, height}
	}
	return c.Window
}

// Validate reports whether the geometry tiles a width x height image.
func (c HOGConfig) Validate(width, height int) error {
	win := c.window(width, height)
	for _, dim := range []struct {
		name string
		size Size
	}{
		{"window", win},
		{"window stride", c.WindowStride},
		{"block", c.Block},
		{"block stride", c.BlockStride},
		{"cell", c.Cell},
	} {
		if dim.size.Width < 1 || dim.size.Height < 1 {
			return fmt.Errorf("%w: hog %s must be positive, got %s", ErrInvalidConfig, dim.name, dim.size)
		}
	}
	switch {
	case c.Bins < 1:
		return fmt.Errorf("%w: hog bins must be positive, got %d", ErrInvalidConfig, c.Bins)
	case c.ClipThreshold <= 0:
		return fmt.Errorf("%w: hog clip threshold must be positive", ErrInvalidConfig)
	case win.Width > width || win.Height > height:
		return fmt.Errorf("%w: hog window %s larger than image %dx%d", ErrInvalidConfig, win, width, height)
	case c.Block.Width > win.Width || c.Block.Height > win.Height:
		return fmt.Errorf("%w: hog block %s larger than window %s", ErrInvalidConfig, c.Block, win)
	case c.Block.Width%c.Cell.Width != 0 || c.Block.Height%c.Cell.Height != 0:
		return fmt.Errorf("%w: hog block %s is not a multiple of cell %s", ErrInvalidConfig, c.Block, c.Cell)
	case (win.Width-c.Block.Width)%c.BlockStride.Width != 0 || (win.Height-c.Block.Height)%c.BlockStride.Height != 0:
		return fmt.Errorf("%w: hog block stride %s does not tile window %s", ErrInvalidConfig, c.BlockStride, win)
	}
	return nil
}

// Len is the descriptor length for a width x height image. It depends on the
// geometry only.
func (c HOGConfig) Len(width, height int) int {
	win := c.window(width, height)
	windows := ((width-win.Width)/c.WindowStride.Width + 1) * ((height-win.Height)/c.WindowStride.Height + 1)
	blocks := ((win.Width-c.Block.Width)/c.BlockStride.Width + 1) * ((win.Height-c.Block.Height)/c.BlockStride.Height + 1)
	cells := (c.Block.Width / c.Cell.Width) * (c.Block.Height / c.Cell.Height)
	return windows * blocks * cells * c.Bins
}

// HOG computes a histogram of oriented gradients over a sliding window grid.
// Orientations are unsigned (0 to 180 degrees) and each block is L2-Hys
// normalized.
type HOG struct {
	Config HOGConfig
}

func (HOG) Name() string { return SegmentShape }

func (h HOG) Extract(_ context.Context, img *image.RGBA) (Vector, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	cfg := h.Config
	if err := cfg.Validate(width, height); err != nil {
		return nil, err
	}

	g := newGradients(img, cfg.Bins)
	win := cfg.window(width, height)
	cellsX := cfg.Block.Width / cfg.Cell.Width
	cellsY := cfg.Block.Height / cfg.Cell.Height
	blockLen := cellsX * cellsY * cfg.Bins

	out := make(Vector, 0, cfg.Len(width, height))
	block := make(Vector, blockLen)
	for wy := 0; wy+win.Height <= height; wy += cfg.WindowStride.Height {
		for wx := 0; wx+win.Width <= width; wx += cfg.WindowStride.Width {
			for by := wy; by+cfg.Block.Height <= wy+win.Height; by += cfg.BlockStride.Height {
				for bx := wx; bx+cfg.Block.Width <= wx+win.Width; bx += cfg.BlockStride.Width {
					for i := range block {
						block[i] = 0
					}
					for cy := 0; cy < cellsY; cy++ {
						for cx := 0; cx < cellsX; cx++ {
							hist := block[(cy*cellsX+cx)*cfg.Bins : (cy*cellsX+cx+1)*cfg.Bins]
							g.accumulate(hist, bx+cx*cfg.Cell.Width, by+cy*cfg.Cell.Height, cfg.Cell)
						}
					}
					l2Hys(block, cfg.ClipThreshold)
					out = append(out, block...)
				}
			}
		}
	}
	return out, nil
}

// gradients holds, per pixel, the magnitude split across the two nearest
// orientation bins.
type gradients struct {
	width      int
	bin0, bin1 []int
	w0, w1     []float64
}

func newGradients(img *image.RGBA, bins int) *gradients {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	gray := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			gray[y*width+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}

	g := &gradients{
		width: width,
		bin0:  make([]int, len(gray)),
		bin1:  make([]int, len(gray)),
		w0:    make([]float64, len(gray)),
		w1:    make([]float64, len(gray)),
	}
	binWidth := math.Pi / float64(bins)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := gray[y*width+reflect101(x+1, width)] - gray[y*width+reflect101(x-1, width)]
			dy := gray[reflect101(y+1, height)*width+x] - gray[reflect101(y-1, height)*width+x]
			mag := math.Hypot(dx, dy)

			angle := math.Atan2(dy, dx)
			if angle < 0 {
				angle += math.Pi
			}
			pos := angle/binWidth - 0.5
			lo := math.Floor(pos)
			frac := pos - lo

			b0 := int(lo)
			if b0 < 0 {
				b0 += bins
			}
			if b0 >= bins {
				b0 -= bins
			}
			i := y*width + x
			g.bin0[i] = b0
			g.bin1[i] = (b0 + 1) % bins
			g.w0[i] = mag * (1 - frac)
			g.w1[i] = mag * frac
		}
	}
	return g
}

func (g *gradients) accumulate(hist []float64, x0, y0 int, cell Size) {
	for y := y0; y < y0+cell.Height; y++ {
		for x := x0; x < x0+cell.Width; x++ {
			i := y*g.width + x
			hist[g.bin0[i]] += g.w0[i]
			hist[g.bin1[i]] += g.w1[i]
		}
	}
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - i - 2
	}
	return i
}

// l2Hys normalizes v, clips every entry at clip and normalizes again.
func l2Hys(v []float64, clip float64) {
	scale := 1 / (math.Sqrt(sumSquares(v)) + 0.1*float64(len(v)))
	for i := range v {
		v[i] = math.Min(v[i]*scale, clip)
	}
	scale = 1 / (math.Sqrt(sumSquares(v)) + 1e-3)
	for i := range v {
		v[i] *= scale
	}
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
