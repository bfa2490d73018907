package report

import (
	"fmt"
	"image/color"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Palette returns k colors with evenly spaced hues. The same k always gives
// the same colors.
func Palette(k int) []color.Color {
	out := make([]color.Color, k)
	for i := range out {
		out[i] = colorful.Hsv(360*float64(i)/float64(max(k, 1)), 0.75, 0.85)
	}
	return out
}

// PlotClusters saves a scatter of the projected points, one color per
// cluster id, as a PNG at path.
func PlotClusters(points mat.Matrix, labels []int, k int, path string) error {
	n, cols := points.Dims()
	if n != len(labels) {
		return fmt.Errorf("plot: %d points for %d labels", n, len(labels))
	}
	if cols < 2 {
		return fmt.Errorf("plot: points need two coordinates, got %d", cols)
	}

	p := plot.New()
	p.Title.Text = "Image clusters"
	p.X.Label.Text = "Principal component 1"
	p.Y.Label.Text = "Principal component 2"
	p.Add(plotter.NewGrid())

	colors := Palette(k)
	for id := 0; id < k; id++ {
		var xys plotter.XYs
		for i, l := range labels {
			if l == id {
				xys = append(xys, plotter.XY{X: points.At(i, 0), Y: points.At(i, 1)})
			}
		}
		if len(xys) == 0 {
			continue
		}

		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("plot: cluster %d: %w", id, err)
		}
		s.GlyphStyle.Color = colors[id]
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster_%d", id), s)
	}

	return savePNG(p, path)
}

func savePNG(p *plot.Plot, path string) error {
	img := vgimg.New(8*vg.Inch, 6*vg.Inch)
	p.Draw(draw.New(img))
	return writePNG(img, path)
}

// savePNGRow draws plots side by side on one canvas.
func savePNGRow(plots []*plot.Plot, width, height vg.Length, path string) error {
	img := vgimg.New(width, height)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(plots),
		PadX: vg.Millimeter * 5,
		PadY: vg.Millimeter * 5,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, draw.New(img))
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}
	return writePNG(img, path)
}

func writePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create visualization: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save visualization: %w", err)
	}
	return f.Close()
}
