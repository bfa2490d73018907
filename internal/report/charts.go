package report

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Yutarop/imgcluster/internal/evaluate"
	"github.com/Yutarop/imgcluster/internal/kmeans"
)

// Chart file names written by the evaluate command.
const (
	CategoryCountsFile = "category_counts.png"
	MisplacedFile      = "misplaced_by_category.png"
)

// ErrNothingToPlot is returned for charts without any data.
var ErrNothingToPlot = errors.New("nothing to plot")

// PlotSweep saves the elbow curve (inertia per K) and the silhouette curve
// (K >= 2) side by side as a PNG at path.
func PlotSweep(points []kmeans.SweepPoint, path string) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: empty sweep", ErrNothingToPlot)
	}

	var inertia, silhouette plotter.XYs
	for _, pt := range points {
		inertia = append(inertia, plotter.XY{X: float64(pt.K), Y: pt.Inertia})
		if pt.K >= 2 {
			silhouette = append(silhouette, plotter.XY{X: float64(pt.K), Y: pt.Silhouette})
		}
	}

	elbow, err := linePlot("Elbow method", "Inertia", inertia)
	if err != nil {
		return err
	}
	plots := []*plot.Plot{elbow}
	if len(silhouette) > 0 {
		sil, err := linePlot("Silhouette score", "Mean silhouette", silhouette)
		if err != nil {
			return err
		}
		plots = append(plots, sil)
	}
	return savePNGRow(plots, 12*vg.Inch, 5*vg.Inch, path)
}

func linePlot(title, yLabel string, xys plotter.XYs) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Number of clusters"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, fmt.Errorf("plot: %s: %w", title, err)
	}
	line.Color = Palette(1)[0]
	points.GlyphStyle.Color = Palette(1)[0]
	p.Add(line, points)
	return p, nil
}

// PlotCategoryCounts saves a grouped bar chart with the number of images of
// every category in every cluster.
func PlotCategoryCounts(eval *evaluate.Evaluation, path string) error {
	return barChart(eval, "Images per category", "Images", false, path,
		func(c evaluate.Cluster, cat string) float64 {
			return float64(c.Counts[cat])
		})
}

// PlotMisplaced saves a stacked bar chart with the misplaced images of every
// cluster broken down by category.
func PlotMisplaced(eval *evaluate.Evaluation, path string) error {
	return barChart(eval, "Misplaced images per category", "Misplaced images", true, path,
		func(c evaluate.Cluster, cat string) float64 {
			if cat == c.Predominant {
				return 0
			}
			return float64(c.Counts[cat])
		})
}

func barChart(eval *evaluate.Evaluation, title, yLabel string, stacked bool, path string,
	value func(evaluate.Cluster, string) float64) error {
	cats := eval.Categories()
	if len(eval.Clusters) == 0 || len(cats) == 0 {
		return fmt.Errorf("%w: no categorized images", ErrNothingToPlot)
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	names := make([]string, len(eval.Clusters))
	for i, c := range eval.Clusters {
		names[i] = c.Name
	}
	p.NominalX(names...)

	width := vg.Points(40)
	if !stacked {
		width = vg.Points(60) / vg.Length(len(cats))
	}
	colors := Palette(len(cats))

	var below *plotter.BarChart
	for i, cat := range cats {
		values := make(plotter.Values, len(eval.Clusters))
		for j, c := range eval.Clusters {
			values[j] = value(c, cat)
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("plot: category %s: %w", cat, err)
		}
		bars.Color = colors[i]
		bars.LineStyle.Width = 0
		if stacked {
			if below != nil {
				bars.StackOn(below)
			}
			below = bars
		} else {
			bars.Offset = vg.Length(float64(i)-float64(len(cats)-1)/2) * width
		}
		p.Add(bars)
		p.Legend.Add(cat, bars)
	}
	p.Legend.Top = true

	return savePNG(p, path)
}
