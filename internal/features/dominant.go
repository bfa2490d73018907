package features

import (
	"context"
	"image"

	"gonum.org/v1/gonum/mat"

	"github.com/Yutarop/imgcluster/internal/kmeans"
)

// DominantColors clusters the RGB values of every pixel and returns the K
// palette centroids flattened as R,G,B triples in cluster id order. The
// order is not canonical: different seeds may permute the triples.
type DominantColors struct {
	K             int
	MaxIterations int
	Tolerance     float64
	Restarts      int
	Seed          int64
}

func (DominantColors) Name() string { return SegmentDominant }

func (d DominantColors) Extract(ctx context.Context, img *image.RGBA) (Vector, error) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	samples := make([]float64, 0, n*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			samples = append(samples, float64(c.R), float64(c.G), float64(c.B))
		}
	}

	res, err := kmeans.Cluster(ctx, mat.NewDense(n, 3, samples), kmeans.Config{
		K:             d.K,
		MaxIterations: d.MaxIterations,
		Tolerance:     d.Tolerance,
		Restarts:      d.Restarts,
		Seed:          d.Seed,
		Init:          kmeans.InitPlusPlus,
	})
	if err != nil {
		return nil, err
	}

	out := make(Vector, 0, 3*d.K)
	for id := 0; id < d.K; id++ {
		out = append(out, res.Centroids[id]...)
	}
	return out, nil
}

// Palette splits a dominant color segment back into RGB triples.
func Palette(v Vector) [][3]float64 {
	palette := make([][3]float64, len(v)/3)
	for i := range palette {
		copy(palette[i][:], v[3*i:3*i+3])
	}
	return palette
}
