package kmeans

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Silhouette returns the mean silhouette coefficient of a labelling.
// It is 0 when fewer than two clusters are populated. Points alone in
// their cluster contribute 0.
func Silhouette(data mat.Matrix, labels []int) float64 {
	rows := rowViews(data)
	if len(rows) != len(labels) || len(rows) == 0 {
		return 0
	}

	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 {
		return 0
	}

	var total float64
	for i, row := range rows {
		if sizes[labels[i]] == 1 {
			continue
		}
		sums := make(map[int]float64, len(sizes))
		for j, other := range rows {
			if i == j {
				continue
			}
			sums[labels[j]] += math.Sqrt(sqDist(row, other))
		}

		a := sums[labels[i]] / float64(sizes[labels[i]]-1)
		b := math.Inf(1)
		for l, s := range sums {
			if l == labels[i] {
				continue
			}
			b = math.Min(b, s/float64(sizes[l]))
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(rows))
}

// SweepPoint is one K evaluated by Sweep.
type SweepPoint struct {
	K          int     `json:"k"`
	Inertia    float64 `json:"inertia"`
	Silhouette float64 `json:"silhouette"`
}

// Sweep clusters data for every K from 1 to maxK (capped at the row count)
// and records inertia and silhouette for each.
func Sweep(ctx context.Context, data mat.Matrix, cfg Config, maxK int) ([]SweepPoint, error) {
	n, _ := data.Dims()
	if maxK > n {
		maxK = n
	}

	points := make([]SweepPoint, 0, maxK)
	for k := 1; k <= maxK; k++ {
		cfg.K = k
		res, err := Cluster(ctx, data, cfg)
		if err != nil {
			return nil, err
		}
		points = append(points, SweepPoint{
			K:          k,
			Inertia:    res.Inertia,
			Silhouette: Silhouette(data, res.Labels),
		})
	}
	return points, nil
}

// Recommend picks the K with the highest silhouette among K >= 2.
// With no such candidate it returns 1.
func Recommend(points []SweepPoint) int {
	bestK, bestScore := 1, math.Inf(-1)
	for _, p := range points {
		if p.K < 2 {
			continue
		}
		if p.Silhouette > bestScore {
			bestK, bestScore = p.K, p.Silhouette
		}
	}
	return bestK
}
