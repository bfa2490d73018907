package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientData is returned when there are fewer rows than clusters.
	ErrInsufficientData = errors.New("insufficient data for requested cluster count")

	// ErrInvalidConfig is returned for a configuration that cannot run.
	ErrInvalidConfig = errors.New("invalid k-means configuration")
)

// Init selects how the starting centroids are picked.
type Init int

const (
	// InitPlusPlus spreads the starting centroids with k-means++ seeding.
	InitPlusPlus Init = iota
	// InitRandom picks K distinct rows uniformly.
	InitRandom
)

func (i Init) String() string {
	switch i {
	case InitPlusPlus:
		return "k-means++"
	case InitRandom:
		return "random"
	default:
		return fmt.Sprintf("Init(%d)", int(i))
	}
}

// Config contains the clustering parameters.
type Config struct {
	K             int     // Number of clusters
	MaxIterations int     // Iteration cap per restart
	Tolerance     float64 // Stop once no centroid moves further than this
	Restarts      int     // Independent runs; the lowest inertia is kept
	Seed          int64   // Seed for centroid initialization
	Init          Init
}

// DefaultConfig returns the configuration used by the cluster command.
func DefaultConfig() Config {
	return Config{
		K:             3,
		MaxIterations: 100,
		Tolerance:     1e-4,
		Restarts:      3,
		Seed:          42,
		Init:          InitPlusPlus,
	}
}

// Validate reports whether c can run.
func (c Config) Validate() error {
	switch {
	case c.K < 1:
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidConfig, c.K)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, c.MaxIterations)
	case c.Tolerance < 0 || math.IsNaN(c.Tolerance):
		return fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrInvalidConfig, c.Tolerance)
	case c.Restarts < 1:
		return fmt.Errorf("%w: restarts must be at least 1, got %d", ErrInvalidConfig, c.Restarts)
	case c.Init != InitPlusPlus && c.Init != InitRandom:
		return fmt.Errorf("%w: unknown init %v", ErrInvalidConfig, c.Init)
	}
	return nil
}

// Result is the outcome of one Cluster call.
type Result struct {
	// Labels[i] is the cluster id in [0, K) of row i.
	Labels []int
	// Centroids is keyed by cluster id. Ids have no ordering meaning.
	Centroids map[int][]float64
	// Inertia is the sum of squared distances from each row to its centroid.
	Inertia    float64
	Iterations int
	Converged  bool
}

// Sizes returns the number of rows assigned to every cluster id, including
// empty ones.
func (r *Result) Sizes() map[int]int {
	sizes := make(map[int]int, len(r.Centroids))
	for id := range r.Centroids {
		sizes[id] = 0
	}
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

// Cluster partitions the rows of data into cfg.K clusters.
func Cluster(ctx context.Context, data mat.Matrix, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidConfig)
	}

	rows := rowViews(data)
	if len(rows) < cfg.K {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", ErrInsufficientData, len(rows), cfg.K)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	var best *Result
	for attempt := 0; attempt < cfg.Restarts; attempt++ {
		res, err := lloyd(ctx, rows, cfg, rng)
		if err != nil {
			return nil, err
		}
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func rowViews(data mat.Matrix) [][]float64 {
	dense, ok := data.(*mat.Dense)
	if !ok {
		dense = mat.DenseCopyOf(data)
	}
	n, _ := dense.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = dense.RawRowView(i)
	}
	return rows
}

func lloyd(ctx context.Context, rows [][]float64, cfg Config, rng *rand.Rand) (*Result, error) {
	dim := len(rows[0])
	centroids := seed(rows, cfg, rng)
	labels := make([]int, len(rows))
	sums := make([][]float64, cfg.K)
	counts := make([]int, cfg.K)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}

	res := &Result{}
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter

		assign(rows, centroids, labels)

		for j := range sums {
			clear(sums[j])
			counts[j] = 0
		}
		for i, row := range rows {
			floats.Add(sums[labels[i]], row)
			counts[labels[i]]++
		}

		shift := 0.0
		for j := range centroids {
			if counts[j] == 0 {
				// Empty cluster keeps its previous position.
				continue
			}
			floats.Scale(1/float64(counts[j]), sums[j])
			shift = math.Max(shift, floats.Distance(centroids[j], sums[j], 2))
			copy(centroids[j], sums[j])
		}

		if shift <= cfg.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Inertia = assign(rows, centroids, labels)
	res.Labels = labels
	res.Centroids = make(map[int][]float64, len(centroids))
	for j, c := range centroids {
		res.Centroids[j] = c
	}
	return res, nil
}

// assign moves every row to its nearest centroid and returns the inertia.
// Ties go to the lowest centroid index.
func assign(rows, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, row := range rows {
		bestIdx, bestDist := 0, math.Inf(1)
		for j, c := range centroids {
			if d := sqDist(row, c); d < bestDist {
				bestIdx, bestDist = j, d
			}
		}
		labels[i] = bestIdx
		inertia += bestDist
	}
	return inertia
}

func seed(rows [][]float64, cfg Config, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, cfg.K)
	pick := func(i int) {
		c := make([]float64, len(rows[i]))
		copy(c, rows[i])
		centroids = append(centroids, c)
	}

	if cfg.Init == InitRandom {
		for _, i := range rng.Perm(len(rows))[:cfg.K] {
			pick(i)
		}
		return centroids
	}

	pick(rng.Intn(len(rows)))
	d2 := make([]float64, len(rows))
	for i, row := range rows {
		d2[i] = sqDist(row, centroids[0])
	}

	for len(centroids) < cfg.K {
		total := floats.Sum(d2)
		next := rng.Intn(len(rows))
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range d2 {
				if d == 0 {
					continue
				}
				next = i
				cum += d
				if cum > target {
					break
				}
			}
		}
		pick(next)

		last := centroids[len(centroids)-1]
		for i, row := range rows {
			d2[i] = math.Min(d2[i], sqDist(row, last))
		}
	}
	return centroids
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
