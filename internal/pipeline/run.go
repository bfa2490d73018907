package pipeline

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/materialize"
)

// Skip records an image dropped from the batch and why.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Run is the state of one batch run. It is created per invocation, handed
// from stage to stage, and discarded afterwards.
type Run struct {
	ID      string
	Config  Config
	Started time.Time

	// Paths are the files that passed the extension filter, in scan order.
	Paths []string
	// Images are the accepted paths; Images[i] owns row i of Matrix.
	Images  []string
	Skipped []Skip

	// Palettes[i] is the dominant color segment of Images[i].
	Palettes []features.Vector
	Layout   features.Layout
	// Matrix is the normalized N x L feature matrix.
	Matrix *mat.Dense

	// K is the cluster count used, chosen by the sweep when AutoK is set.
	K          int
	Sweep      []kmeans.SweepPoint
	Result     *kmeans.Result
	Silhouette *float64

	Copy *materialize.Report
}

// NewRun starts a run for cfg.
func NewRun(cfg Config) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Config:  cfg,
		Started: time.Now(),
	}
}

// Assignments pairs every accepted image with its cluster label.
func (r *Run) Assignments() []materialize.Assignment {
	if r.Result == nil {
		return nil
	}
	out := make([]materialize.Assignment, len(r.Images))
	for i, path := range r.Images {
		out[i] = materialize.Assignment{Path: path, Cluster: r.Result.Labels[i]}
	}
	return out
}

// Members lists the accepted images of every cluster id, in row order.
func (r *Run) Members() map[int][]string {
	members := make(map[int][]string)
	if r.Result == nil {
		return members
	}
	for i, path := range r.Images {
		members[r.Result.Labels[i]] = append(members[r.Result.Labels[i]], path)
	}
	return members
}
