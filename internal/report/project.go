package report

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrProjection is returned when the principal components cannot be found.
var ErrProjection = errors.New("principal component analysis failed")

// Project2D projects the rows of data onto their first two principal
// components. The result is N x 2. Batches with fewer than two rows, or with
// a single component, are padded with zeros.
func Project2D(data mat.Matrix) (*mat.Dense, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrProjection)
	}
	n, d := data.Dims()
	out := mat.NewDense(n, 2, nil)
	if n < 2 || d == 0 {
		return out, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, ErrProjection
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, nc := vecs.Dims()
	k := min(2, nc)

	centered := mat.DenseCopyOf(data)
	means := make([]float64, d)
	for i := 0; i < n; i++ {
		floats.Add(means, centered.RawRowView(i))
	}
	floats.Scale(1/float64(n), means)
	for i := 0; i < n; i++ {
		floats.Sub(centered.RawRowView(i), means)
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, k))
	out.Slice(0, n, 0, k).(*mat.Dense).Copy(&proj)
	return out, nil
}
