package features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNoRows is returned when a matrix is requested from an empty Fuser.
var ErrNoRows = errors.New("no feature vectors to fuse")

// Layout records the length of each segment of a fused vector.
type Layout struct {
	Histogram int `json:"histogram"`
	Dominant  int `json:"dominant"`
	Shape     int `json:"shape"`
}

// Len is the fused vector length.
func (l Layout) Len() int { return l.Histogram + l.Dominant + l.Shape }

// Ranges returns the [start, end) column range of each segment in fused order.
func (l Layout) Ranges() [][2]int {
	return [][2]int{
		{0, l.Histogram},
		{l.Histogram, l.Histogram + l.Dominant},
		{l.Histogram + l.Dominant, l.Len()},
	}
}

// DimensionMismatchError reports a segment whose length differs from the
// first image of the batch. It points at extractor parameters, not at data.
type DimensionMismatchError struct {
	Segment  string
	Expected int
	Actual   int
	Path     string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s segment of %s: expected %d, got %d",
		e.Segment, e.Path, e.Expected, e.Actual)
}

// Fuser concatenates segments into rows. The first row fixes the layout.
type Fuser struct {
	layout *Layout
	rows   []Vector
}

// Add appends one image's segments as the next row.
func (f *Fuser) Add(path string, segs Segments) error {
	got := Layout{
		Histogram: len(segs.Histogram),
		Dominant:  len(segs.Dominant),
		Shape:     len(segs.Shape),
	}
	if f.layout == nil {
		f.layout = &got
	} else {
		for _, check := range []struct {
			name          string
			expected, got int
		}{
			{SegmentHistogram, f.layout.Histogram, got.Histogram},
			{SegmentDominant, f.layout.Dominant, got.Dominant},
			{SegmentShape, f.layout.Shape, got.Shape},
		} {
			if check.expected != check.got {
				return &DimensionMismatchError{
					Segment:  check.name,
					Expected: check.expected,
					Actual:   check.got,
					Path:     path,
				}
			}
		}
	}

	row := make(Vector, 0, got.Len())
	row = append(row, segs.Histogram...)
	row = append(row, segs.Dominant...)
	row = append(row, segs.Shape...)
	f.rows = append(f.rows, row)
	return nil
}

// Layout returns the layout fixed by the first row.
func (f *Fuser) Layout() Layout {
	if f.layout == nil {
		return Layout{}
	}
	return *f.layout
}

// Len returns the number of rows added so far.
func (f *Fuser) Len() int { return len(f.rows) }

// Matrix assembles the rows, in insertion order, into an N x L matrix.
func (f *Fuser) Matrix() (*mat.Dense, error) {
	if len(f.rows) == 0 {
		return nil, ErrNoRows
	}
	cols := f.layout.Len()
	if cols == 0 {
		return nil, fmt.Errorf("%w: fused vectors are empty", ErrNoRows)
	}
	m := mat.NewDense(len(f.rows), cols, nil)
	for i, row := range f.rows {
		m.SetRow(i, row)
	}
	return m, nil
}
