package features

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalizeMode selects how Normalize groups values before min-max scaling.
type NormalizeMode string

const (
	// NormalizeGlobal uses one min and max over the whole matrix.
	NormalizeGlobal NormalizeMode = "global"
	// NormalizeSegment scales each of the three segments on its own, so the
	// 0-255 color channels do not swamp the histogram and shape entries.
	NormalizeSegment NormalizeMode = "segment"
	// NormalizeColumn scales every column on its own.
	NormalizeColumn NormalizeMode = "column"
)

// ParseNormalizeMode validates a flag value.
func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch m := NormalizeMode(strings.ToLower(s)); m {
	case NormalizeGlobal, NormalizeSegment, NormalizeColumn:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown normalization %q", ErrInvalidConfig, s)
	}
}

// Normalize rescales m in place into [0, 1]. A group whose values are all
// equal becomes 0.
func Normalize(m *mat.Dense, mode NormalizeMode, layout Layout) error {
	rows, cols := m.Dims()
	switch mode {
	case NormalizeGlobal:
		rescale(m, rows, 0, cols)
	case NormalizeSegment:
		if layout.Len() != cols {
			return fmt.Errorf("%w: layout covers %d columns, matrix has %d", ErrInvalidConfig, layout.Len(), cols)
		}
		for _, r := range layout.Ranges() {
			rescale(m, rows, r[0], r[1])
		}
	case NormalizeColumn:
		for c := 0; c < cols; c++ {
			rescale(m, rows, c, c+1)
		}
	default:
		return fmt.Errorf("%w: unknown normalization %q", ErrInvalidConfig, mode)
	}
	return nil
}

// rescale min-max scales columns [c0, c1) of every row as one group.
func rescale(m *mat.Dense, rows, c0, c1 int) {
	if c0 >= c1 {
		return
	}
	lo, hi := m.At(0, c0), m.At(0, c0)
	for i := 0; i < rows; i++ {
		seg := m.RawRowView(i)[c0:c1]
		lo = min(lo, floats.Min(seg))
		hi = max(hi, floats.Max(seg))
	}
	span := hi - lo
	for i := 0; i < rows; i++ {
		seg := m.RawRowView(i)[c0:c1]
		if span == 0 {
			clear(seg)
			continue
		}
		floats.AddConst(-lo, seg)
		floats.Scale(1/span, seg)
	}
}

// minMaxScale scales v in place so its smallest entry is 0 and its largest 1.
func minMaxScale(v []float64) {
	if len(v) == 0 {
		return
	}
	lo, hi := floats.Min(v), floats.Max(v)
	if hi == lo {
		clear(v)
		return
	}
	floats.AddConst(-lo, v)
	floats.Scale(1/(hi-lo), v)
}
