package vector

import (
	"fmt"
	"math"
)

type Metric string

const (
	Cosine Metric = "cosine"
	L2     Metric = "l2"
)

// DistanceFunc compares two vectors of equal length.
type DistanceFunc func(a, b []float32) float64

func (m Metric) Func() (DistanceFunc, error) {
	switch m {
	case Cosine:
		return CosineDistance, nil
	case L2:
		return L2Distance, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMetric, m)
	}
}

// CosineDistance is 1 - cos(a, b), in [0, 2]. A zero vector has no
// direction and sits at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 1
	}

	cos := dot / math.Sqrt(na*nb)
	cos = max(-1, min(1, cos))

	return 1 - cos
}

func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}
