package analytics

import (
	"math"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
)

// fitQuadratic fits iv = a + b*k + c*k^2 by ordinary least squares over the
// given (strike, iv) points and returns the curve sampled at the observed
// strikes. Strikes are normalized around their mean before solving to keep
// the 3x3 system well conditioned for far-from-zero strike levels. The
// sampled domain is exactly the observed strike range: the fit never
// extrapolates. Fewer than three points degrade to a flat mean-IV curve.
func fitQuadratic(strikes, ivs []float64) []models.CurvePoint {
	n := len(strikes)
	if n == 0 {
		return nil
	}
	mean := 0.0
	for _, k := range strikes {
		mean += k
	}
	mean /= float64(n)

	if n < 3 {
		avg := 0.0
		for _, v := range ivs {
			avg += v
		}
		avg /= float64(n)
		out := make([]models.CurvePoint, n)
		for i, k := range strikes {
			out[i] = models.CurvePoint{Strike: k, IV: avg}
		}
		return out
	}

	// Normal equations for [a b c] on centered strikes x = k - mean.
	var s0, s1, s2, s3, s4 float64
	var t0, t1, t2 float64
	for i := 0; i < n; i++ {
		x := strikes[i] - mean
		y := ivs[i]
		x2 := x * x
		s0++
		s1 += x
		s2 += x2
		s3 += x2 * x
		s4 += x2 * x2
		t0 += y
		t1 += x * y
		t2 += x2 * y
	}

	a, b, c, ok := solve3(
		[3][3]float64{
			{s0, s1, s2},
			{s1, s2, s3},
			{s2, s3, s4},
		},
		[3]float64{t0, t1, t2},
	)
	if !ok {
		// Degenerate geometry (e.g. repeated strikes); fall back to flat.
		avg := t0 / s0
		out := make([]models.CurvePoint, n)
		for i, k := range strikes {
			out[i] = models.CurvePoint{Strike: k, IV: avg}
		}
		return out
	}

	out := make([]models.CurvePoint, n)
	for i, k := range strikes {
		x := k - mean
		iv := a + b*x + c*x*x
		if iv < 0 {
			iv = 0
		}
		out[i] = models.CurvePoint{Strike: k, IV: iv}
	}
	return out
}

// solve3 solves A·x = v by Gaussian elimination with partial pivoting.
func solve3(a [3][3]float64, v [3]float64) (x0, x1, x2 float64, ok bool) {
	m := [3][4]float64{}
	for i := 0; i < 3; i++ {
		copy(m[i][:3], a[i][:])
		m[i][3] = v[i]
	}
	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return 0, 0, 0, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := 0; r < 3; r++ {
			if r == col {
				continue
			}
			f := m[r][col] / m[col][col]
			for c := col; c < 4; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}
	return m[0][3] / m[0][0], m[1][3] / m[1][1], m[2][3] / m[2][2], true
}
