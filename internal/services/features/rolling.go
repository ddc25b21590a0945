package features

import "math"

// StdFloor replaces zero or undefined rolling deviations.
const StdFloor = 1e-6

// slopeDenomGuard keeps the closed-form slope finite.
const slopeDenomGuard = 1e-6

// RollingMean is the trailing mean over up to window observations.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range values[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// RollingStd is the trailing sample standard deviation. Windows with fewer
// than two observations or zero spread yield StdFloor.
func RollingStd(values []float64, window int, means []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		n := i - start + 1
		if n < 2 {
			out[i] = StdFloor
			continue
		}
		ss := 0.0
		for _, v := range values[start : i+1] {
			d := v - means[i]
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(n-1))
		if sd == 0 || math.IsNaN(sd) {
			sd = StdFloor
		}
		out[i] = sd
	}
	return out
}

// RollingSlope fits y = a + b*x over each trailing window, with x the
// 0-based position inside the window, and returns b. NaN values are masked
// out; windows with fewer than two valid points give 0.
func RollingSlope(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var n, sx, sy, sxy, sxx float64
		for k, y := range values[start : i+1] {
			if math.IsNaN(y) {
				continue
			}
			x := float64(k)
			n++
			sx += x
			sy += y
			sxy += x * y
			sxx += x * x
		}
		if n < 2 {
			continue
		}
		out[i] = (n*sxy - sx*sy) / (n*sxx - sx*sx + slopeDenomGuard)
	}
	return out
}
