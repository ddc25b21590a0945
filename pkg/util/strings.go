package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseFloatOrNaN coerces a cell to a number; anything non-numeric becomes NaN.
func ParseFloatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
