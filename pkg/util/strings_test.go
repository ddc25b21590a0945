package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFloatOrNaN(t *testing.T) {
	assert.Equal(t, 12.5, ParseFloatOrNaN(" 12.5 "))
	assert.Equal(t, 0.0, ParseFloatOrNaN("0"))
	for _, s := range []string{"", "n/a", "1,000", "Inf", "NaN"} {
		assert.True(t, math.IsNaN(ParseFloatOrNaN(s)), "%q", s)
	}
}
