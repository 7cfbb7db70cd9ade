package shared

import (
	"math"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// Round2 rounds to two decimal places, the precision sizes are reported in.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
