package graph

import (
	"math"
	"time"
)

// Decay returns the exponential decay factor for a communication signal of
// the given age: 2^(-age/halfLife). Events older than the retention window
// contribute nothing; events with a future timestamp are treated as fresh.
func Decay(age, halfLife, retention time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	if retention > 0 && age > retention {
		return 0.0
	}
	if halfLife <= 0 {
		return 1.0
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}
