// Package scoring computes points for answers and orders players for display.
package scoring

import "math"

const (
	BasePoints    = 100
	MaxSpeedBonus = 20
)

// Score returns the points for one answer: zero when incorrect, otherwise the base
// plus a speed bonus that drops one point per whole second and bottoms out at zero.
func Score(isCorrect bool, timeTakenSeconds float64) int {
	if !isCorrect {
		return 0
	}
	if math.IsNaN(timeTakenSeconds) || timeTakenSeconds < 0 {
		timeTakenSeconds = 0
	}
	bonus := MaxSpeedBonus - int(math.Min(math.Floor(timeTakenSeconds), MaxSpeedBonus))
	return BasePoints + max(0, bonus)
}
