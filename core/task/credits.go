package task

import "math"

// Validation scores map to a share of the task's base value.
const (
	ScorePoor    = 1 // 10%
	ScoreGood    = 2 // 60%
	ScorePerfect = 3 // 100%
)

// CreditsForScore computes the credits a validation score is worth against a
// base value. Fractional results round half-up.
func CreditsForScore(score, baseValue int) int {
	switch score {
	case ScorePoor:
		return roundHalfUp(float64(baseValue) * 0.10)
	case ScoreGood:
		return roundHalfUp(float64(baseValue) * 0.60)
	case ScorePerfect:
		return baseValue
	}
	return 0
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
