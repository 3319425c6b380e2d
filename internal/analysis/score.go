package analysis

import "math"

const (
	minScore = 0
	maxScore = 100
)

// QualityFor grades the mean of the two scores.
func QualityFor(satisfaction, effectiveness int) Quality {
	mean := float64(satisfaction+effectiveness) / 2
	switch {
	case mean >= 85:
		return QualityExcellent
	case mean >= 70:
		return QualityGood
	case mean >= 50:
		return QualityAverage
	default:
		return QualityPoor
	}
}

// clampScore rounds v and clamps it to [0, 100].
func clampScore(v float64) int {
	n := int(math.Round(v))
	if n < minScore {
		return minScore
	}
	if n > maxScore {
		return maxScore
	}
	return n
}

func inRange(score int) bool {
	return score >= minScore && score <= maxScore
}
