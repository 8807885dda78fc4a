package changes

import (
	"math"
	"teachassist-backend/internal/scrapers/teachassist"
)

// change_threshold is the smallest difference between two marks that counts as a change.
const change_threshold = 0.1

// AssignmentScore is the weighted mean of the graded category percentages of an
// assignment, or the plain mean when none of the categories carry a weight.
func AssignmentScore(a teachassist.Assignment) (float64, bool) {
	var sum, weighted, weights float64
	var count int
	for _, key := range teachassist.AllCategories {
		mark := a.Categories.Get(key)
		if mark == nil {
			continue
		}
		percent, ok := mark.PercentValue()
		if !ok {
			continue
		}
		sum += percent
		count++
		if weight, ok := mark.WeightValue(); ok {
			weighted += percent * weight
			weights += weight
		}
	}
	if count == 0 {
		return 0, false
	}
	if weights > 0 {
		return weighted / weights, true
	}
	return sum / float64(count), true
}

// firstChangedAssignment returns the first assignment of fresh, in its stored
// order, that is absent from previous by name or whose score moved.
func firstChangedAssignment(fresh, previous []teachassist.Assignment) (teachassist.Assignment, bool) {
	type scored struct {
		score float64
		ok    bool
	}
	previousScores := make(map[string]scored, len(previous))
	for _, a := range previous {
		if _, exists := previousScores[a.Name]; exists {
			continue
		}
		score, ok := AssignmentScore(a)
		previousScores[a.Name] = scored{score: score, ok: ok}
	}

	for _, a := range fresh {
		before, existed := previousScores[a.Name]
		if !existed {
			return a, true
		}
		score, ok := AssignmentScore(a)
		if !ok {
			continue
		}
		if !before.ok || math.Abs(score-before.score) >= change_threshold {
			return a, true
		}
	}
	return teachassist.Assignment{}, false
}
