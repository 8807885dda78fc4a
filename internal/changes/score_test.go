package changes

import (
	"teachassist-backend/internal/scrapers/teachassist"
	"testing"

	"github.com/stretchr/testify/require"
)

func assignment(name string, marks map[teachassist.Category]teachassist.Mark) teachassist.Assignment {
	a := teachassist.Assignment{Name: name}
	for category, mark := range marks {
		mark := mark
		a.Categories.Set(category, &mark)
	}
	return a
}

func TestAssignmentScore(t *testing.T) {
	testCases := []struct {
		name   string
		input  teachassist.Assignment
		expect float64
		ok     bool
	}{
		{
			name: "weighted",
			input: assignment("Unit 1 Test", map[teachassist.Category]teachassist.Mark{
				teachassist.CATEGORY_KNOWLEDGE: {Percentage: "92%", Weight: "10"},
				teachassist.CATEGORY_THINKING:  {Percentage: "80%", Weight: "5"},
			}),
			expect: 88,
			ok:     true,
		},
		{
			name: "unweighted",
			input: assignment("Quiz", map[teachassist.Category]teachassist.Mark{
				teachassist.CATEGORY_COMMUNICATION: {Score: "4/5", Percentage: "80%"},
				teachassist.CATEGORY_APPLICATION:   {Percentage: "90%"},
			}),
			expect: 85,
			ok:     true,
		},
		{
			name: "zero weights fall back to the plain mean",
			input: assignment("Practice", map[teachassist.Category]teachassist.Mark{
				teachassist.CATEGORY_KNOWLEDGE: {Percentage: "70%", Weight: "0"},
				teachassist.CATEGORY_OTHER:     {Percentage: "90%", Weight: "0"},
			}),
			expect: 80,
			ok:     true,
		},
		{
			name: "no percentages",
			input: assignment("Ungraded", map[teachassist.Category]teachassist.Mark{
				teachassist.CATEGORY_KNOWLEDGE: {Weight: "10"},
			}),
			ok: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			score, ok := AssignmentScore(tc.input)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.InDelta(t, tc.expect, score, 1e-9)
			}
		})
	}
}

func TestWeightedScoreDivergesFromOverallMark(t *testing.T) {
	assignments := []teachassist.Assignment{
		assignment("Heavy", map[teachassist.Category]teachassist.Mark{
			teachassist.CATEGORY_KNOWLEDGE: {Percentage: "90%", Weight: "30"},
			teachassist.CATEGORY_THINKING:  {Percentage: "60%", Weight: "10"},
		}),
	}

	score, ok := AssignmentScore(assignments[0])
	require.True(t, ok)
	require.InDelta(t, 82.5, score, 1e-9)

	overall, ok := teachassist.OverallMark(assignments)
	require.True(t, ok)
	require.Equal(t, 75, overall)
}

func TestFirstChangedAssignment(t *testing.T) {
	quiz := assignment("Quiz", map[teachassist.Category]teachassist.Mark{
		teachassist.CATEGORY_KNOWLEDGE: {Percentage: "80%"},
	})
	test := assignment("Unit 1 Test", map[teachassist.Category]teachassist.Mark{
		teachassist.CATEGORY_KNOWLEDGE: {Percentage: "92%", Weight: "10"},
	})
	retest := assignment("Unit 1 Test", map[teachassist.Category]teachassist.Mark{
		teachassist.CATEGORY_KNOWLEDGE: {Percentage: "95%", Weight: "10"},
	})
	nudged := assignment("Unit 1 Test", map[teachassist.Category]teachassist.Mark{
		teachassist.CATEGORY_KNOWLEDGE: {Percentage: "92.05%", Weight: "10"},
	})

	testCases := []struct {
		name     string
		fresh    []teachassist.Assignment
		previous []teachassist.Assignment
		expect   string
	}{
		{
			name:     "new assignment",
			fresh:    []teachassist.Assignment{quiz, test},
			previous: []teachassist.Assignment{test},
			expect:   "Quiz",
		},
		{
			name:     "rescored assignment",
			fresh:    []teachassist.Assignment{quiz, retest},
			previous: []teachassist.Assignment{quiz, test},
			expect:   "Unit 1 Test",
		},
		{
			name:     "first in stored order wins",
			fresh:    []teachassist.Assignment{retest, quiz},
			previous: []teachassist.Assignment{test},
			expect:   "Unit 1 Test",
		},
		{
			name:     "movement under the threshold",
			fresh:    []teachassist.Assignment{quiz, nudged},
			previous: []teachassist.Assignment{quiz, test},
		},
		{
			name:     "nothing stored yet",
			fresh:    []teachassist.Assignment{quiz},
			previous: nil,
			expect:   "Quiz",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			changed, ok := firstChangedAssignment(tc.fresh, tc.previous)
			if tc.expect == "" {
				require.False(t, ok, changed.Name)
				return
			}
			require.True(t, ok)
			require.Equal(t, tc.expect, changed.Name)
		})
	}
}
