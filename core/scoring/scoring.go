// Package scoring grades quiz submissions.
// Everything here is pure: no I/O, no clock, no shared state.
package scoring

import (
	"math"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
)

// Score counts the questions whose submitted answer matches the correct one.
//
// Correct options holding a slot name (`option1`..`option4`) are dereferenced against the
// question's options; anything else is literal text. Submitted values get the same
// treatment, so a form posting `option2` and a client posting the option text both match.
// Both sides are trimmed and case-folded. Unanswered questions are incorrect.
func Score(questions []catalog.Question, answers map[int]string) int {
	var correct int
	for _, q := range questions {
		submitted, ok := answers[q.ID]
		if !ok {
			continue
		}
		if IsCorrect(q, submitted) {
			correct++
		}
	}
	return correct
}

// IsCorrect grades a single answer.
func IsCorrect(q catalog.Question, submitted string) bool {
	if text, ok := q.Option(submitted); ok {
		submitted = text
	}
	answer := normalize(submitted)
	return answer != "" && answer == normalize(q.CorrectAnswer())
}

// Percentage is correct/total*100 rounded to 2 decimals; 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round(float64(correct)/float64(total)*100, 2)
}

// Round rounds half away from zero.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func normalize(s string) string {
	return core.CleanString(s, true /* lower */)
}
