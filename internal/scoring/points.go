// Package scoring converts answers into point deltas and tracks a client's
// running session score.
package scoring

// Fixed scoring constants. Not configurable per session.
const (
	PointsCorrect  = 10
	PointsWrong    = -5
	PointsNoAnswer = -15
)

// Points is the scoring function. A question left unanswered when its time
// limit elapses costs more than a wrong answer.
func Points(answered, correct bool) int {
	if !answered {
		return PointsNoAnswer
	}
	if correct {
		return PointsCorrect
	}
	return PointsWrong
}
