package scoring

import (
	"sync/atomic"
	"time"

	"retroquiz-service/internal/domain"
)

// Outcome describes how a single question was resolved.
type Outcome struct {
	QuestionID int64
	Selected   *domain.OptionTag
	Answered   bool
	Correct    bool
	TimeTaken  time.Duration
	Points     int
	Total      int
}

// Tracker accumulates one client's running session score. Each open question
// carries a compare-and-set resolution latch so that exactly one of
// {answer, timeout} takes effect: whichever loses the race reports
// resolved=false and must change nothing.
type Tracker struct {
	resolved atomic.Bool
	question int64

	now func() time.Time

	total      int
	correct    int
	wrong      int
	noAnswer   int
	lastAnswer time.Time
}

func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock is for deterministic timestamps in tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	t := &Tracker{now: now}
	t.resolved.Store(true) // no question open yet
	return t
}

// Open arms the tracker for a new question. Must not be called while a
// question is still unresolved.
func (t *Tracker) Open(questionID int64) {
	t.question = questionID
	t.resolved.Store(false)
}

// Answer resolves the open question with a selected option. Returns the
// outcome and false if the question was already resolved (late submission
// after timeout, or double click).
func (t *Tracker) Answer(selected domain.OptionTag, correct bool, elapsed time.Duration) (Outcome, bool) {
	if !t.resolved.CompareAndSwap(false, true) {
		return Outcome{}, false
	}

	points := Points(true, correct)
	t.total += points
	if correct {
		t.correct++
	} else {
		t.wrong++
	}
	t.lastAnswer = t.now()

	sel := selected
	return Outcome{
		QuestionID: t.question,
		Selected:   &sel,
		Answered:   true,
		Correct:    correct,
		TimeTaken:  elapsed,
		Points:     points,
		Total:      t.total,
	}, true
}

// Timeout resolves the open question as unanswered. Returns false if an
// answer already won the race.
func (t *Tracker) Timeout(limit time.Duration) (Outcome, bool) {
	if !t.resolved.CompareAndSwap(false, true) {
		return Outcome{}, false
	}

	points := Points(false, false)
	t.total += points
	t.noAnswer++

	return Outcome{
		QuestionID: t.question,
		Answered:   false,
		TimeTaken:  limit,
		Points:     points,
		Total:      t.total,
	}, true
}

// Total is the cumulative session score. May be negative; there is no floor.
func (t *Tracker) Total() int { return t.total }

// LastAnswer is the timestamp of the most recent submitted answer, used for
// ranking tie-breaks.
func (t *Tracker) LastAnswer() time.Time { return t.lastAnswer }

// Counts returns the per-session correct/wrong/no-answer tallies folded into
// the player's lifetime stats at the end of a game.
func (t *Tracker) Counts() (correct, wrong, noAnswer int) {
	return t.correct, t.wrong, t.noAnswer
}
