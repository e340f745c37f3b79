// Package quiz runs the local, single-client question sequence: hard
// per-question deadlines, scoring, and per-answer persistence.
package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/scoring"
	"retroquiz-service/internal/session"
)

// QuestionSource supplies a random, non-repeating question sample.
type QuestionSource interface {
	RandomQuestions(ctx context.Context, count int) ([]domain.Question, error)
}

// Answerer is the blocking prompt the runner races against each question's
// deadline. Implementations return the selected option or an error; a return
// after the deadline is discarded by the resolution latch.
type Answerer interface {
	Ask(ctx context.Context, number, total int, q domain.Question) (domain.OptionTag, error)
}

// Observer receives per-question outcomes for display. All callbacks run on
// the runner's goroutine.
type Observer interface {
	QuestionResolved(q domain.Question, out scoring.Outcome)
}

// Result is one client's completed game.
type Result struct {
	FinalScore int
	Correct    int
	Wrong      int
	NoAnswer   int
	LastAnswer time.Time
}

// Runner plays one session's questions for one participant. Within a client,
// answer resolution, score recomputation, and persistence happen strictly in
// sequence per question; the next deadline only starts after the previous
// persistence calls were issued.
type Runner struct {
	service   *session.Service
	questions QuestionSource
	answerer  Answerer
	observer  Observer
	log       *logrus.Logger
	newTimer  func(d time.Duration) *time.Timer
}

func NewRunner(service *session.Service, questions QuestionSource, answerer Answerer, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		service:   service,
		questions: questions,
		answerer:  answerer,
		log:       log,
		newTimer:  time.NewTimer,
	}
}

// SetObserver attaches a display hook. Optional.
func (r *Runner) SetObserver(obs Observer) { r.observer = obs }

// Play runs the full question sequence for player in sess, persisting the
// running score after every answer, then finalizes the player's membership
// and lifetime stats.
func (r *Runner) Play(ctx context.Context, sess *domain.Session, player *domain.Player) (*Result, error) {
	questions, err := r.loadQuestions(ctx, sess.QuestionCount)
	if err != nil {
		return nil, err
	}

	tracker := scoring.NewTracker()
	for i, q := range questions {
		out, resolved, err := r.playQuestion(ctx, sess, player, tracker, i, len(questions), q)
		if err != nil {
			return nil, err
		}
		if resolved && r.observer != nil {
			r.observer.QuestionResolved(q, out)
		}
	}

	correct, wrong, noAnswer := tracker.Counts()
	if err := r.service.Complete(ctx, sess.ID, player.ID, tracker.Total(), correct, wrong, noAnswer); err != nil {
		return nil, err
	}

	return &Result{
		FinalScore: tracker.Total(),
		Correct:    correct,
		Wrong:      wrong,
		NoAnswer:   noAnswer,
		LastAnswer: tracker.LastAnswer(),
	}, nil
}

// loadQuestions pulls the configured sample from the store, degrading to the
// built-in offline bank when the store is unreachable or empty.
func (r *Runner) loadQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	questions, err := r.questions.RandomQuestions(ctx, count)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistenceUnavailable) {
			return nil, err
		}
		r.log.WithError(err).Warn("question store unreachable, using offline bank")
		questions = nil
	}
	if len(questions) == 0 {
		questions = BuiltinQuestions(count)
	}
	return questions, nil
}

type askResult struct {
	tag domain.OptionTag
	err error
}

func (r *Runner) playQuestion(ctx context.Context, sess *domain.Session, player *domain.Player, tracker *scoring.Tracker, index, total int, q domain.Question) (scoring.Outcome, bool, error) {
	tracker.Open(q.ID)

	askCtx, cancelAsk := context.WithCancel(ctx)
	defer cancelAsk()

	answers := make(chan askResult, 1)
	go func() {
		tag, err := r.answerer.Ask(askCtx, index+1, total, q)
		answers <- askResult{tag: tag, err: err}
	}()

	deadline := r.newTimer(sess.TimeLimit)
	defer deadline.Stop()
	started := time.Now()

	var (
		out scoring.Outcome
		ok  bool
	)
	select {
	case res := <-answers:
		if res.err != nil {
			// An aborted prompt counts as a timeout rather than
			// failing the whole game.
			if ctx.Err() != nil {
				return scoring.Outcome{}, false, ctx.Err()
			}
			out, ok = tracker.Timeout(sess.TimeLimit)
		} else {
			out, ok = tracker.Answer(res.tag, q.IsCorrect(res.tag), time.Since(started))
		}
	case <-deadline.C:
		// Hard deadline: the no-answer path fires exactly once; a
		// late Ask return loses the latch and is discarded.
		out, ok = tracker.Timeout(sess.TimeLimit)
		cancelAsk()
	case <-ctx.Done():
		return scoring.Outcome{}, false, ctx.Err()
	}
	if !ok {
		return scoring.Outcome{}, false, nil
	}

	if err := r.persist(ctx, sess, player, q, out); err != nil {
		return scoring.Outcome{}, false, err
	}
	return out, true, nil
}

func (r *Runner) persist(ctx context.Context, sess *domain.Session, player *domain.Player, q domain.Question, out scoring.Outcome) error {
	if err := r.service.RecordScore(ctx, sess.ID, player.ID, out.Total); err != nil {
		return err
	}
	return r.service.RecordAnswer(ctx, &domain.Answer{
		SessionID:  sess.ID,
		PlayerID:   player.ID,
		QuestionID: q.ID,
		Selected:   out.Selected,
		Correct:    out.Correct,
		TimeTaken:  out.TimeTaken,
		Points:     out.Points,
	})
}
