package domain

import "time"

// SessionStatus is the lifecycle state of a game session. Transitions only
// move forward: WAITING -> PLAYING -> CLOSED.
type SessionStatus string

const (
	StatusWaiting SessionStatus = "WAITING"
	StatusPlaying SessionStatus = "PLAYING"
	StatusClosed  SessionStatus = "CLOSED"
)

// CodeLength is the fixed width of a session code. Client-side input
// validation depends on this never changing.
const CodeLength = 6

// CodeAlphabet is the symbol set session codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Session defaults exposed to callers; question count and time limit are
// overridable per session at creation time.
const (
	DefaultQuestionCount = 10
	DefaultTimeLimit     = 15 * time.Second
	DefaultPollInterval  = 2 * time.Second
)

// Session is one instance of a quiz game, rendezvoused around a short code.
type Session struct {
	ID            int64
	Code          string
	HostID        int64
	Status        SessionStatus
	QuestionCount int
	TimeLimit     time.Duration
	CreatedAt     time.Time
}

// Member is the (session, player) relationship carrying the player's running
// score and finished flag for that session.
type Member struct {
	SessionID int64
	PlayerID  int64
	Username  string
	Score     int
	Finished  bool
	JoinedAt  time.Time
}

// Player is a participant with lifetime aggregate stats. Guests are
// ephemeral and excluded from the global leaderboard.
type Player struct {
	ID             int64
	Username       string
	Guest          bool
	TotalPoints    int
	GamesPlayed    int
	CorrectAnswers int
	WrongAnswers   int
	NoAnswers      int
	LastPlayed     time.Time
}

// OptionTag identifies one of a question's four options.
type OptionTag byte

const (
	OptionA OptionTag = 'A'
	OptionB OptionTag = 'B'
	OptionC OptionTag = 'C'
	OptionD OptionTag = 'D'
)

// Valid reports whether the tag is one of the four enumerated letters.
func (t OptionTag) Valid() bool {
	return t == OptionA || t == OptionB || t == OptionC || t == OptionD
}

// Question models an MCQ question with exactly one correct option. Questions
// are immutable once referenced by an in-progress session; edits never
// retroactively change history.
type Question struct {
	ID         int64     `json:"id"`
	Prompt     string    `json:"prompt"`
	OptionA    string    `json:"optionA"`
	OptionB    string    `json:"optionB"`
	OptionC    string    `json:"optionC"`
	OptionD    string    `json:"optionD"`
	Correct    OptionTag `json:"-"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
}

// Option returns the text for the given tag.
func (q Question) Option(tag OptionTag) string {
	switch tag {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}

// IsCorrect reports whether the tag matches the question's correct option.
func (q Question) IsCorrect(tag OptionTag) bool {
	return q.Correct == tag
}

// Answer is a write-once history row for a single submitted or timed-out
// answer. Selected is nil for a timeout. History feeds analytics only;
// session scores are accumulated incrementally, never replayed from it.
type Answer struct {
	SessionID  int64
	PlayerID   int64
	QuestionID int64
	Selected   *OptionTag
	Correct    bool
	TimeTaken  time.Duration
	Points     int
}

// Standing is a member's final score paired with the timestamp of their last
// answer, the input to the ranking engine.
type Standing struct {
	PlayerID   int64
	Username   string
	Score      int
	LastAnswer time.Time
}

// RankedEntry is the display-only final position of a participant. Never
// persisted.
type RankedEntry struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}
