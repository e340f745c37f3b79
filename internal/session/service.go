// Package session owns the session lifecycle: code issuance, join admission,
// status transitions, and termination detection. All cross-client
// coordination happens through the persistent store; this service is the only
// path between clients and session state.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/code"
	"retroquiz-service/internal/domain"
)

// Gateway abstracts the persistent store. Implementations must convert raw
// storage failures into the domain error taxonomy; nothing lower-level may
// escape this boundary.
type Gateway interface {
	PlayerByName(ctx context.Context, username string) (*domain.Player, error)
	PlayerByID(ctx context.Context, playerID int64) (*domain.Player, error)
	CreatePlayer(ctx context.Context, username string, guest bool) (*domain.Player, error)
	UpdatePlayerStats(ctx context.Context, player *domain.Player) error

	CodeTaken(ctx context.Context, sessionCode string) (bool, error)
	CreateSession(ctx context.Context, s *domain.Session) (int64, error)
	SessionByCode(ctx context.Context, sessionCode string) (*domain.Session, error)
	SessionByID(ctx context.Context, sessionID int64) (*domain.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID int64, from, to domain.SessionStatus) error

	AddMember(ctx context.Context, sessionID, playerID int64) error
	UpdateMemberScore(ctx context.Context, sessionID, playerID int64, score int) error
	MarkMemberFinished(ctx context.Context, sessionID, playerID int64) error
	UnfinishedCount(ctx context.Context, sessionID int64) (int, error)
	Members(ctx context.Context, sessionID int64) ([]domain.Member, error)
	Standings(ctx context.Context, sessionID int64) ([]domain.Standing, error)

	RecordAnswer(ctx context.Context, answer *domain.Answer) error
}

// Service implements the session lifecycle operations exposed to clients and
// the transport layer.
type Service struct {
	gateway Gateway
	codes   *code.Generator
	log     *logrus.Logger
	now     func() time.Time
}

func NewService(gateway Gateway, codes *code.Generator, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		gateway: gateway,
		codes:   codes,
		log:     log,
		now:     time.Now,
	}
}

// Create allocates a unique code, persists a new WAITING session, and adds
// the host as its first member. Zero or negative counts fall back to the
// configured defaults.
func (s *Service) Create(ctx context.Context, hostName string, questionCount int, timeLimit time.Duration) (*domain.Session, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return nil, domain.ErrInvalidInput
	}
	if questionCount <= 0 {
		questionCount = domain.DefaultQuestionCount
	}
	if timeLimit <= 0 {
		timeLimit = domain.DefaultTimeLimit
	}

	host, err := s.resolvePlayer(ctx, hostName, false)
	if err != nil {
		return nil, err
	}

	sessionCode, err := s.codes.Allocate(ctx, s.gateway.CodeTaken)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		Code:          sessionCode,
		HostID:        host.ID,
		Status:        domain.StatusWaiting,
		QuestionCount: questionCount,
		TimeLimit:     timeLimit,
		CreatedAt:     s.now(),
	}
	sess.ID, err = s.gateway.CreateSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.AddMember(ctx, sess.ID, host.ID); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"code":      sessionCode,
		"sessionId": sess.ID,
		"host":      hostName,
	}).Info("session created")
	return sess, nil
}

// Join admits a player into a WAITING session. The code is trimmed and
// upper-cased before lookup and rejected before any persistence call if it
// does not match the fixed 6-character format. Joining twice with the same
// name is a no-op, not an error.
func (s *Service) Join(ctx context.Context, sessionCode, playerName string) (*domain.Session, *domain.Player, error) {
	sessionCode = NormalizeCode(sessionCode)
	playerName = strings.TrimSpace(playerName)
	if playerName == "" || !ValidCode(sessionCode) {
		return nil, nil, domain.ErrInvalidInput
	}

	player, err := s.resolvePlayer(ctx, playerName, true)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.gateway.SessionByCode(ctx, sessionCode)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, domain.ErrSessionNotFound
	}
	if sess.Status != domain.StatusWaiting {
		return nil, nil, domain.ErrSessionNotJoinable
	}

	if err := s.gateway.AddMember(ctx, sess.ID, player.ID); err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"code":   sessionCode,
		"player": playerName,
	}).Info("player joined session")
	return sess, player, nil
}

// Start transitions a session from WAITING to PLAYING. Only the host may
// start. Starting an already PLAYING session is a no-op; a CLOSED session
// rejects the call. A host may start solo: the session plays with whoever
// has joined by then.
func (s *Service) Start(ctx context.Context, sessionID, playerID int64) error {
	sess, err := s.gateway.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return domain.ErrSessionNotFound
	}

	switch sess.Status {
	case domain.StatusClosed:
		return domain.ErrSessionClosed
	case domain.StatusPlaying:
		return nil
	}
	if sess.HostID != playerID {
		return domain.ErrNotHost
	}

	if err := s.gateway.UpdateSessionStatus(ctx, sessionID, domain.StatusWaiting, domain.StatusPlaying); err != nil {
		return err
	}
	s.log.WithField("sessionId", sessionID).Info("session started")
	return nil
}

// writable rejects writes to a session that has reached its terminal state.
// Once CLOSED, the board is final: a late or errant client must not be able
// to change what other participants have already fetched.
func (s *Service) writable(ctx context.Context, sessionID int64) error {
	status, err := s.Status(ctx, sessionID)
	if err != nil {
		return err
	}
	if status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	return nil
}

// RecordScore overwrites a member's cumulative score. Each participant only
// ever writes their own row, so last-writer-wins is race-free by
// construction. Rejected with ErrSessionClosed once the session is CLOSED.
func (s *Service) RecordScore(ctx context.Context, sessionID, playerID int64, cumulative int) error {
	if err := s.writable(ctx, sessionID); err != nil {
		return err
	}
	return s.gateway.UpdateMemberScore(ctx, sessionID, playerID, cumulative)
}

// RecordAnswer appends one write-once answer-history row. Rejected with
// ErrSessionClosed once the session is CLOSED.
func (s *Service) RecordAnswer(ctx context.Context, answer *domain.Answer) error {
	if err := s.writable(ctx, answer.SessionID); err != nil {
		return err
	}
	return s.gateway.RecordAnswer(ctx, answer)
}

// MarkFinished flags a member as done with their local quiz. Idempotent
// while the session is open; rejected with ErrSessionClosed after close.
func (s *Service) MarkFinished(ctx context.Context, sessionID, playerID int64) error {
	if err := s.writable(ctx, sessionID); err != nil {
		return err
	}
	return s.gateway.MarkMemberFinished(ctx, sessionID, playerID)
}

// AllFinished reports whether every member of the session has finished.
func (s *Service) AllFinished(ctx context.Context, sessionID int64) (bool, error) {
	unfinished, err := s.gateway.UnfinishedCount(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return unfinished == 0, nil
}

// Close moves an all-finished session to CLOSED. Every converging client may
// call it; the conditional single-statement update makes it idempotent.
func (s *Service) Close(ctx context.Context, sessionID int64) error {
	done, err := s.AllFinished(ctx, sessionID)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	return s.gateway.UpdateSessionStatus(ctx, sessionID, domain.StatusPlaying, domain.StatusClosed)
}

// Status returns the session's current lifecycle state.
func (s *Service) Status(ctx context.Context, sessionID int64) (domain.SessionStatus, error) {
	sess, err := s.gateway.SessionByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", domain.ErrSessionNotFound
	}
	return sess.Status, nil
}

// Lookup resolves a session by its user-facing code.
func (s *Service) Lookup(ctx context.Context, sessionCode string) (*domain.Session, error) {
	sess, err := s.gateway.SessionByCode(ctx, NormalizeCode(sessionCode))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// MemberNames returns the ordered list of usernames in a session. Pollers
// compare the full list by value to detect roster changes.
func (s *Service) MemberNames(ctx context.Context, sessionID int64) ([]string, error) {
	members, err := s.gateway.Members(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
	}
	return names, nil
}

// IsHost reports whether the player owns the session.
func (s *Service) IsHost(ctx context.Context, sessionID, playerID int64) (bool, error) {
	sess, err := s.gateway.SessionByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, domain.ErrSessionNotFound
	}
	return sess.HostID == playerID, nil
}

// Standings returns every member's final score and last-answer timestamp for
// the ranking engine.
func (s *Service) Standings(ctx context.Context, sessionID int64) ([]domain.Standing, error) {
	return s.gateway.Standings(ctx, sessionID)
}

// Complete finalizes one player's game: final score sync, finished flag, and
// the fold of the session result into their lifetime aggregates. Aggregates
// are only mutated here, at the end of a completed session.
func (s *Service) Complete(ctx context.Context, sessionID, playerID int64, finalScore, correct, wrong, noAnswer int) error {
	if err := s.writable(ctx, sessionID); err != nil {
		return err
	}
	if err := s.gateway.UpdateMemberScore(ctx, sessionID, playerID, finalScore); err != nil {
		return err
	}
	if err := s.gateway.MarkMemberFinished(ctx, sessionID, playerID); err != nil {
		return err
	}

	player, err := s.gateway.PlayerByID(ctx, playerID)
	if err != nil {
		return err
	}
	if player == nil {
		return domain.ErrPlayerNotFound
	}

	player.TotalPoints += finalScore
	player.GamesPlayed++
	player.CorrectAnswers += correct
	player.WrongAnswers += wrong
	player.NoAnswers += noAnswer
	player.LastPlayed = s.now()
	if err := s.gateway.UpdatePlayerStats(ctx, player); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"player":    player.Username,
		"score":     finalScore,
	}).Info("player finished")
	return nil
}

func (s *Service) resolvePlayer(ctx context.Context, username string, guest bool) (*domain.Player, error) {
	player, err := s.gateway.PlayerByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if player != nil {
		return player, nil
	}
	return s.gateway.CreatePlayer(ctx, username, guest)
}

// NormalizeCode upper-cases and trims user-entered session codes before
// lookup.
func NormalizeCode(sessionCode string) string {
	return strings.ToUpper(strings.TrimSpace(sessionCode))
}

// ValidCode reports whether a normalized code has the exact fixed width and
// alphabet.
func ValidCode(sessionCode string) bool {
	if len(sessionCode) != domain.CodeLength {
		return false
	}
	for i := 0; i < len(sessionCode); i++ {
		if !strings.ContainsRune(domain.CodeAlphabet, rune(sessionCode[i])) {
			return false
		}
	}
	return true
}
