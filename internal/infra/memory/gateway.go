// Package memory provides in-process implementations of the persistence
// interfaces, used by unit tests and the offline solo mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"retroquiz-service/internal/domain"
)

// Gateway is an in-memory implementation of session.Gateway. All methods are
// safe for concurrent use; rows are disjoint per (session, player) exactly
// like the relational store.
type Gateway struct {
	mu  sync.RWMutex
	now func() time.Time

	nextPlayerID  int64
	nextSessionID int64

	playersByID   map[int64]*domain.Player
	playersByName map[string]int64
	sessions      map[int64]*domain.Session
	sessionByCode map[string]int64
	members       map[int64][]*memberRow
	answers       []domain.Answer
}

type memberRow struct {
	playerID   int64
	score      int
	finished   bool
	joinedAt   time.Time
	lastAnswer time.Time
}

func NewGateway() *Gateway {
	return NewGatewayWithClock(time.Now)
}

// NewGatewayWithClock is for deterministic timestamps in tests.
func NewGatewayWithClock(now func() time.Time) *Gateway {
	return &Gateway{
		now:           now,
		playersByID:   make(map[int64]*domain.Player),
		playersByName: make(map[string]int64),
		sessions:      make(map[int64]*domain.Session),
		sessionByCode: make(map[string]int64),
		members:       make(map[int64][]*memberRow),
	}
}

func (g *Gateway) PlayerByName(_ context.Context, username string) (*domain.Player, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.playersByName[username]
	if !ok {
		return nil, nil
	}
	out := *g.playersByID[id]
	return &out, nil
}

func (g *Gateway) PlayerByID(_ context.Context, playerID int64) (*domain.Player, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	player, ok := g.playersByID[playerID]
	if !ok {
		return nil, nil
	}
	out := *player
	return &out, nil
}

func (g *Gateway) CreatePlayer(_ context.Context, username string, guest bool) (*domain.Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.playersByName[username]; ok {
		out := *g.playersByID[id]
		return &out, nil
	}
	g.nextPlayerID++
	player := &domain.Player{ID: g.nextPlayerID, Username: username, Guest: guest}
	g.playersByID[player.ID] = player
	g.playersByName[username] = player.ID
	out := *player
	return &out, nil
}

func (g *Gateway) UpdatePlayerStats(_ context.Context, player *domain.Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	existing, ok := g.playersByID[player.ID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	*existing = *player
	return nil
}

// TopPlayers returns registered players ordered by lifetime points; guests
// never appear on the global leaderboard.
func (g *Gateway) TopPlayers(_ context.Context, limit int) ([]domain.Player, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var players []domain.Player
	for _, p := range g.playersByID {
		if !p.Guest {
			players = append(players, *p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].TotalPoints > players[j].TotalPoints })
	if limit > 0 && len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

func (g *Gateway) CodeTaken(_ context.Context, sessionCode string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.sessionByCode[sessionCode]
	if !ok {
		return false, nil
	}
	return g.sessions[id].Status != domain.StatusClosed, nil
}

func (g *Gateway) CreateSession(_ context.Context, s *domain.Session) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextSessionID++
	stored := *s
	stored.ID = g.nextSessionID
	g.sessions[stored.ID] = &stored
	g.sessionByCode[stored.Code] = stored.ID
	return stored.ID, nil
}

func (g *Gateway) SessionByCode(_ context.Context, sessionCode string) (*domain.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.sessionByCode[sessionCode]
	if !ok {
		return nil, nil
	}
	out := *g.sessions[id]
	return &out, nil
}

func (g *Gateway) SessionByID(_ context.Context, sessionID int64) (*domain.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := *sess
	return &out, nil
}

// UpdateSessionStatus applies a conditional transition; a session no longer
// in the expected state is left untouched, mirroring the store's
// single-statement UPDATE ... WHERE status = $from.
func (g *Gateway) UpdateSessionStatus(_ context.Context, sessionID int64, from, to domain.SessionStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.Status == from {
		sess.Status = to
	}
	return nil
}

func (g *Gateway) AddMember(_ context.Context, sessionID, playerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	for _, m := range g.members[sessionID] {
		if m.playerID == playerID {
			return nil
		}
	}
	g.members[sessionID] = append(g.members[sessionID], &memberRow{
		playerID: playerID,
		joinedAt: g.now(),
	})
	return nil
}

func (g *Gateway) UpdateMemberScore(_ context.Context, sessionID, playerID int64, score int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := g.memberLocked(sessionID, playerID)
	if row == nil {
		return domain.ErrPlayerNotFound
	}
	row.score = score
	return nil
}

func (g *Gateway) MarkMemberFinished(_ context.Context, sessionID, playerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := g.memberLocked(sessionID, playerID)
	if row == nil {
		return domain.ErrPlayerNotFound
	}
	row.finished = true
	return nil
}

func (g *Gateway) UnfinishedCount(_ context.Context, sessionID int64) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, m := range g.members[sessionID] {
		if !m.finished {
			count++
		}
	}
	return count, nil
}

func (g *Gateway) Members(_ context.Context, sessionID int64) ([]domain.Member, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rows := g.members[sessionID]
	members := make([]domain.Member, len(rows))
	for i, m := range rows {
		members[i] = domain.Member{
			SessionID: sessionID,
			PlayerID:  m.playerID,
			Username:  g.playersByID[m.playerID].Username,
			Score:     m.score,
			Finished:  m.finished,
			JoinedAt:  m.joinedAt,
		}
	}
	return members, nil
}

func (g *Gateway) Standings(_ context.Context, sessionID int64) ([]domain.Standing, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rows := g.members[sessionID]
	standings := make([]domain.Standing, len(rows))
	for i, m := range rows {
		standings[i] = domain.Standing{
			PlayerID:   m.playerID,
			Username:   g.playersByID[m.playerID].Username,
			Score:      m.score,
			LastAnswer: m.lastAnswer,
		}
	}
	return standings, nil
}

// RecordAnswer appends a history row. Submitted answers also stamp the
// member's last-answer time for ranking tie-breaks; timeouts do not.
func (g *Gateway) RecordAnswer(_ context.Context, answer *domain.Answer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, *answer)
	if answer.Selected != nil {
		if row := g.memberLocked(answer.SessionID, answer.PlayerID); row != nil {
			row.lastAnswer = g.now()
		}
	}
	return nil
}

// Answers returns the recorded history for assertions in tests.
func (g *Gateway) Answers(sessionID int64) []domain.Answer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.Answer
	for _, a := range g.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out
}

func (g *Gateway) memberLocked(sessionID, playerID int64) *memberRow {
	for _, m := range g.members[sessionID] {
		if m.playerID == playerID {
			return m
		}
	}
	return nil
}
