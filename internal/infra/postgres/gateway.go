// Package postgres implements the persistence gateway on a pgx connection
// pool. Raw storage errors never escape this package: everything is wrapped
// into the domain error taxonomy.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"retroquiz-service/internal/domain"
)

// Gateway is the relational implementation of session.Gateway.
type Gateway struct {
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// storeErr tags a storage failure so callers can match
// domain.ErrPersistenceUnavailable while keeping the cause in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistenceUnavailable, err)
}

const playerColumns = `id, username, is_guest, total_points, games_played,
		       correct_answers, wrong_answers, no_answers, last_played`

func (g *Gateway) PlayerByName(ctx context.Context, username string) (*domain.Player, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM players WHERE username = $1`, username)
	return scanPlayer(row)
}

func (g *Gateway) PlayerByID(ctx context.Context, playerID int64) (*domain.Player, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM players WHERE id = $1`, playerID)
	return scanPlayer(row)
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var (
		p    domain.Player
		last *time.Time
	)
	err := row.Scan(&p.ID, &p.Username, &p.Guest, &p.TotalPoints, &p.GamesPlayed,
		&p.CorrectAnswers, &p.WrongAnswers, &p.NoAnswers, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load player", err)
	}
	if last != nil {
		p.LastPlayed = *last
	}
	return &p, nil
}

func (g *Gateway) CreatePlayer(ctx context.Context, username string, guest bool) (*domain.Player, error) {
	var id int64
	err := g.pool.QueryRow(ctx, `
		INSERT INTO players (username, is_guest, total_points, games_played)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, username, guest).Scan(&id)
	if err != nil {
		return nil, storeErr("create player", err)
	}
	return g.PlayerByID(ctx, id)
}

func (g *Gateway) UpdatePlayerStats(ctx context.Context, player *domain.Player) error {
	var last *time.Time
	if !player.LastPlayed.IsZero() {
		last = &player.LastPlayed
	}
	_, err := g.pool.Exec(ctx, `
		UPDATE players SET total_points = $2, games_played = $3,
		       correct_answers = $4, wrong_answers = $5, no_answers = $6,
		       last_played = $7
		WHERE id = $1`,
		player.ID, player.TotalPoints, player.GamesPlayed,
		player.CorrectAnswers, player.WrongAnswers, player.NoAnswers, last)
	if err != nil {
		return storeErr("update player stats", err)
	}
	return nil
}

// TopPlayers is the global lifetime leaderboard. Guests are excluded.
func (g *Gateway) TopPlayers(ctx context.Context, limit int) ([]domain.Player, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_guest = FALSE
		ORDER BY total_points DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr("load top players", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var (
			p    domain.Player
			last *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Username, &p.Guest, &p.TotalPoints, &p.GamesPlayed,
			&p.CorrectAnswers, &p.WrongAnswers, &p.NoAnswers, &last); err != nil {
			return nil, storeErr("scan top players", err)
		}
		if last != nil {
			p.LastPlayed = *last
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CodeTaken only counts non-closed sessions: codes of closed sessions may be
// reissued.
func (g *Gateway) CodeTaken(ctx context.Context, sessionCode string) (bool, error) {
	var taken bool
	err := g.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM game_sessions
			WHERE session_code = $1 AND status <> 'CLOSED'
		)`, sessionCode).Scan(&taken)
	if err != nil {
		return false, storeErr("check session code", err)
	}
	return taken, nil
}

func (g *Gateway) CreateSession(ctx context.Context, s *domain.Session) (int64, error) {
	var id int64
	err := g.pool.QueryRow(ctx, `
		INSERT INTO game_sessions (session_code, host_id, status, question_count, timer_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.Code, s.HostID, string(s.Status), s.QuestionCount,
		int(s.TimeLimit/time.Second), s.CreatedAt).Scan(&id)
	if err != nil {
		return 0, storeErr("create session", err)
	}
	return id, nil
}

func (g *Gateway) SessionByCode(ctx context.Context, sessionCode string) (*domain.Session, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT id, session_code, host_id, status, question_count, timer_seconds, created_at
		FROM game_sessions WHERE session_code = $1`, sessionCode)
	return scanSession(row)
}

func (g *Gateway) SessionByID(ctx context.Context, sessionID int64) (*domain.Session, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT id, session_code, host_id, status, question_count, timer_seconds, created_at
		FROM game_sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s       domain.Session
		status  string
		seconds int
	)
	err := row.Scan(&s.ID, &s.Code, &s.HostID, &status, &s.QuestionCount, &seconds, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load session", err)
	}
	s.Status = domain.SessionStatus(status)
	s.TimeLimit = time.Duration(seconds) * time.Second
	return &s, nil
}

// UpdateSessionStatus is a conditional single-statement transition; it
// leaves a session alone when it has already moved past `from`. The status
// field has exactly one legal writer per transition, so no extra locking is
// needed.
func (g *Gateway) UpdateSessionStatus(ctx context.Context, sessionID int64, from, to domain.SessionStatus) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE game_sessions SET status = $3
		WHERE id = $1 AND status = $2`,
		sessionID, string(from), string(to))
	if err != nil {
		return storeErr("update session status", err)
	}
	return nil
}

// AddMember inserts a membership row; the composite-key conflict clause
// makes re-joins no-ops.
func (g *Gateway) AddMember(ctx context.Context, sessionID, playerID int64) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO session_players (session_id, player_id, score, is_finished, joined_at)
		VALUES ($1, $2, 0, FALSE, CURRENT_TIMESTAMP)
		ON CONFLICT (session_id, player_id) DO NOTHING`,
		sessionID, playerID)
	if err != nil {
		return storeErr("add member", err)
	}
	return nil
}

func (g *Gateway) UpdateMemberScore(ctx context.Context, sessionID, playerID int64, score int) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE session_players SET score = $3
		WHERE session_id = $1 AND player_id = $2`,
		sessionID, playerID, score)
	if err != nil {
		return storeErr("update member score", err)
	}
	return nil
}

func (g *Gateway) MarkMemberFinished(ctx context.Context, sessionID, playerID int64) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE session_players SET is_finished = TRUE
		WHERE session_id = $1 AND player_id = $2`,
		sessionID, playerID)
	if err != nil {
		return storeErr("mark member finished", err)
	}
	return nil
}

func (g *Gateway) UnfinishedCount(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := g.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM session_players
		WHERE session_id = $1 AND is_finished = FALSE`, sessionID).Scan(&count)
	if err != nil {
		return 0, storeErr("count unfinished members", err)
	}
	return count, nil
}

func (g *Gateway) Members(ctx context.Context, sessionID int64) ([]domain.Member, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT sp.session_id, sp.player_id, p.username, sp.score, sp.is_finished, sp.joined_at
		FROM session_players sp
		JOIN players p ON p.id = sp.player_id
		WHERE sp.session_id = $1
		ORDER BY sp.joined_at, sp.player_id`, sessionID)
	if err != nil {
		return nil, storeErr("load members", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.SessionID, &m.PlayerID, &m.Username, &m.Score, &m.Finished, &m.JoinedAt); err != nil {
			return nil, storeErr("scan member", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Standings joins each member's final score with the timestamp of their last
// submitted answer (timeouts do not move the tie-break clock).
func (g *Gateway) Standings(ctx context.Context, sessionID int64) ([]domain.Standing, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT p.id, p.username, sp.score,
		       MAX(pa.answered_at) FILTER (WHERE pa.selected_option IS NOT NULL)
		FROM session_players sp
		JOIN players p ON p.id = sp.player_id
		LEFT JOIN player_answers pa
		  ON pa.session_id = sp.session_id AND pa.player_id = sp.player_id
		WHERE sp.session_id = $1
		GROUP BY p.id, p.username, sp.score, sp.joined_at
		ORDER BY sp.joined_at, p.id`, sessionID)
	if err != nil {
		return nil, storeErr("load standings", err)
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var (
			s    domain.Standing
			last *time.Time
		)
		if err := rows.Scan(&s.PlayerID, &s.Username, &s.Score, &last); err != nil {
			return nil, storeErr("scan standing", err)
		}
		if last != nil {
			s.LastAnswer = *last
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

func (g *Gateway) RecordAnswer(ctx context.Context, answer *domain.Answer) error {
	var selected *string
	if answer.Selected != nil {
		s := string(*answer.Selected)
		selected = &s
	}
	_, err := g.pool.Exec(ctx, `
		INSERT INTO player_answers
			(session_id, player_id, question_id, selected_option, is_correct, time_taken_ms, points_earned, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)`,
		answer.SessionID, answer.PlayerID, answer.QuestionID, selected,
		answer.Correct, answer.TimeTaken.Milliseconds(), answer.Points)
	if err != nil {
		return storeErr("record answer", err)
	}
	return nil
}
