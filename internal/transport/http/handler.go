// Package http exposes the session lifecycle, question management, and
// leaderboard over a polled JSON API. Clients converge by re-fetching the
// lobby and results resources; nothing is pushed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/ranking"
	"retroquiz-service/internal/session"
)

// QuestionRepository is the question management surface behind the API.
type QuestionRepository interface {
	AllQuestions(ctx context.Context) ([]domain.Question, error)
	RandomQuestions(ctx context.Context, count int) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, q *domain.Question) (int64, error)
	UpdateQuestion(ctx context.Context, q *domain.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
}

// LeaderboardSource serves the global lifetime leaderboard.
type LeaderboardSource interface {
	TopPlayers(ctx context.Context, limit int) ([]domain.Player, error)
}

type Handler struct {
	sessions    *session.Service
	questions   QuestionRepository
	leaderboard LeaderboardSource
	log         *logrus.Logger
}

func NewHandler(sessions *session.Service, questions QuestionRepository, leaderboard LeaderboardSource, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		sessions:    sessions,
		questions:   questions,
		leaderboard: leaderboard,
		log:         log,
	}
}

type sessionView struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	HostID        int64  `json:"hostId"`
	Status        string `json:"status"`
	QuestionCount int    `json:"questionCount"`
	TimerSeconds  int    `json:"timerSeconds"`
}

func toSessionView(s *domain.Session) sessionView {
	return sessionView{
		ID:            s.ID,
		Code:          s.Code,
		HostID:        s.HostID,
		Status:        string(s.Status),
		QuestionCount: s.QuestionCount,
		TimerSeconds:  int(s.TimeLimit / time.Second),
	}
}

type createSessionRequest struct {
	HostName      string `json:"hostName"`
	QuestionCount int    `json:"questionCount"`
	TimerSeconds  int    `json:"timerSeconds"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	s, err := h.sessions.Create(r.Context(), req.HostName,
		req.QuestionCount, time.Duration(req.TimerSeconds)*time.Second)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toSessionView(s))
}

type joinRequest struct {
	Username string `json:"username"`
}

type joinResponse struct {
	Session sessionView `json:"session"`
	Player  playerView  `json:"player"`
}

type playerView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	s, p, err := h.sessions.Join(r.Context(), urlParam(r, "code"), req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, joinResponse{
		Session: toSessionView(s),
		Player:  playerView{ID: p.ID, Username: p.Username, Guest: p.Guest},
	})
}

type lobbyResponse struct {
	Session sessionView `json:"session"`
	Players []string    `json:"players"`
}

// lobby is the polled roster resource: session state plus member names in
// join order.
func (h *Handler) lobby(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Lookup(r.Context(), urlParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	names, err := h.sessions.MemberNames(r.Context(), s.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lobbyResponse{Session: toSessionView(s), Players: names})
}

type startRequest struct {
	PlayerID int64 `json:"playerId"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := h.sessions.Start(r.Context(), id, req.PlayerID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusPlaying)})
}

type answerRequest struct {
	PlayerID   int64  `json:"playerId"`
	QuestionID int64  `json:"questionId"`
	Selected   string `json:"selected"`
	Correct    bool   `json:"correct"`
	TimeTaken  int64  `json:"timeTakenMs"`
	Points     int    `json:"points"`
	Score      int    `json:"score"`
}

// recordAnswer persists one resolved question for a member: the running
// score first, then the immutable history row.
func (h *Handler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	answer := &domain.Answer{
		SessionID:  id,
		PlayerID:   req.PlayerID,
		QuestionID: req.QuestionID,
		Correct:    req.Correct,
		TimeTaken:  time.Duration(req.TimeTaken) * time.Millisecond,
		Points:     req.Points,
	}
	if req.Selected != "" {
		tag := domain.OptionTag(req.Selected[0])
		if !tag.Valid() {
			h.writeError(w, domain.ErrInvalidInput)
			return
		}
		answer.Selected = &tag
	}
	if err := h.sessions.RecordScore(r.Context(), id, req.PlayerID, req.Score); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.sessions.RecordAnswer(r.Context(), answer); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type finishRequest struct {
	FinalScore int `json:"finalScore"`
	Correct    int `json:"correct"`
	Wrong      int `json:"wrong"`
	NoAnswer   int `json:"noAnswer"`
}

func (h *Handler) finishPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	playerID, err := strconv.ParseInt(urlParam(r, "playerID"), 10, 64)
	if err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := h.sessions.Complete(r.Context(), id, playerID,
		req.FinalScore, req.Correct, req.Wrong, req.NoAnswer); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resultsResponse struct {
	Finished bool                 `json:"finished"`
	Board    []domain.RankedEntry `json:"board,omitempty"`
}

// results is the polled convergence resource. It reports finished=false
// until every member is done; the first poll that observes convergence
// closes the session, and every poll after that sees the same board.
func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	done, err := h.sessions.AllFinished(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !done {
		h.writeJSON(w, http.StatusOK, resultsResponse{Finished: false})
		return
	}
	if err := h.sessions.Close(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	standings, err := h.sessions.Standings(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resultsResponse{
		Finished: true,
		Board:    ranking.Rank(standings),
	})
}

type questionPayload struct {
	ID         int64  `json:"id,omitempty"`
	Prompt     string `json:"prompt"`
	OptionA    string `json:"optionA"`
	OptionB    string `json:"optionB"`
	OptionC    string `json:"optionC"`
	OptionD    string `json:"optionD"`
	Correct    string `json:"correct"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

func (p questionPayload) toDomain() (*domain.Question, error) {
	if p.Prompt == "" || p.OptionA == "" || p.OptionB == "" ||
		p.OptionC == "" || p.OptionD == "" || len(p.Correct) != 1 {
		return nil, domain.ErrInvalidInput
	}
	tag := domain.OptionTag(p.Correct[0])
	if !tag.Valid() {
		return nil, domain.ErrInvalidInput
	}
	return &domain.Question{
		ID:         p.ID,
		Prompt:     p.Prompt,
		OptionA:    p.OptionA,
		OptionB:    p.OptionB,
		OptionC:    p.OptionC,
		OptionD:    p.OptionD,
		Correct:    tag,
		Category:   p.Category,
		Difficulty: p.Difficulty,
	}, nil
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.questions.AllQuestions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) randomQuestions(w http.ResponseWriter, r *http.Request) {
	count := domain.DefaultQuestionCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, domain.ErrInvalidInput)
			return
		}
		count = n
	}
	qs, err := h.questions.RandomQuestions(r.Context(), count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var payload questionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	q, err := payload.toDomain()
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.questions.CreateQuestion(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q.ID = id
	h.writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(urlParam(r, "questionID"), 10, 64)
	if err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	var payload questionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	q, err := payload.toDomain()
	if err != nil {
		h.writeError(w, err)
		return
	}
	q.ID = id
	if err := h.questions.UpdateQuestion(r.Context(), q); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(urlParam(r, "questionID"), 10, 64)
	if err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := h.questions.DeleteQuestion(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type leaderboardEntry struct {
	Username    string `json:"username"`
	TotalPoints int    `json:"totalPoints"`
	GamesPlayed int    `json:"gamesPlayed"`
}

func (h *Handler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, domain.ErrInvalidInput)
			return
		}
		limit = n
	}
	players, err := h.leaderboard.TopPlayers(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries := make([]leaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, leaderboardEntry{
			Username:    p.Username,
			TotalPoints: p.TotalPoints,
			GamesPlayed: p.GamesPlayed,
		})
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(urlParam(r, "sessionID"), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidInput
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotHost):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotJoinable),
		errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceUnavailable),
		errors.Is(err, domain.ErrCodeExhausted):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.log.WithError(err).Warn("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Warn("write response")
	}
}
