package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/code"
	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/infra/memory"
	"retroquiz-service/internal/quiz"
	"retroquiz-service/internal/session"
)

type fakeQuestions struct {
	bank   []domain.Question
	nextID int64
}

func newFakeQuestions(bank []domain.Question) *fakeQuestions {
	return &fakeQuestions{bank: bank, nextID: 1000}
}

func (f *fakeQuestions) AllQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(f.bank))
	copy(out, f.bank)
	return out, nil
}

func (f *fakeQuestions) RandomQuestions(_ context.Context, count int) ([]domain.Question, error) {
	if count > len(f.bank) {
		count = len(f.bank)
	}
	out := make([]domain.Question, count)
	copy(out, f.bank)
	return out, nil
}

func (f *fakeQuestions) CreateQuestion(_ context.Context, q *domain.Question) (int64, error) {
	f.nextID++
	stored := *q
	stored.ID = f.nextID
	f.bank = append(f.bank, stored)
	return f.nextID, nil
}

func (f *fakeQuestions) UpdateQuestion(_ context.Context, q *domain.Question) error {
	for i := range f.bank {
		if f.bank[i].ID == q.ID {
			f.bank[i] = *q
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (f *fakeQuestions) DeleteQuestion(_ context.Context, id int64) error {
	for i := range f.bank {
		if f.bank[i].ID == id {
			f.bank = append(f.bank[:i], f.bank[i+1:]...)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Gateway) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	gateway := memory.NewGateway()
	sessions := session.NewService(gateway, code.NewWithSource(rand.NewSource(1)), log)
	handler := NewHandler(sessions, newFakeQuestions(quiz.BuiltinQuestions(5)), gateway, log)

	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, gateway
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func createSessionForTest(t *testing.T, srv *httptest.Server, hostName string) sessionView {
	t.Helper()
	var view sessionView
	status := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions",
		createSessionRequest{HostName: hostName, QuestionCount: 2, TimerSeconds: 15}, &view)
	if status != http.StatusCreated {
		t.Fatalf("create session: status %d", status)
	}
	return view
}

func TestCreateSessionReturnsValidCode(t *testing.T) {
	srv, _ := newTestServer(t)

	view := createSessionForTest(t, srv, "host")
	if !session.ValidCode(view.Code) {
		t.Fatalf("invalid session code %q", view.Code)
	}
	if view.Status != string(domain.StatusWaiting) {
		t.Fatalf("expected WAITING, got %s", view.Status)
	}
	if view.QuestionCount != 2 || view.TimerSeconds != 15 {
		t.Fatalf("settings not honored: %+v", view)
	}
}

func TestCreateSessionRejectsBlankHost(t *testing.T) {
	srv, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions",
		createSessionRequest{HostName: "   "}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestJoinAndLobbyRoster(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createSessionForTest(t, srv, "host")

	var joined joinResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+view.Code+"/join",
		joinRequest{Username: "alice"}, &joined)
	if status != http.StatusOK {
		t.Fatalf("join: status %d", status)
	}
	if !joined.Player.Guest {
		t.Fatal("joining player should be a guest")
	}

	var lobby lobbyResponse
	if status := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+view.Code, nil, &lobby); status != http.StatusOK {
		t.Fatalf("lobby: status %d", status)
	}
	if len(lobby.Players) != 2 || lobby.Players[0] != "host" || lobby.Players[1] != "alice" {
		t.Fatalf("unexpected roster %v", lobby.Players)
	}
}

func TestJoinUnknownCodeIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/ZZZZZZ/join",
		joinRequest{Username: "alice"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestStartRequiresHost(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createSessionForTest(t, srv, "host")

	var joined joinResponse
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+view.Code+"/join",
		joinRequest{Username: "alice"}, &joined)

	url := fmt.Sprintf("%s/v1/sessions/%d/start", srv.URL, view.ID)
	if status := doJSON(t, http.MethodPost, url, startRequest{PlayerID: joined.Player.ID}, nil); status != http.StatusForbidden {
		t.Fatalf("non-host start: expected 403, got %d", status)
	}
	if status := doJSON(t, http.MethodPost, url, startRequest{PlayerID: view.HostID}, nil); status != http.StatusOK {
		t.Fatalf("host start: expected 200, got %d", status)
	}

	// Session is no longer joinable once play begins.
	status := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+view.Code+"/join",
		joinRequest{Username: "bob"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("late join: expected 409, got %d", status)
	}
}

func TestResultsConvergence(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createSessionForTest(t, srv, "host")

	var joined joinResponse
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+view.Code+"/join",
		joinRequest{Username: "alice"}, &joined)
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%d/start", srv.URL, view.ID),
		startRequest{PlayerID: view.HostID}, nil)

	answerURL := fmt.Sprintf("%s/v1/sessions/%d/answers", srv.URL, view.ID)
	status := doJSON(t, http.MethodPost, answerURL, answerRequest{
		PlayerID: view.HostID, QuestionID: 1, Selected: "A",
		Correct: true, TimeTaken: 1200, Points: 10, Score: 10,
	}, nil)
	if status != http.StatusNoContent {
		t.Fatalf("record answer: expected 204, got %d", status)
	}

	finish := func(playerID int64, score, correct, wrong int) {
		t.Helper()
		url := fmt.Sprintf("%s/v1/sessions/%d/players/%d/finish", srv.URL, view.ID, playerID)
		if status := doJSON(t, http.MethodPost, url, finishRequest{
			FinalScore: score, Correct: correct, Wrong: wrong,
		}, nil); status != http.StatusNoContent {
			t.Fatalf("finish player %d: status %d", playerID, status)
		}
	}

	resultsURL := fmt.Sprintf("%s/v1/sessions/%d/results", srv.URL, view.ID)
	var res resultsResponse

	finish(view.HostID, 10, 1, 1)
	if status := doJSON(t, http.MethodGet, resultsURL, nil, &res); status != http.StatusOK {
		t.Fatalf("results: status %d", status)
	}
	if res.Finished {
		t.Fatal("results should not be ready while a player is still playing")
	}

	finish(joined.Player.ID, -5, 0, 1)
	if status := doJSON(t, http.MethodGet, resultsURL, nil, &res); status != http.StatusOK {
		t.Fatalf("results: status %d", status)
	}
	if !res.Finished {
		t.Fatal("results should be ready once all players finished")
	}
	if len(res.Board) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Board))
	}
	if res.Board[0].Username != "host" || res.Board[0].Rank != 1 {
		t.Fatalf("unexpected winner: %+v", res.Board[0])
	}

	// The first converged poll closed the session.
	var lobby lobbyResponse
	doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+view.Code, nil, &lobby)
	if lobby.Session.Status != string(domain.StatusClosed) {
		t.Fatalf("expected CLOSED, got %s", lobby.Session.Status)
	}

	// A late answer against the closed session is rejected and the board
	// stays exactly as fetched.
	status = doJSON(t, http.MethodPost, answerURL, answerRequest{
		PlayerID: view.HostID, QuestionID: 2, Selected: "B",
		Correct: true, TimeTaken: 800, Points: 10, Score: 9999,
	}, nil)
	if status != http.StatusConflict {
		t.Fatalf("late answer: expected 409, got %d", status)
	}
	var after resultsResponse
	if status := doJSON(t, http.MethodGet, resultsURL, nil, &after); status != http.StatusOK {
		t.Fatalf("results after late write: status %d", status)
	}
	if after.Board[0].Score != res.Board[0].Score || after.Board[1].Score != res.Board[1].Score {
		t.Fatalf("board changed after close: %+v vs %+v", after.Board, res.Board)
	}
}

func TestQuestionCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	var created domain.Question
	status := doJSON(t, http.MethodPost, srv.URL+"/v1/questions", questionPayload{
		Prompt:  "Largest planet?",
		OptionA: "Mars", OptionB: "Jupiter", OptionC: "Venus", OptionD: "Saturn",
		Correct: "B", Category: "science", Difficulty: "easy",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create question: status %d", status)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned question id")
	}

	url := fmt.Sprintf("%s/v1/questions/%d", srv.URL, created.ID)
	status = doJSON(t, http.MethodPut, url, questionPayload{
		Prompt:  "Largest planet in the solar system?",
		OptionA: "Mars", OptionB: "Jupiter", OptionC: "Venus", OptionD: "Saturn",
		Correct: "B",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("update question: status %d", status)
	}

	if status := doJSON(t, http.MethodDelete, url, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete question: status %d", status)
	}
	if status := doJSON(t, http.MethodDelete, url, nil, nil); status != http.StatusNotFound {
		t.Fatalf("re-delete question: expected 404, got %d", status)
	}
}

func TestCreateQuestionRejectsBadOption(t *testing.T) {
	srv, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/v1/questions", questionPayload{
		Prompt:  "Broken?",
		OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
		Correct: "Z",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestGlobalLeaderboardExcludesGuests(t *testing.T) {
	srv, gateway := newTestServer(t)

	reg, _ := gateway.CreatePlayer(context.Background(), "veteran", false)
	reg.TotalPoints = 120
	if err := gateway.UpdatePlayerStats(context.Background(), reg); err != nil {
		t.Fatalf("update stats: %v", err)
	}
	guest, _ := gateway.CreatePlayer(context.Background(), "drifter", true)
	guest.TotalPoints = 999
	if err := gateway.UpdatePlayerStats(context.Background(), guest); err != nil {
		t.Fatalf("update guest stats: %v", err)
	}

	var entries []leaderboardEntry
	if status := doJSON(t, http.MethodGet, srv.URL+"/v1/leaderboard", nil, &entries); status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	if len(entries) != 1 || entries[0].Username != "veteran" {
		t.Fatalf("unexpected leaderboard %v", entries)
	}
}
