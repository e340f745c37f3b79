package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"retroquiz-service/internal/code"
	"retroquiz-service/internal/domain"
	pgstore "retroquiz-service/internal/infra/postgres"
	pgmigrations "retroquiz-service/internal/infra/postgres/migrations"
	infraredis "retroquiz-service/internal/infra/redis"
	"retroquiz-service/internal/ranking"
	"retroquiz-service/internal/scoring"
	"retroquiz-service/internal/session"
)

func TestTwoPlayerGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	gateway := pgstore.NewGateway(pool)
	questions := infraredis.NewQuestionCache(redisClient, pgstore.NewQuestionStore(pool), 5*time.Minute)
	sessions := session.NewService(gateway, code.New(), nil)

	// Host creates and a guest joins via the shared store.
	sess, err := sessions.Create(ctx, "alice", 3, 10*time.Second)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !session.ValidCode(sess.Code) {
		t.Fatalf("invalid session code %q", sess.Code)
	}
	_, alice, err := sessions.Join(ctx, sess.Code, "alice")
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	_, bob, err := sessions.Join(ctx, sess.Code, "bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !bob.Guest {
		t.Fatal("joining player should be a guest")
	}

	names, err := sessions.MemberNames(ctx, sess.ID)
	if err != nil {
		t.Fatalf("member names: %v", err)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Fatalf("unexpected roster %v", names)
	}

	if err := sessions.Start(ctx, sess.ID, alice.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := sessions.Join(ctx, sess.Code, "carol"); err != domain.ErrSessionNotJoinable {
		t.Fatalf("late join: expected ErrSessionNotJoinable, got %v", err)
	}

	qs, err := questions.RandomQuestions(ctx, sess.QuestionCount)
	if err != nil {
		t.Fatalf("random questions: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}

	// Alice answers every question correctly, Bob times out every time.
	playAllCorrect(t, ctx, sessions, sess, alice, qs)

	done, err := sessions.AllFinished(ctx, sess.ID)
	if err != nil {
		t.Fatalf("all finished: %v", err)
	}
	if done {
		t.Fatal("session should not converge while bob is playing")
	}

	playAllTimeouts(t, ctx, sessions, sess, bob, qs)

	done, err = sessions.AllFinished(ctx, sess.ID)
	if err != nil {
		t.Fatalf("all finished: %v", err)
	}
	if !done {
		t.Fatal("session should converge once both players finished")
	}
	if err := sessions.Close(ctx, sess.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	standings, err := sessions.Standings(ctx, sess.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	board := ranking.Rank(standings)
	if len(board) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board))
	}
	if board[0].Username != "alice" || board[0].Rank != 1 || board[0].Score != 30 {
		t.Fatalf("unexpected winner %+v", board[0])
	}
	if board[1].Username != "bob" || board[1].Score != -45 {
		t.Fatalf("unexpected runner-up %+v", board[1])
	}

	status, err := sessions.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != domain.StatusClosed {
		t.Fatalf("expected CLOSED, got %s", status)
	}

	// Lifetime stats folded in; the guest stays off the leaderboard.
	alice, err = gateway.PlayerByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("reload alice: %v", err)
	}
	if alice.TotalPoints != 30 || alice.GamesPlayed != 1 || alice.CorrectAnswers != 3 {
		t.Fatalf("unexpected lifetime stats %+v", alice)
	}
	if alice.LastPlayed.IsZero() {
		t.Fatal("expected last played timestamp after completing a game")
	}
	top, err := gateway.TopPlayers(ctx, 10)
	if err != nil {
		t.Fatalf("top players: %v", err)
	}
	if len(top) != 1 || top[0].Username != "alice" {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
}

func playAllCorrect(t *testing.T, ctx context.Context, sessions *session.Service, sess *domain.Session, p *domain.Player, qs []domain.Question) {
	t.Helper()
	tracker := scoring.NewTracker()
	for _, q := range qs {
		tracker.Open(q.ID)
		out, ok := tracker.Answer(q.Correct, true, time.Second)
		if !ok {
			t.Fatal("answer latch lost without contention")
		}
		recordOutcome(t, ctx, sessions, sess, p, q, out)
	}
	correct, wrong, noAnswer := tracker.Counts()
	if err := sessions.Complete(ctx, sess.ID, p.ID, tracker.Total(), correct, wrong, noAnswer); err != nil {
		t.Fatalf("complete %s: %v", p.Username, err)
	}
}

func playAllTimeouts(t *testing.T, ctx context.Context, sessions *session.Service, sess *domain.Session, p *domain.Player, qs []domain.Question) {
	t.Helper()
	tracker := scoring.NewTracker()
	for _, q := range qs {
		tracker.Open(q.ID)
		out, ok := tracker.Timeout(sess.TimeLimit)
		if !ok {
			t.Fatal("timeout latch lost without contention")
		}
		recordOutcome(t, ctx, sessions, sess, p, q, out)
	}
	correct, wrong, noAnswer := tracker.Counts()
	if err := sessions.Complete(ctx, sess.ID, p.ID, tracker.Total(), correct, wrong, noAnswer); err != nil {
		t.Fatalf("complete %s: %v", p.Username, err)
	}
}

func recordOutcome(t *testing.T, ctx context.Context, sessions *session.Service, sess *domain.Session, p *domain.Player, q domain.Question, out scoring.Outcome) {
	t.Helper()
	if err := sessions.RecordScore(ctx, sess.ID, p.ID, out.Total); err != nil {
		t.Fatalf("record score: %v", err)
	}
	if err := sessions.RecordAnswer(ctx, &domain.Answer{
		SessionID:  sess.ID,
		PlayerID:   p.ID,
		QuestionID: q.ID,
		Selected:   out.Selected,
		Correct:    out.Correct,
		TimeTaken:  out.TimeTaken,
		Points:     out.Points,
	}); err != nil {
		t.Fatalf("record answer: %v", err)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for i := 0; i < 5; i++ {
		prompt := fmt.Sprintf("Integration question %d?", i+1)
		if _, err := db.ExecContext(ctx, `
			INSERT INTO questions (prompt, option_a, option_b, option_c, option_d, correct_option, category, difficulty)
			VALUES (?, 'one', 'two', 'three', 'four', 'A', 'test', 'easy')`, prompt); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
