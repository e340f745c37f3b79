package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"retroquiz-service/internal/code"
	"retroquiz-service/internal/config"
	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/infra/memory"
	pgstore "retroquiz-service/internal/infra/postgres"
	"retroquiz-service/internal/poller"
	"retroquiz-service/internal/quiz"
	"retroquiz-service/internal/scoring"
	"retroquiz-service/internal/session"
)

// gameBackend bundles everything the terminal client needs to reach the
// shared store.
type gameBackend struct {
	sessions     *session.Service
	questions    quiz.QuestionSource
	pollInterval time.Duration
	close        func()
}

// newGameBackend connects to the configured store. Without a database the
// client degrades to a process-local store: solo play against the built-in
// bank still works, but other processes cannot join.
func newGameBackend(ctx context.Context, configPath string, log *logrus.Logger) (*gameBackend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	backend := &gameBackend{
		pollInterval: config.Duration(cfg.Game.PollInterval, domain.DefaultPollInterval),
		close:        func() {},
	}

	if cfg.Postgres.URL == "" {
		log.Warn("no postgres url configured, playing against a local store")
		gateway := memory.NewGateway()
		backend.sessions = session.NewService(gateway, code.New(), log)
		backend.questions = memory.NewQuestionBank(quiz.Bank())
		return backend, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return nil, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	backend.sessions = session.NewService(pgstore.NewGateway(pool), code.New(), log)
	backend.questions = memory.NewQuestionCache(pgstore.NewQuestionStore(pool), questionTTL)
	backend.close = pool.Close
	return backend, nil
}

// terminalAnswerer prompts on stdout and reads picks from stdin. A single
// reader goroutine owns stdin so prompts that time out never steal the input
// typed for a later question.
type terminalAnswerer struct {
	lines <-chan string
	out   io.Writer
}

func newTerminalAnswerer() *terminalAnswerer {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &terminalAnswerer{lines: lines, out: os.Stdout}
}

// ReadLine blocks for one line of input or context cancellation.
func (a *terminalAnswerer) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-a.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *terminalAnswerer) Ask(ctx context.Context, number, total int, q domain.Question) (domain.OptionTag, error) {
	fmt.Fprintf(a.out, "\nQuestion %d of %d: %s\n", number, total, q.Prompt)
	fmt.Fprintf(a.out, "  A) %s\n  B) %s\n  C) %s\n  D) %s\n",
		q.OptionA, q.OptionB, q.OptionC, q.OptionD)

	for {
		fmt.Fprint(a.out, "Your answer [A-D]: ")
		line, err := a.ReadLine(ctx)
		if err != nil {
			return 0, err
		}
		line = strings.ToUpper(strings.TrimSpace(line))
		if len(line) == 1 {
			tag := domain.OptionTag(line[0])
			if tag.Valid() {
				return tag, nil
			}
		}
		fmt.Fprintln(a.out, "Please answer A, B, C, or D.")
	}
}

// terminalObserver prints the outcome of each resolved question.
type terminalObserver struct {
	out io.Writer
}

func (o terminalObserver) QuestionResolved(q domain.Question, out scoring.Outcome) {
	switch {
	case !out.Answered:
		fmt.Fprintf(o.out, "Time's up! The answer was %c) %s. %+d points (total %d)\n",
			q.Correct, q.Option(q.Correct), out.Points, out.Total)
	case out.Correct:
		fmt.Fprintf(o.out, "Correct! %+d points (total %d)\n", out.Points, out.Total)
	default:
		fmt.Fprintf(o.out, "Wrong. The answer was %c) %s. %+d points (total %d)\n",
			q.Correct, q.Option(q.Correct), out.Points, out.Total)
	}
}

// lobbyPrinter narrates lobby and convergence events on the terminal.
type lobbyPrinter struct {
	out io.Writer
}

func (p lobbyPrinter) RosterChanged(names []string) {
	fmt.Fprintf(p.out, "Players in lobby: %s\n", strings.Join(names, ", "))
}

func (p lobbyPrinter) SessionStarted() {
	fmt.Fprintln(p.out, "The game is starting!")
}

func (p lobbyPrinter) ResultsReady([]domain.RankedEntry) {
	fmt.Fprintln(p.out, "All players have finished.")
}

// playGame runs the question sequence for one participant, waits for the
// other participants to converge, and prints the final board.
func playGame(ctx context.Context, backend *gameBackend, poll *poller.Poller,
	answerer *terminalAnswerer, sess *domain.Session, player *domain.Player, log *logrus.Logger) error {

	runner := quiz.NewRunner(backend.sessions, backend.questions, answerer, log)
	runner.SetObserver(terminalObserver{out: os.Stdout})

	result, err := runner.Play(ctx, sess, player)
	if err != nil {
		return err
	}
	fmt.Printf("\nYou finished with %d points (%d correct, %d wrong, %d unanswered).\n",
		result.FinalScore, result.Correct, result.Wrong, result.NoAnswer)
	fmt.Println("Waiting for the other players...")

	board, err := poll.AwaitResults(ctx)
	if err != nil {
		return err
	}
	printBoard(os.Stdout, board, player.ID)
	return nil
}

func printBoard(out io.Writer, board []domain.RankedEntry, selfID int64) {
	fmt.Fprintln(out, "\nFinal standings:")
	for _, entry := range board {
		marker := "  "
		if entry.PlayerID == selfID {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%d. %-20s %d pts\n", marker, entry.Rank, entry.Username, entry.Score)
	}
}
