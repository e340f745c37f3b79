package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"retroquiz-service/internal/code"
	"retroquiz-service/internal/config"
	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/infra/memory"
	pgstore "retroquiz-service/internal/infra/postgres"
	rediscache "retroquiz-service/internal/infra/redis"
	"retroquiz-service/internal/quiz"
	"retroquiz-service/internal/session"
	transport "retroquiz-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the API server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// cachedQuestionRepo serves random samples from a cache layer while the rest
// of the question management surface goes straight to the store.
type cachedQuestionRepo struct {
	*pgstore.QuestionStore
	cache quiz.QuestionSource
}

func (r cachedQuestionRepo) RandomQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	return r.cache.RandomQuestions(ctx, count)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var gateway session.Gateway
	var leaderboard transport.LeaderboardSource
	var questions transport.QuestionRepository

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	if pool != nil {
		pg := pgstore.NewGateway(pool)
		gateway, leaderboard = pg, pg

		store := pgstore.NewQuestionStore(pool)
		var cache quiz.QuestionSource
		if redisClient != nil {
			cache = rediscache.NewQuestionCache(redisClient, store, questionTTL)
		} else {
			cache = memory.NewQuestionCache(store, questionTTL)
		}
		questions = cachedQuestionRepo{QuestionStore: store, cache: cache}
	} else {
		mem := memory.NewGateway()
		gateway, leaderboard = mem, mem
		questions = memory.NewQuestionBank(quiz.Bank())
	}

	sessions := session.NewService(gateway, code.New(), log)
	handler := transport.NewHandler(sessions, questions, leaderboard, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
