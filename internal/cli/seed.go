package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"retroquiz-service/internal/config"
	pgstore "retroquiz-service/internal/infra/postgres"
	"retroquiz-service/internal/quiz"
)

// NewSeedCmd loads the built-in question bank into the database. Seeding is
// skipped when the questions table already has rows.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with the built-in question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.NewQuestionStore(pool)
	existing, err := store.AllQuestions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Infof("questions table already has %d rows, skipping seed", len(existing))
		return nil
	}

	for _, q := range quiz.Bank() {
		q := q
		if _, err := store.CreateQuestion(ctx, &q); err != nil {
			return err
		}
	}
	log.Infof("seeded %d questions", len(quiz.Bank()))
	return nil
}
