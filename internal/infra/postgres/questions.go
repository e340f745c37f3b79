package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"retroquiz-service/internal/domain"
)

// QuestionStore is the relational question repository. It serves both as the
// quiz.QuestionSource behind the runner and as the backing store for the
// question management API.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `id, prompt, option_a, option_b, option_c, option_d, correct_option, category, difficulty`

// RandomQuestions draws a fresh random sample per call so every session gets
// its own question order.
func (s *QuestionStore) RandomQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		ORDER BY RANDOM()
		LIMIT $1`, count)
	if err != nil {
		return nil, storeErr("load random questions", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// AllQuestions returns the full bank in id order; it is the loader behind the
// question caches.
func (s *QuestionStore) AllQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		ORDER BY id`)
	if err != nil {
		return nil, storeErr("load questions", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *QuestionStore) QuestionByID(ctx context.Context, id int64) (*domain.Question, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+questionColumns+`
		FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, storeErr("load question", err)
	}
	return &q, nil
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, q *domain.Question) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO questions (prompt, option_a, option_b, option_c, option_d, correct_option, category, difficulty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		q.Prompt, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
		string(q.Correct), q.Category, q.Difficulty).Scan(&id)
	if err != nil {
		return 0, storeErr("create question", err)
	}
	return id, nil
}

func (s *QuestionStore) UpdateQuestion(ctx context.Context, q *domain.Question) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE questions SET prompt = $2, option_a = $3, option_b = $4,
		       option_c = $5, option_d = $6, correct_option = $7,
		       category = $8, difficulty = $9
		WHERE id = $1`,
		q.ID, q.Prompt, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
		string(q.Correct), q.Category, q.Difficulty)
	if err != nil {
		return storeErr("update question", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion removes a question together with its answer history. Both
// deletes run in one transaction: a question must never vanish while history
// rows still point at it.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin delete question", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM player_answers WHERE question_id = $1`, id); err != nil {
		return storeErr("delete answer history", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete question", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit delete question", err)
	}
	return nil
}

func collectQuestions(rows pgx.Rows) ([]domain.Question, error) {
	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, storeErr("scan question", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		correct string
	)
	err := row.Scan(&q.ID, &q.Prompt, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&correct, &q.Category, &q.Difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	if len(correct) > 0 {
		q.Correct = domain.OptionTag(correct[0])
	}
	return q, nil
}
