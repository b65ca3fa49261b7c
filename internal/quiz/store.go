// Package quiz is the question bank: four-option questions per quiz slot.
package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/grading"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

const OptionCount = 4

type Question struct {
	ID            int64     `json:"id"`
	QuizNumber    int       `json:"quiz_number"`
	Text          string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	ImageKey      string    `json:"image_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public hides the answer key.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	return q
}

type Input struct {
	QuizNumber    int
	Text          string
	Options       []string
	CorrectAnswer string
	ImageKey      string
}

func (in Input) Validate() error {
	if !kkm.ValidSlot(in.QuizNumber) {
		return apperr.Invalid("invalid quiz number %d", in.QuizNumber)
	}
	if strings.TrimSpace(in.Text) == "" {
		return apperr.Invalid("question text is required")
	}
	if len(in.Options) != OptionCount {
		return apperr.Invalid("a question needs exactly %d options, got %d", OptionCount, len(in.Options))
	}
	for _, o := range in.Options {
		if o == in.CorrectAnswer {
			return nil
		}
	}
	return apperr.Invalid("correct answer must be one of the options")
}

type Store struct {
	db     *sql.DB
	grader *grading.Grader
}

func NewStore(dbh *sql.DB, g *grading.Grader) *Store {
	if g == nil {
		g = grading.NewGrader()
	}
	return &Store{db: dbh, grader: g}
}

func (s *Store) Create(ctx context.Context, in Input) (Question, error) {
	if err := in.Validate(); err != nil {
		return Question{}, err
	}
	opts, err := json.Marshal(in.Options)
	if err != nil {
		return Question{}, apperr.Invalid("bad options: %v", err)
	}
	now := time.Now()
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO questions (quiz_number, question_text, options_json, correct_answer, image_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		in.QuizNumber, in.Text, string(opts), in.CorrectAnswer, nullString(in.ImageKey), now.Unix()).Scan(&id)
	if err != nil {
		return Question{}, apperr.Storage(err, "create question")
	}
	return Question{
		ID: id, QuizNumber: in.QuizNumber, Text: in.Text, Options: in.Options,
		CorrectAnswer: in.CorrectAnswer, ImageKey: in.ImageKey, CreatedAt: time.Unix(now.Unix(), 0).UTC(),
	}, nil
}

const selectQuestion = `SELECT id, quiz_number, question_text, options_json, correct_answer, image_key, created_at FROM questions`

func (s *Store) Get(ctx context.Context, id int64) (Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, selectQuestion+` WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, apperr.ErrQuestionNotFound
	}
	if err != nil {
		return Question{}, apperr.Storage(err, "get question")
	}
	return q, nil
}

// List returns questions in id order; quizNumber 0 lists every slot.
func (s *Store) List(ctx context.Context, quizNumber int) ([]Question, error) {
	query, args := selectQuestion, []any{}
	if quizNumber != 0 {
		if !kkm.ValidSlot(quizNumber) {
			return nil, apperr.Invalid("invalid quiz number %d", quizNumber)
		}
		query += ` WHERE quiz_number=$1`
		args = append(args, quizNumber)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, apperr.Storage(err, "list questions")
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan question")
		}
		out = append(out, q)
	}
	return out, apperr.Storage(rows.Err(), "list questions")
}

// Update replaces every field. An empty ImageKey keeps the stored image.
func (s *Store) Update(ctx context.Context, id int64, in Input) (Question, error) {
	if err := in.Validate(); err != nil {
		return Question{}, err
	}
	opts, err := json.Marshal(in.Options)
	if err != nil {
		return Question{}, apperr.Invalid("bad options: %v", err)
	}
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `
		UPDATE questions
		SET quiz_number=$1, question_text=$2, options_json=$3, correct_answer=$4, image_key=COALESCE($5, image_key)
		WHERE id=$6
		RETURNING id, quiz_number, question_text, options_json, correct_answer, image_key, created_at`,
		in.QuizNumber, in.Text, string(opts), in.CorrectAnswer, nullString(in.ImageKey), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, apperr.ErrQuestionNotFound
	}
	if err != nil {
		return Question{}, apperr.Storage(err, "update question")
	}
	return q, nil
}

// Delete removes a question and returns its image key, if any, so the caller
// can drop the blob.
func (s *Store) Delete(ctx context.Context, id int64) (string, error) {
	var key sql.NullString
	err := s.db.QueryRowContext(ctx, `DELETE FROM questions WHERE id=$1 RETURNING image_key`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrQuestionNotFound
	}
	if err != nil {
		return "", apperr.Storage(err, "delete question")
	}
	return key.String, nil
}

// SetImage points a question at a new blob and returns the key it replaced.
func (s *Store) SetImage(ctx context.Context, id int64, key string) (string, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE questions SET image_key=$1 WHERE id=$2`, key, id); err != nil {
		return "", apperr.Storage(err, "set question image")
	}
	return q.ImageKey, nil
}

// Grade scores a set of answers against every question in the quiz slot.
func (s *Store) Grade(ctx context.Context, quizNumber int, answers map[int64]string) (grading.Result, error) {
	qs, err := s.List(ctx, quizNumber)
	if err != nil {
		return grading.Result{}, err
	}
	keys := make([]grading.Q, 0, len(qs))
	for _, q := range qs {
		keys = append(keys, grading.Q{ID: q.ID, CorrectAnswer: q.CorrectAnswer})
	}
	res, err := s.grader.Grade(ctx, keys, answers)
	if errors.Is(err, grading.ErrNoQuestions) {
		return grading.Result{}, apperr.Invalid("quiz %d has no questions", quizNumber)
	}
	return res, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var opts string
	var img sql.NullString
	var created int64
	if err := r.Scan(&q.ID, &q.QuizNumber, &q.Text, &opts, &q.CorrectAnswer, &img, &created); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	q.ImageKey = img.String
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
