// Package grading turns a student's multiple-choice answers into a 0..100
// quiz score.
package grading

import (
	"context"
	"errors"
	"math"
	"unicode"
)

var ErrNoQuestions = errors.New("quiz has no questions")

// Q is a minimal view of a question needed for grading.
type Q struct {
	ID            int64
	CorrectAnswer string
}

// Result is the outcome of grading one quiz sheet.
type Result struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Score   int     `json:"score"`
	Missed  []int64 `json:"missed,omitempty"` // question ids answered wrong or left blank
}

// Strategy decides whether one response matches a question's key.
type Strategy interface {
	Match(ctx context.Context, q Q, response string) bool
}

type Grader struct {
	strategy Strategy
}

type Option func(*Grader)

// WithStrictMatch compares answers byte for byte instead of case- and
// punctuation-insensitively.
func WithStrictMatch() Option { return func(g *Grader) { g.strategy = exactStrategy{} } }

func NewGrader(opts ...Option) *Grader {
	g := &Grader{strategy: normalizedStrategy{}}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Grade scores answers (question id -> chosen option) against every question
// of the quiz. Unanswered questions count as wrong; answers to ids outside
// the quiz are ignored. The score is the rounded percentage correct.
func (g *Grader) Grade(ctx context.Context, qs []Q, answers map[int64]string) (Result, error) {
	if len(qs) == 0 {
		return Result{}, ErrNoQuestions
	}
	res := Result{Total: len(qs)}
	for _, q := range qs {
		resp, ok := answers[q.ID]
		if ok && g.strategy.Match(ctx, q, resp) {
			res.Correct++
			continue
		}
		res.Missed = append(res.Missed, q.ID)
	}
	res.Score = int(math.Round(100 * float64(res.Correct) / float64(res.Total)))
	return res, nil
}

type exactStrategy struct{}

func (exactStrategy) Match(_ context.Context, q Q, response string) bool {
	return response == q.CorrectAnswer
}

type normalizedStrategy struct{}

func (normalizedStrategy) Match(_ context.Context, q Q, response string) bool {
	return normalize(response) == normalize(q.CorrectAnswer)
}

// normalize casefolds, drops punctuation and collapses runs of whitespace.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
