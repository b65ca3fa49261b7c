package grading

import (
	"context"
	"errors"
	"testing"
)

func TestGrade(t *testing.T) {
	qs := []Q{{ID: 1, CorrectAnswer: "Jakarta"}, {ID: 2, CorrectAnswer: "4"}, {ID: 3, CorrectAnswer: "H2O"}}
	ctx := context.Background()

	cases := []struct {
		name    string
		opts    []Option
		answers map[int64]string
		correct int
		score   int
	}{
		{"all right", nil, map[int64]string{1: "Jakarta", 2: "4", 3: "H2O"}, 3, 100},
		{"normalized", nil, map[int64]string{1: " jakarta. ", 2: "4", 3: "h2o"}, 3, 100},
		{"strict", []Option{WithStrictMatch()}, map[int64]string{1: "jakarta", 2: "4", 3: "H2O"}, 2, 67},
		{"blank counts wrong", nil, map[int64]string{2: "4"}, 1, 33},
		{"unknown ids ignored", nil, map[int64]string{99: "Jakarta"}, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := NewGrader(c.opts...).Grade(ctx, qs, c.answers)
			if err != nil {
				t.Fatalf("Grade: %v", err)
			}
			if res.Correct != c.correct || res.Score != c.score || res.Total != 3 {
				t.Fatalf("got %+v want correct=%d score=%d", res, c.correct, c.score)
			}
			if len(res.Missed) != 3-c.correct {
				t.Fatalf("missed = %v", res.Missed)
			}
		})
	}
}

func TestGrade_NoQuestions(t *testing.T) {
	if _, err := NewGrader().Grade(context.Background(), nil, nil); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v", err)
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  Hello,   World! "); got != "hello world" {
		t.Fatalf("normalize = %q", got)
	}
}
