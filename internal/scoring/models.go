package scoring

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

type Status string

const (
	StatusNotDone Status = "NOT_DONE"
	StatusDone    Status = "DONE"
)

const (
	QuizSlots       = 4
	ProgressPerSlot = 20
	MaxProgress     = 100

	// ReconcilerDefaultKKM is what quiz reconciliation assumes for a slot
	// with no stored threshold. It differs from kkm.DefaultKKM (75), which
	// every other reader uses; both are kept as-is.
	ReconcilerDefaultKKM = 70
)

// Scores is a ledger row or a sparse submission. A nil field is absent.
type Scores struct {
	Quiz1     *int `json:"kuis1"`
	Quiz2     *int `json:"kuis2"`
	Quiz3     *int `json:"kuis3"`
	Quiz4     *int `json:"kuis4"`
	Practice1 *int `json:"latihan1"`
	Practice2 *int `json:"latihan2"`
	Practice3 *int `json:"latihan3"`
	Practice4 *int `json:"latihan4"`
	Eval      *int `json:"evaluasi_akhir"`
}

// Quiz returns a pointer to the field for quiz slot 1..4, nil otherwise.
func (s *Scores) Quiz(slot int) **int {
	switch slot {
	case 1:
		return &s.Quiz1
	case 2:
		return &s.Quiz2
	case 3:
		return &s.Quiz3
	case 4:
		return &s.Quiz4
	}
	return nil
}

// Practice returns a pointer to the field for practice exercise 1..4.
func (s *Scores) Practice(n int) **int {
	switch n {
	case 1:
		return &s.Practice1
	case 2:
		return &s.Practice2
	case 3:
		return &s.Practice3
	case 4:
		return &s.Practice4
	}
	return nil
}

// Validate checks the ranges the reconciler relies on. Practice scores are
// stored as given.
func (s Scores) Validate() error {
	for slot := 1; slot <= QuizSlots; slot++ {
		if v := *s.Quiz(slot); v != nil && (*v < 0 || *v > 100) {
			return apperr.Invalid("kuis%d score must be within 0-100, got %d", slot, *v)
		}
	}
	if s.Eval != nil && (*s.Eval < 0 || *s.Eval > 100) {
		return apperr.Invalid("evaluasi_akhir score must be within 0-100, got %d", *s.Eval)
	}
	return nil
}

// Thresholds is the per-slot KKM attached to score views.
type Thresholds struct {
	Quiz1 int `json:"kuis1"`
	Quiz2 int `json:"kuis2"`
	Quiz3 int `json:"kuis3"`
	Quiz4 int `json:"kuis4"`
	Eval  int `json:"evaluasi_akhir"`
}

func thresholdsFrom(stored map[int]int) Thresholds {
	get := func(n int) int {
		if v, ok := stored[n]; ok {
			return v
		}
		return kkm.DefaultKKM
	}
	return Thresholds{Quiz1: get(1), Quiz2: get(2), Quiz3: get(3), Quiz4: get(4), Eval: get(kkm.EvaluationSlot)}
}

// BestScores is one student's ledger with current thresholds.
type BestScores struct {
	NIS string `json:"nis"`
	Scores
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	KKM       Thresholds `json:"kkm"`
}

// RosterRow is a roster student left-joined with the ledger; absent scores
// read as 0.
type RosterRow struct {
	NIS      string         `json:"nis"`
	FullName string         `json:"full_name"`
	Class    string         `json:"class"`
	Status   Status         `json:"status"`
	Progress int            `json:"progress"`
	Quiz     [QuizSlots]int `json:"-"`
	Practice [QuizSlots]int `json:"-"`
	Eval     int            `json:"-"`
}

// MarshalJSON flattens the score arrays into kuisN/latihanN keys.
func (r RosterRow) MarshalJSON() ([]byte, error) {
	type plain RosterRow
	return json.Marshal(struct {
		plain
		Quiz1     int `json:"kuis1"`
		Quiz2     int `json:"kuis2"`
		Quiz3     int `json:"kuis3"`
		Quiz4     int `json:"kuis4"`
		Practice1 int `json:"latihan1"`
		Practice2 int `json:"latihan2"`
		Practice3 int `json:"latihan3"`
		Practice4 int `json:"latihan4"`
		Eval      int `json:"evaluasi_akhir"`
	}{
		plain(r),
		r.Quiz[0], r.Quiz[1], r.Quiz[2], r.Quiz[3],
		r.Practice[0], r.Practice[1], r.Practice[2], r.Practice[3],
		r.Eval,
	})
}

// Attempt is one raw quiz submission; KKM is the slot's threshold at read time.
type Attempt struct {
	ID          int64     `json:"id"`
	QuizNumber  int       `json:"quizNumber"`
	Score       int       `json:"score"`
	AttemptTime time.Time `json:"attemptTime"`
	KKM         int       `json:"kkm"`
}

type EvaluationResult struct {
	Score int `json:"score"`
	KKM   int `json:"kkm"`
}

type SlotStat struct {
	Student string `json:"student"`
	Score   int    `json:"score"`
}

type SlotAverages struct {
	Quiz1 int `json:"kuis1"`
	Quiz2 int `json:"kuis2"`
	Quiz3 int `json:"kuis3"`
	Quiz4 int `json:"kuis4"`
	Eval  int `json:"evaluasi"`
}

type SlotExtremes struct {
	Quiz1 SlotStat `json:"kuis1"`
	Quiz2 SlotStat `json:"kuis2"`
	Quiz3 SlotStat `json:"kuis3"`
	Quiz4 SlotStat `json:"kuis4"`
	Eval  SlotStat `json:"evaluasi"`
}

type Dashboard struct {
	TotalStudents     int          `json:"totalStudents"`
	CompletedStudents int          `json:"completedStudents"`
	AverageScores     SlotAverages `json:"averageScores"`
	HighestScores     SlotExtremes `json:"highestScores"`
	LowestScores      SlotExtremes `json:"lowestScores"`
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// nullable turns an absent score into SQL NULL.
func nullable(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
