package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
	"github.com/mind-engage/mindengage-kkm/internal/quiz"
	"github.com/mind-engage/mindengage-kkm/internal/rbac"
	"github.com/mind-engage/mindengage-kkm/internal/scoring"
	"github.com/mind-engage/mindengage-kkm/internal/storage"
)

const maxImageBytes = 5 << 20

var policy = rbac.NewChecker(nil)

type questionReq struct {
	QuizNumber    int      `json:"quizNumber" validate:"required,min=1,max=5"`
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	ImageKey      string   `json:"imageKey"`
}

func (q questionReq) input() quiz.Input {
	return quiz.Input{
		QuizNumber: q.QuizNumber, Text: q.Question, Options: q.Options,
		CorrectAnswer: q.CorrectAnswer, ImageKey: q.ImageKey,
	}
}

// answersReq maps question id to the chosen option text.
type answersReq struct {
	Answers map[int64]string `json:"answers" validate:"required"`
}

func questionIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid question id")
	}
	return id, nil
}

// visible strips answer keys for anyone who may not edit questions.
func visible(r *http.Request, qs ...quiz.Question) []quiz.Question {
	if policy.Has(rbac.RoleFromContext(r.Context()), "question:update") {
		return qs
	}
	out := make([]quiz.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Public()
	}
	return out
}

// ListQuestionsHandler lists one slot (?quizNumber=) or every slot.
func ListQuestionsHandler(qs *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if raw := r.URL.Query().Get("quizNumber"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				respondError(w, r, apperr.Invalid("invalid quiz number %q", raw))
				return
			}
			n = v
		}
		out, err := qs.List(r.Context(), n)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, visible(r, out...))
	}
}

func GetQuestionHandler(qs *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := questionIDParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		q, err := qs.Get(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, visible(r, q)[0])
	}
}

func CreateQuestionHandler(qs *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := qs.Create(r.Context(), req.input())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

func UpdateQuestionHandler(qs *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := questionIDParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		var req questionReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		q, err := qs.Update(r.Context(), id, req.input())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// DeleteQuestionHandler drops the question and then its image blob. A blob
// that fails to delete is only logged.
func DeleteQuestionHandler(qs *quiz.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := questionIDParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		key, err := qs.Delete(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		dropBlob(r, bs, key)
		respondMessage(w, http.StatusOK, "question deleted")
	}
}

// UploadQuestionImageHandler stores multipart file= and points the question
// at it, replacing any previous image.
func UploadQuestionImageHandler(qs *quiz.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := questionIDParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		key, err := bs.Put(r.Context(), storage.NewKey("questions", hdr.Filename), f)
		if err != nil {
			respondError(w, r, apperr.Storage(err, "store image"))
			return
		}
		old, err := qs.SetImage(r.Context(), id, key)
		if err != nil {
			dropBlob(r, bs, key)
			respondError(w, r, err)
			return
		}
		dropBlob(r, bs, old)
		respondJSON(w, http.StatusOK, map[string]string{"imageKey": key})
	}
}

func dropBlob(r *http.Request, bs storage.BlobStore, key string) {
	if key == "" {
		return
	}
	if err := bs.Delete(r.Context(), key); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("blob delete failed")
	}
}

// SubmitAnswersHandler grades the caller's answer sheet and records the score:
// slots 1..4 as a quiz score, slot 5 as the final evaluation. The reported
// kkm is the threshold the credit decision used.
func SubmitAnswersHandler(qs *quiz.Store, svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := quizNumberParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		var req answersReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		nis := identifier(r)
		res, err := qs.Grade(r.Context(), n, req.Answers)
		if err != nil {
			respondError(w, r, err)
			return
		}

		out := map[string]any{
			"quizNumber": n,
			"correct":    res.Correct,
			"total":      res.Total,
			"score":      res.Score,
			"missed":     res.Missed,
		}
		if n == kkm.EvaluationSlot {
			ev, err := svc.SubmitEvaluationScore(r.Context(), nis, res.Score)
			if err != nil {
				respondError(w, r, err)
				return
			}
			out["best"], out["kkm"] = ev.Score, ev.KKM
		} else {
			sub := scoring.Scores{}
			*sub.Quiz(n) = &res.Score
			if err := svc.SubmitQuizScores(r.Context(), nis, sub); err != nil {
				respondError(w, r, err)
				return
			}
			best, err := svc.GetBest(r.Context(), nis)
			if err != nil {
				respondError(w, r, err)
				return
			}
			out["best"], out["kkm"] = **best.Quiz(n), svc.QuizThreshold(r.Context(), n)
		}
		zerolog.Ctx(r.Context()).Info().Str("nis", nis).Int("quiz_number", n).Int("score", res.Score).Msg("answers graded")
		respondJSON(w, http.StatusOK, out)
	}
}
