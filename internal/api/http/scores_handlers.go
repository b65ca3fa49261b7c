package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-kkm/internal/scoring"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type evaluationReq struct {
	Score *int `json:"score" validate:"required,min=0,max=100"`
}

// SubmitScoresHandler folds a sparse score submission into the student's
// ledger and answers with the resulting best scores.
func SubmitScoresHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nis := chi.URLParam(r, "nis")
		var sub scoring.Scores
		if err := decodeJSON(r, &sub); err != nil {
			respondError(w, r, err)
			return
		}
		if err := svc.SubmitQuizScores(r.Context(), nis, sub); err != nil {
			respondError(w, r, err)
			return
		}
		best, err := svc.GetBest(r.Context(), nis)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"message": "scores saved", "scores": best})
	}
}

func SubmitEvaluationHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluationReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		res, err := svc.SubmitEvaluationScore(r.Context(), chi.URLParam(r, "nis"), *req.Score)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "evaluation score saved",
			"score":   res.Score,
			"kkm":     res.KKM,
			"passed":  res.Score >= res.KKM,
		})
	}
}

func GetScoresHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		best, err := svc.GetBest(r.Context(), chi.URLParam(r, "nis"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, best)
	}
}

// ListAttemptsHandler returns the student's quiz attempts, newest first.
func ListAttemptsHandler(log *scoring.AttemptLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := log.List(r.Context(), chi.URLParam(r, "nis"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func ListAllScoresHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.GetAllBest(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// ExportScoresHandler streams the roster with scores as an XLSX workbook. The
// workbook is built in memory first so a failure can still become a JSON
// error.
func ExportScoresHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := svc.ExportWorkbook(r.Context(), &buf); err != nil {
			respondError(w, r, err)
			return
		}
		name := "nilai-siswa-" + time.Now().Format("2006-01-02") + ".xlsx"
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// DashboardHandler summarises one class (?class=) or the whole roster.
func DashboardHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Dashboard(r.Context(), r.URL.Query().Get("class"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}
