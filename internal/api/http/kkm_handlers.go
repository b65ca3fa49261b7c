package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

// kkmValues keys are quiz numbers as JSON object keys: {"1": 70, ..., "5": 75}.
type updateKKMReq struct {
	Values map[string]int `json:"kkmValues" validate:"required"`
}

func ListKKMHandler(ks *kkm.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := ks.GetAll(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func UpdateKKMHandler(ks *kkm.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateKKMReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		settings := make(map[int]int, len(req.Values))
		for k, v := range req.Values {
			n, err := strconv.Atoi(k)
			if err != nil {
				respondError(w, r, apperr.Invalid("invalid quiz number %q", k))
				return
			}
			settings[n] = v
		}
		if err := ks.SetAll(r.Context(), settings); err != nil {
			respondError(w, r, err)
			return
		}
		out, err := ks.GetAll(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Interface("kkm", settings).Msg("kkm updated")
		respondJSON(w, http.StatusOK, map[string]any{"message": "kkm updated", "kkm": out})
	}
}

func GetKKMHandler(ks *kkm.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := quizNumberParam(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, kkm.Setting{QuizNumber: n, KKM: ks.Get(r.Context(), n)})
	}
}

// quizNumberParam reads {quizNumber} and requires a slot in 1..5.
func quizNumberParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "quizNumber")
	n, err := strconv.Atoi(raw)
	if err != nil || !kkm.ValidSlot(n) {
		return 0, apperr.Invalid("invalid quiz number %q", raw)
	}
	return n, nil
}
