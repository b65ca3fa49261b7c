package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/roster"
)

const maxImportBytes = 10 << 20

type updateStudentReq struct {
	FullName string `json:"fullName" validate:"required"`
	Class    string `json:"class" validate:"required"`
}

func ListStudentsHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := rs.ListStudents(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func ListClassesHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := rs.Classes(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// BulkImportStudentsHandler accepts either a multipart file= (CSV, JSON or
// XLSX) or a raw JSON array in the body.
func BulkImportStudentsHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []roster.ImportRow
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				respondMessage(w, http.StatusBadRequest, "file required")
				return
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, maxImportBytes+1))
			if err != nil {
				respondError(w, r, apperr.Invalid("read upload: %v", err))
				return
			}
			if len(data) > maxImportBytes {
				respondMessage(w, http.StatusBadRequest, "file too large")
				return
			}
			if rows, err = roster.DecodeImport(hdr.Filename, data); err != nil {
				respondError(w, r, err)
				return
			}
		} else {
			parsed, err := roster.ParseJSON(io.LimitReader(r.Body, maxImportBytes))
			if err != nil {
				respondMessage(w, http.StatusBadRequest, "expected JSON array or multipart file")
				return
			}
			rows = parsed
		}
		if len(rows) == 0 {
			respondJSON(w, http.StatusOK, roster.ImportResult{})
			return
		}

		res, err := rs.Import(r.Context(), rows)
		if err != nil {
			respondError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("roster imported")
		respondJSON(w, http.StatusOK, res)
	}
}

func UpdateStudentHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateStudentReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		st, err := rs.UpdateStudent(r.Context(), chi.URLParam(r, "nis"), req.FullName, req.Class)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, st)
	}
}

func DeleteStudentHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nis := chi.URLParam(r, "nis")
		if err := rs.DeleteStudent(r.Context(), nis); err != nil {
			respondError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("nis", nis).Msg("student deleted")
		respondMessage(w, http.StatusOK, "student deleted")
	}
}

func GetProgressHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := rs.GetProgress(r.Context(), chi.URLParam(r, "nis"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}
