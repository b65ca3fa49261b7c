package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	authmw "github.com/mind-engage/mindengage-kkm/internal/auth/middleware"
	"github.com/mind-engage/mindengage-kkm/internal/rbac"
	"github.com/mind-engage/mindengage-kkm/internal/roster"
)

type registerStudentReq struct {
	NIS             string `json:"nis" validate:"required"`
	FullName        string `json:"fullName" validate:"required"`
	Class           string `json:"class" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Token           string `json:"token" validate:"required"`
}

type registerTeacherReq struct {
	NIP             string `json:"nip" validate:"required"`
	FullName        string `json:"fullName" validate:"required"`
	School          string `json:"school" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type loginReq struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type loginResp struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// RegisterStudentHandler creates a student account. The registration token
// keeps self sign-up to students the school handed it to.
func RegisterStudentHandler(rs *roster.Store, registrationToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerStudentReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.Token), []byte(registrationToken)) != 1 {
			respondMessage(w, http.StatusBadRequest, "invalid registration token")
			return
		}
		st, err := rs.RegisterStudent(r.Context(), roster.NewStudent{
			NIS: req.NIS, FullName: req.FullName, Class: req.Class, Password: req.Password,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("nis", st.NIS).Msg("student registered")
		respondJSON(w, http.StatusCreated, map[string]any{"message": "registration successful", "student": st})
	}
}

func RegisterTeacherHandler(rs *roster.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerTeacherReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		t, err := rs.RegisterTeacher(r.Context(), roster.NewTeacher{
			NIP: req.NIP, FullName: req.FullName, School: req.School, Password: req.Password,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("nip", t.NIP).Msg("teacher registered")
		respondJSON(w, http.StatusCreated, map[string]any{"message": "registration successful", "teacher": t})
	}
}

// StudentLoginHandler opens a session and returns a token bound to it.
func StudentLoginHandler(rs *roster.Store, sessions *authmw.SessionStore, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		st, err := rs.AuthenticateStudent(r.Context(), req.Identifier, req.Password)
		if err != nil {
			respondError(w, r, err)
			return
		}
		issue(w, r, sessions, authSvc, authmw.Identity{
			UserID: st.ID, Role: rbac.RoleStudent, Identifier: st.NIS,
		}, st)
	}
}

func TeacherLoginHandler(rs *roster.Store, sessions *authmw.SessionStore, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		t, err := rs.AuthenticateTeacher(r.Context(), req.Identifier, req.Password)
		if err != nil {
			respondError(w, r, err)
			return
		}
		issue(w, r, sessions, authSvc, authmw.Identity{
			UserID: t.ID, Role: rbac.RoleTeacher, Identifier: t.NIP,
		}, t)
	}
}

func issue(w http.ResponseWriter, r *http.Request, sessions *authmw.SessionStore, authSvc *authmw.AuthService, id authmw.Identity, user any) {
	id, err := sessions.Create(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tok, err := authSvc.IssueJWT(id)
	if err != nil {
		respondError(w, r, apperr.Storage(err, "sign token"))
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("role", id.Role).Str("identifier", id.Identifier).Msg("login")
	respondJSON(w, http.StatusOK, loginResp{Token: tok, User: user})
}

// LogoutHandler ends the caller's session; the token stops working at once.
func LogoutHandler(sessions *authmw.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authmw.IdentityFromContext(r.Context())
		if !ok {
			respondMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := sessions.Delete(r.Context(), id.SessionID); err != nil {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusOK, "logged out")
	}
}

func VerifyTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := authmw.IdentityFromContext(r.Context())
		respondJSON(w, http.StatusOK, map[string]any{
			"valid":      true,
			"role":       id.Role,
			"identifier": id.Identifier,
		})
	}
}
