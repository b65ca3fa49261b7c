// Package http is the REST surface: chi handlers over the roster, scoring,
// kkm and quiz services.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-kkm/internal/auth/middleware"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
	"github.com/mind-engage/mindengage-kkm/internal/quiz"
	"github.com/mind-engage/mindengage-kkm/internal/rbac"
	"github.com/mind-engage/mindengage-kkm/internal/roster"
	"github.com/mind-engage/mindengage-kkm/internal/scoring"
	"github.com/mind-engage/mindengage-kkm/internal/storage"
)

type Deps struct {
	Auth      *authmw.AuthService
	Sessions  *authmw.SessionStore
	Roster    *roster.Store
	Scores    *scoring.Service
	Attempts  *scoring.AttemptLog
	KKM       *kkm.Store
	Questions *quiz.Store
	Blobs     storage.BlobStore

	RegistrationToken string
}

// identifier is the caller's nis (student) or nip (teacher).
func identifier(r *http.Request) string {
	return authmw.IdentifierFromContext(r.Context())
}

// ownsNIS holds when a student acts on their own {nis}.
func ownsNIS(r *http.Request) bool {
	id, ok := authmw.IdentityFromContext(r.Context())
	return ok && id.Role == rbac.RoleStudent && id.Identifier == chi.URLParam(r, "nis")
}

// Mount registers every route on r. Callers pick the prefix (/api).
func Mount(r chi.Router, d Deps) {
	r.Post("/students/register", RegisterStudentHandler(d.Roster, d.RegistrationToken))
	r.Post("/students/login", StudentLoginHandler(d.Roster, d.Sessions, d.Auth))
	r.Post("/teachers/register", RegisterTeacherHandler(d.Roster))
	r.Post("/teachers/login", TeacherLoginHandler(d.Roster, d.Sessions, d.Auth))

	// Protected API (JWT + live session → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth, d.Sessions))

		pr.Post("/auth/logout", LogoutHandler(d.Sessions))
		pr.Get("/verify-token", VerifyTokenHandler())
		pr.Route("/assets", func(ar chi.Router) {
			MountAssets(ar, d.Blobs)
		})

		// Roster (teacher)
		pr.With(rbac.Require("roster:list")).
			Get("/students", ListStudentsHandler(d.Roster))
		pr.With(rbac.Require("roster:list")).
			Get("/students/classes", ListClassesHandler(d.Roster))
		pr.With(rbac.Require("roster:import")).
			Post("/students/bulk", BulkImportStudentsHandler(d.Roster))
		pr.With(rbac.Require("roster:update")).
			Put("/students/{nis}", UpdateStudentHandler(d.Roster))
		pr.With(rbac.Require("roster:delete")).
			Delete("/students/{nis}", DeleteStudentHandler(d.Roster))
		pr.With(rbac.RequireOwnerOr("progress:view-all", ownsNIS)).
			Get("/students/progress/{nis}", GetProgressHandler(d.Roster))

		// Scores
		pr.With(rbac.Require("scores:view-all")).
			Get("/students/scores", ListAllScoresHandler(d.Scores))
		pr.With(rbac.Require("scores:export")).
			Get("/students/scores/export", ExportScoresHandler(d.Scores))
		pr.With(rbac.Require("dashboard:view")).
			Get("/students/dashboard", DashboardHandler(d.Scores))
		pr.With(rbac.RequireOwnerOr("scores:submit-any", ownsNIS)).
			Post("/students/scores/{nis}", SubmitScoresHandler(d.Scores))
		pr.With(rbac.RequireOwnerOr("scores:view-all", ownsNIS)).
			Get("/students/scores/{nis}", GetScoresHandler(d.Scores))
		pr.With(rbac.RequireOwnerOr("scores:view-all", ownsNIS)).
			Get("/students/scores/{nis}/attempts", ListAttemptsHandler(d.Attempts))
		pr.With(rbac.Require("evaluation:submit"), rbac.RequireOwner(ownsNIS)).
			Post("/students/evaluation-scores/{nis}", SubmitEvaluationHandler(d.Scores))

		// KKM: any signed-in user reads one slot; teachers manage all
		pr.With(rbac.Require("kkm:view-all")).
			Get("/kkm", ListKKMHandler(d.KKM))
		pr.With(rbac.Require("kkm:update")).
			Put("/kkm", UpdateKKMHandler(d.KKM))
		pr.Get("/kkm/{quizNumber}", GetKKMHandler(d.KKM))

		// Question bank
		pr.With(rbac.Require("question:view")).
			Get("/quizzes/questions", ListQuestionsHandler(d.Questions))
		pr.With(rbac.Require("question:view")).
			Get("/quizzes/questions/{id}", GetQuestionHandler(d.Questions))
		pr.With(rbac.Require("question:create")).
			Post("/quizzes/questions", CreateQuestionHandler(d.Questions))
		pr.With(rbac.Require("question:update")).
			Put("/quizzes/questions/{id}", UpdateQuestionHandler(d.Questions))
		pr.With(rbac.Require("question:update")).
			Post("/quizzes/questions/{id}/image", UploadQuestionImageHandler(d.Questions, d.Blobs))
		pr.With(rbac.Require("question:delete")).
			Delete("/quizzes/questions/{id}", DeleteQuestionHandler(d.Questions, d.Blobs))

		// Student answer sheets
		pr.With(rbac.Require("quiz:answer")).
			Post("/quizzes/{quizNumber}/answers", SubmitAnswersHandler(d.Questions, d.Scores))
	})
}
