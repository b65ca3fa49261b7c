package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	api "github.com/mind-engage/mindengage-kkm/internal/api/http"
	auth "github.com/mind-engage/mindengage-kkm/internal/auth/middleware"
	"github.com/mind-engage/mindengage-kkm/internal/config"
	"github.com/mind-engage/mindengage-kkm/internal/db"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
	"github.com/mind-engage/mindengage-kkm/internal/logger"
	"github.com/mind-engage/mindengage-kkm/internal/quiz"
	"github.com/mind-engage/mindengage-kkm/internal/roster"
	"github.com/mind-engage/mindengage-kkm/internal/scoring"
	"github.com/mind-engage/mindengage-kkm/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	base := logger.Get()
	zerolog.DefaultContextLogger = &base
	rootCtx := base.WithContext(context.Background())

	// --- DB ---
	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("db open failed")
	}
	defer dbh.Close()

	bs, err := storage.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.BlobDriver).Msg("blob store")
	}

	sessions := auth.NewSessionStore(dbh, cfg.SessionTTL)
	sweeper, err := auth.StartSessionSweeper(rootCtx, sessions, cfg.SessionSweepCron)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SessionSweepCron).Msg("session sweeper")
	}

	deps := api.Deps{
		Auth:              auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Sessions:          sessions,
		Roster:            roster.NewStore(dbh),
		Scores:            scoring.NewService(dbh, db.Driver(cfg.DBDriver)),
		Attempts:          scoring.NewAttemptLog(dbh),
		KKM:               kkm.NewStore(dbh),
		Questions:         quiz.NewStore(dbh, nil),
		Blobs:             bs,
		RegistrationToken: cfg.RegistrationToken,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(ar chi.Router) { api.Mount(ar, deps) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("mode", string(cfg.Mode)).Str("db", cfg.DBDriver).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	<-sweeper.Stop().Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
