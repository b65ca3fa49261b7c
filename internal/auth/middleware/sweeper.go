package auth

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StartSessionSweeper deletes expired sessions once right away and then on
// schedule (standard five-field cron). Stop the returned cron on shutdown.
func StartSessionSweeper(ctx context.Context, sessions *SessionStore, schedule string) (*cron.Cron, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "session-sweeper").Logger()
	sweep := func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := sessions.DeleteExpired(sctx)
		if err != nil {
			log.Error().Err(err).Msg("sweep failed")
			return
		}
		log.Info().Int64("deleted", n).Msg("expired sessions removed")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, sweep); err != nil {
		return nil, err
	}
	sweep()
	c.Start()
	log.Info().Str("schedule", schedule).Msg("started")
	return c, nil
}
