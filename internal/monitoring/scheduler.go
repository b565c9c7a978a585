package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SessionPruner deletes sessions issued before a point in time.
type SessionPruner interface {
	PruneSessions(ctx context.Context, issuedBefore time.Time) (int64, error)
}

// RevocationRecorder is told how many sessions a sweep removed.
type RevocationRecorder interface {
	SessionsRevoked(reason string, n int64)
}

// SessionSweeper periodically removes sessions older than the token TTL.
// Those tokens already fail verification; sweeping keeps the session lists
// from growing without bound.
type SessionSweeper struct {
	pruner   SessionPruner
	recorder RevocationRecorder
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// NewSessionSweeper creates a sweeper. recorder may be nil.
func NewSessionSweeper(pruner SessionPruner, recorder RevocationRecorder, ttl time.Duration, schedule string) *SessionSweeper {
	return &SessionSweeper{
		pruner:   pruner,
		recorder: recorder,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the sweep on its cron schedule and starts the cron loop.
func (s *SessionSweeper) Start() error {
	if s.ttl <= 0 {
		return fmt.Errorf("session sweeper needs a positive token ttl, got %s", s.ttl)
	}
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("Session sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	log.Info().Str("schedule", s.schedule).Dur("ttl", s.ttl).Msg("Starting session sweeper")
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped session sweeper")
}

// Sweep removes every session issued more than one TTL ago.
func (s *SessionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.pruner.PruneSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("sessions", n).Time("issued_before", cutoff).Msg("Swept expired sessions")
	}
	if s.recorder != nil {
		s.recorder.SessionsRevoked("expired", n)
	}
	return n, nil
}
