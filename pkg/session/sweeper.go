package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs the expiry sweep once an hour.
const DefaultSweepSchedule = "@every 1h"

// Pruner is implemented by stores that can drop their own TTL-expired
// entries (MemoryStore, SQLiteStore).
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// SweepStats describes the outcome of one sweep.
type SweepStats struct {
	Checked  int       `json:"checked"`
	Expired  int       `json:"expired"`
	Pruned   int       `json:"pruned"`
	Finished time.Time `json:"finished"`
}

// Sweeper periodically resets every session that has been idle longer
// than the manager's max age.
type Sweeper struct {
	manager  *Manager
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	last    SweepStats
}

// NewSweeper creates a Sweeper. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(manager *Manager, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{manager: manager, schedule: schedule}, nil
}

// Start schedules the sweep and runs it once immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.scheduledSweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.running = true

	go s.scheduledSweep(ctx)

	log.Info().
		Str("schedule", s.schedule).
		Dur("max_age", s.manager.MaxAge()).
		Msg("Session sweeper started")
	return nil
}

// scheduledSweep runs one sweep under its own trace ID. The sweep is detached
// from ctx's cancellation so a shutdown never leaves it half done; Stop waits
// for it instead.
func (s *Sweeper) scheduledSweep(ctx context.Context) {
	runCtx := tracing.WithTraceID(tracing.Detach(ctx), tracing.NewTraceID())
	logger := tracing.LoggerFromContext(runCtx, log.Logger)
	if _, err := s.SweepNow(runCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to sweep expired sessions")
	}
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	log.Info().Msg("Session sweeper stopped")
	return nil
}

// IsRunning reports whether the schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule returns the cron expression in use.
func (s *Sweeper) Schedule() string {
	return s.schedule
}

// SweepNow checks every stored session once and resets the expired ones.
func (s *Sweeper) SweepNow(ctx context.Context) (SweepStats, error) {
	stats := SweepStats{}

	if p, isPruner := s.manager.store.(Pruner); isPruner {
		n, err := p.Prune(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prune store")
		}
		stats.Pruned = n
	}

	keys, err := s.manager.Keys(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++
		if s.manager.CleanupExpiredSession(ctx, key) {
			stats.Expired++
		}
	}
	stats.Finished = s.manager.now()

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	if stats.Expired > 0 || stats.Pruned > 0 {
		log.Info().
			Int("checked", stats.Checked).
			Int("expired", stats.Expired).
			Int("pruned", stats.Pruned).
			Msg("Swept expired sessions")
	}
	return stats, nil
}

// LastStats returns the stats of the most recent completed sweep.
func (s *Sweeper) LastStats() SweepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
