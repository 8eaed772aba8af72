package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically evicts idle sessions from a Store on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	store  *Store
	ttl    time.Duration
	logger zerolog.Logger
}

// SweeperConfig configures a sweeper. Schedule accepts standard cron specs
// and descriptors such as "@every 1m".
type SweeperConfig struct {
	Store    *Store
	TTL      time.Duration
	Schedule string
	Logger   zerolog.Logger
}

// NewSweeper creates a sweeper bound to the store. Call Start to begin
// sweeping.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", cfg.TTL)
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}

	s := &Sweeper{
		cron:   cron.New(),
		store:  cfg.Store,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info().Dur("ttl", s.ttl).Msg("Session sweeper started")
}

// Stop halts sweeping and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Session sweeper stopped")
}

func (s *Sweeper) sweep() {
	if evicted := s.store.EvictIdle(s.ttl); len(evicted) > 0 {
		s.logger.Debug().Int("count", len(evicted)).Msg("Sweep evicted idle sessions")
	}
}
