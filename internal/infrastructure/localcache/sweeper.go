package localcache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 60 * time.Second

// EvictionObserver is notified with the number of entries each sweep removed.
type EvictionObserver func(evicted int)

// Sweeper periodically purges expired entries from a Store, so keys written
// once and never read again do not accumulate.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *logrus.Logger
	cron     *cron.Cron
	observe  EvictionObserver
}

// NewSweeper creates a sweeper for store. A non-positive interval selects DefaultSweepInterval.
func NewSweeper(store *Store, interval time.Duration, logger *logrus.Logger, observe EvictionObserver) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		cron:     cron.New(),
		observe:  observe,
	}
}

// Start schedules the sweep and returns immediately.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule cache sweeper: %w", err)
	}
	s.cron.Start()
	if s.logger != nil {
		s.logger.WithField("interval", s.interval.String()).Info("local cache sweeper started")
	}
	return nil
}

// Stop unschedules the sweep and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep and returns the number of evicted entries.
func (s *Sweeper) RunOnce() int {
	evicted := s.store.Sweep(s.store.now())
	if s.observe != nil {
		s.observe(evicted)
	}
	if s.logger != nil && evicted > 0 {
		s.logger.WithFields(logrus.Fields{"evicted": evicted, "remaining": s.store.Len()}).Debug("local cache sweep")
	}
	return evicted
}
