package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

// AvailabilityMonitorConfig tunes the durable tier state machine.
type AvailabilityMonitorConfig struct {
	// FailureThreshold is the number of consecutive failures that disables the durable tier.
	FailureThreshold int
	// ConnectTimeout bounds every handshake attempt.
	ConnectTimeout time.Duration
	// RetryBaseDelay grows linearly per failed handshake, capped at RetryMaxDelay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultAvailabilityMonitorConfig returns the production defaults.
func DefaultAvailabilityMonitorConfig() AvailabilityMonitorConfig {
	return AvailabilityMonitorConfig{
		FailureThreshold: 3,
		ConnectTimeout:   5 * time.Second,
		RetryBaseDelay:   50 * time.Millisecond,
		RetryMaxDelay:    2 * time.Second,
	}
}

// AvailabilityMonitor decides whether the durable store is attempted at all.
//
// It starts in StateConnecting and moves to StateAvailable on the first
// successful handshake. Any reported failure while available drops it back to
// StateConnecting and starts a single reconnect loop. FailureThreshold
// consecutive failures move it to StateDisabled, which closes the store and is
// only left through Reenable.
type AvailabilityMonitor struct {
	cfg     AvailabilityMonitorConfig
	factory ports.DurableStoreFactory
	logger  *logrus.Logger

	mu           sync.Mutex
	store        ports.DurableStore
	state        cache.State
	failures     int
	disablements int
	// logged caps per-failure log lines within one enable cycle.
	logged     int
	connecting bool
	generation int
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAvailabilityMonitor creates a monitor in StateConnecting. A nil factory means
// no durable store is configured and the monitor disables itself on Start.
func NewAvailabilityMonitor(factory ports.DurableStoreFactory, cfg AvailabilityMonitorConfig, logger *logrus.Logger) *AvailabilityMonitor {
	def := DefaultAvailabilityMonitorConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = def.RetryMaxDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &AvailabilityMonitor{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		state:   cache.StateConnecting,
		ctx:     ctx,
		cancel:  cancel,
	}
	cacheDurableState.Set(float64(cache.StateConnecting))
	return m
}

// Start begins the initial handshake in the background and returns immediately.
func (m *AvailabilityMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != cache.StateConnecting {
		return
	}
	if m.factory == nil {
		m.setStateLocked(cache.StateDisabled)
		m.logInfo("durable cache not configured, serving from local cache only")
		return
	}
	if m.store == nil {
		m.store = m.factory()
	}
	m.startLoopLocked()
}

// ShouldAttemptDurableStore reports whether the durable store should be used.
func (m *AvailabilityMonitor) ShouldAttemptDurableStore() bool {
	_, ok := m.Store()
	return ok
}

// Store returns the durable store iff the monitor is in StateAvailable.
func (m *AvailabilityMonitor) Store() (ports.DurableStore, bool) {
	store, _, ok := m.lease()
	return store, ok
}

// lease is Store plus the enable cycle the store belongs to.
func (m *AvailabilityMonitor) lease() (ports.DurableStore, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != cache.StateAvailable || m.store == nil {
		return nil, m.generation, false
	}
	return m.store, m.generation, true
}

// ReportFailure records a failed durable operation, timeouts included.
// Concurrent reports past the threshold produce a single disable transition.
func (m *AvailabilityMonitor) ReportFailure(err error) {
	m.mu.Lock()
	m.reportLocked(m.generation, err)
}

// reportFailureFrom records a failure of an operation started in enable cycle
// gen. Reports from a cycle that ended with a re-enable are dropped.
func (m *AvailabilityMonitor) reportFailureFrom(gen int, err error) {
	m.mu.Lock()
	m.reportLocked(gen, err)
}

// reportLocked is entered with m.mu held and releases it.
func (m *AvailabilityMonitor) reportLocked(gen int, err error) {
	if m.state == cache.StateDisabled || m.closed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.failures++
	failures := m.failures
	if failures >= m.cfg.FailureThreshold {
		m.disablements++
		m.setStateLocked(cache.StateDisabled)
		store := m.store
		m.store = nil
		m.mu.Unlock()

		if m.logger != nil {
			m.logger.WithFields(logrus.Fields{
				"consecutive_failures": failures,
				"failure_threshold":    m.cfg.FailureThreshold,
			}).WithError(err).Error("durable cache disabled, serving from local cache only until re-enabled")
		}
		if store != nil {
			_ = closeStore(store)
		}
		return
	}
	if m.state == cache.StateAvailable {
		m.setStateLocked(cache.StateConnecting)
		m.startLoopLocked()
	}
	shouldLog := m.logged < m.cfg.FailureThreshold
	m.logged++
	m.mu.Unlock()

	if shouldLog && m.logger != nil {
		m.logger.WithFields(logrus.Fields{
			"consecutive_failures": failures,
			"failure_threshold":    m.cfg.FailureThreshold,
		}).WithError(err).Warn("durable cache operation failed")
	}
}

// Reenable is the operator action leaving StateDisabled. It resets the failure
// counter, builds a fresh store and restarts the handshake. It reports whether
// the monitor was disabled.
func (m *AvailabilityMonitor) Reenable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != cache.StateDisabled || m.factory == nil {
		return false
	}
	m.generation++
	m.failures = 0
	m.logged = 0
	m.connecting = false
	m.store = m.factory()
	m.setStateLocked(cache.StateConnecting)
	m.startLoopLocked()
	m.logInfo("durable cache re-enabled by operator")
	return true
}

// State returns a snapshot of the availability state.
func (m *AvailabilityMonitor) State() cache.AvailabilityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache.AvailabilityState{
		State:               m.state,
		StateName:           m.state.String(),
		IsAvailable:         m.state == cache.StateAvailable,
		Disabled:            m.state == cache.StateDisabled,
		ConsecutiveFailures: m.failures,
		FailureThreshold:    m.cfg.FailureThreshold,
		Disablements:        m.disablements,
	}
}

// Close stops the reconnect loop and closes the durable store, if any.
func (m *AvailabilityMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	store := m.store
	m.store = nil
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	if store != nil {
		return closeStore(store)
	}
	return nil
}

func (m *AvailabilityMonitor) setStateLocked(s cache.State) {
	m.state = s
	cacheDurableState.Set(float64(s))
}

func (m *AvailabilityMonitor) startLoopLocked() {
	if m.connecting || m.closed {
		return
	}
	m.connecting = true
	m.wg.Add(1)
	go m.connectLoop(m.generation)
}

func (m *AvailabilityMonitor) connectLoop(gen int) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		if m.generation == gen {
			m.connecting = false
		}
		m.mu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		m.mu.Lock()
		if m.closed || m.generation != gen || m.state != cache.StateConnecting || m.store == nil {
			m.mu.Unlock()
			return
		}
		store := m.store
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
		err := pingStore(ctx, store)
		cancel()
		if m.ctx.Err() != nil {
			return
		}
		if err == nil {
			m.markAvailable(gen)
			return
		}
		m.reportFailureFrom(gen, err)

		delay := min(time.Duration(attempt)*m.cfg.RetryBaseDelay, m.cfg.RetryMaxDelay)
		select {
		case <-time.After(delay):
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *AvailabilityMonitor) markAvailable(gen int) {
	m.mu.Lock()
	if m.generation != gen || m.state != cache.StateConnecting {
		m.mu.Unlock()
		return
	}
	m.failures = 0
	m.logged = 0
	m.setStateLocked(cache.StateAvailable)
	m.mu.Unlock()
	m.logInfo("durable cache connected")
}

func (m *AvailabilityMonitor) logInfo(msg string) {
	if m.logger != nil {
		m.logger.Info(msg)
	}
}

func pingStore(ctx context.Context, store ports.DurableStore) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("durable store panic: %v", r)
		}
	}()
	return store.Ping(ctx)
}

func closeStore(store ports.DurableStore) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("durable store panic: %v", r)
		}
	}()
	return store.Close()
}
