package services_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/survey-admin/internal/application/services"
	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

func fastMonitorConfig() impl.AvailabilityMonitorConfig {
	return impl.AvailabilityMonitorConfig{
		FailureThreshold: 3,
		ConnectTimeout:   time.Second,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
	}
}

func factoryFor(store *durableStoreMock) ports.DurableStoreFactory {
	return func() ports.DurableStore { return store }
}

func waitForState(t *testing.T, m *impl.AvailabilityMonitor, want cache.State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State().State == want }, 2*time.Second, 5*time.Millisecond)
}

func TestAvailabilityMonitor_ConnectsOnFirstSuccessfulPing(t *testing.T) {
	store := newDurableStoreMock()
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logrus.New())
	defer m.Close()

	assert.Equal(t, cache.StateConnecting, m.State().State)
	assert.False(t, m.ShouldAttemptDurableStore())

	m.Start()
	waitForState(t, m, cache.StateAvailable)
	assert.True(t, m.ShouldAttemptDurableStore())
	st := m.State()
	assert.True(t, st.IsAvailable)
	assert.False(t, st.Disabled)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, "available", st.StateName)
}

func TestAvailabilityMonitor_DisablesAfterThresholdHandshakeFailures(t *testing.T) {
	store := newDurableStoreMock()
	store.pingFails.Store(true)
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logrus.New())
	defer m.Close()

	m.Start()
	waitForState(t, m, cache.StateDisabled)

	st := m.State()
	assert.True(t, st.Disabled)
	assert.Equal(t, 3, st.ConsecutiveFailures)
	assert.Equal(t, 1, st.Disablements)
	assert.Equal(t, int64(3), store.pingCalls.Load())
	assert.Equal(t, int64(1), store.closeCalls.Load())

	// No automatic reconnect once disabled.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(3), store.pingCalls.Load())
}

func TestAvailabilityMonitor_RecoversBeforeThreshold(t *testing.T) {
	store := newDurableStoreMock()
	store.pingFails.Store(true)
	m := impl.NewAvailabilityMonitor(factoryFor(store), impl.AvailabilityMonitorConfig{
		FailureThreshold: 50,
		ConnectTimeout:   time.Second,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    2 * time.Millisecond,
	}, logrus.New())
	defer m.Close()

	m.Start()
	require.Eventually(t, func() bool { return store.pingCalls.Load() >= 2 }, time.Second, time.Millisecond)
	store.pingFails.Store(false)
	waitForState(t, m, cache.StateAvailable)
	assert.Zero(t, m.State().ConsecutiveFailures)
}

func TestAvailabilityMonitor_DroppedConnectionReconnects(t *testing.T) {
	store := newDurableStoreMock()
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logrus.New())
	defer m.Close()
	m.Start()
	waitForState(t, m, cache.StateAvailable)

	m.ReportFailure(errors.New("connection reset"))
	// The reconnect ping succeeds right away.
	waitForState(t, m, cache.StateAvailable)
	assert.Zero(t, m.State().Disablements)
	assert.GreaterOrEqual(t, store.pingCalls.Load(), int64(2))
}

func TestAvailabilityMonitor_ConcurrentFailuresDisableOnce(t *testing.T) {
	store := newDurableStoreMock()
	store.pingFails.Store(true)
	m := impl.NewAvailabilityMonitor(factoryFor(store), impl.AvailabilityMonitorConfig{
		FailureThreshold: 3,
		ConnectTimeout:   time.Second,
		RetryBaseDelay:   time.Hour,
		RetryMaxDelay:    time.Hour,
	}, logrus.New())
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ReportFailure(errors.New("timeout"))
		}()
	}
	wg.Wait()

	st := m.State()
	assert.True(t, st.Disabled)
	assert.Equal(t, 1, st.Disablements)
	assert.Equal(t, 3, st.ConsecutiveFailures)
}

func TestAvailabilityMonitor_ReenableIsExplicit(t *testing.T) {
	store := newDurableStoreMock()
	store.pingFails.Store(true)
	builds := 0
	factory := func() ports.DurableStore {
		builds++
		return store
	}
	m := impl.NewAvailabilityMonitor(factory, fastMonitorConfig(), logrus.New())
	defer m.Close()

	assert.False(t, m.Reenable(), "re-enable outside the disabled state is a no-op")

	m.Start()
	waitForState(t, m, cache.StateDisabled)

	store.pingFails.Store(false)
	require.True(t, m.Reenable())
	waitForState(t, m, cache.StateAvailable)

	st := m.State()
	assert.Equal(t, 1, st.Disablements)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, 2, builds)
}

func TestAvailabilityMonitor_LogsDisablementOnce(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := newDurableStoreMock()
	store.pingFails.Store(true)
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logger)
	defer m.Close()

	m.Start()
	waitForState(t, m, cache.StateDisabled)
	for i := 0; i < 100; i++ {
		m.ReportFailure(errors.New("still down"))
	}

	errorsLogged := 0
	warnings := 0
	for _, e := range hook.AllEntries() {
		switch e.Level {
		case logrus.ErrorLevel:
			errorsLogged++
		case logrus.WarnLevel:
			warnings++
		}
	}
	assert.Equal(t, 1, errorsLogged)
	assert.LessOrEqual(t, warnings, 3)
}

func TestAvailabilityMonitor_NilFactoryDisablesWithoutCountingFailures(t *testing.T) {
	m := impl.NewAvailabilityMonitor(nil, fastMonitorConfig(), logrus.New())
	defer m.Close()
	m.Start()

	st := m.State()
	assert.True(t, st.Disabled)
	assert.Zero(t, st.Disablements)
	assert.False(t, m.Reenable())
}

func TestAvailabilityMonitor_PanickingPingCountsAsFailure(t *testing.T) {
	store := newDurableStoreMock()
	store.pingPanic.Store(true)
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logrus.New())
	defer m.Close()

	m.Start()
	waitForState(t, m, cache.StateDisabled)
}

func TestAvailabilityMonitor_CloseClosesStore(t *testing.T) {
	store := newDurableStoreMock()
	m := impl.NewAvailabilityMonitor(factoryFor(store), fastMonitorConfig(), logrus.New())
	m.Start()
	waitForState(t, m, cache.StateAvailable)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), store.closeCalls.Load())
	assert.False(t, m.ShouldAttemptDurableStore())
}
