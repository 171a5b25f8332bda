package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var errDurableDown = errors.New("connection refused")

// durableStoreMock is an in-memory ports.DurableStore whose failure modes are
// switched at runtime.
type durableStoreMock struct {
	mu   sync.Mutex
	data map[string][]byte

	failing   atomic.Bool
	pingFails atomic.Bool
	panicking atomic.Bool
	pingPanic atomic.Bool

	opCalls    atomic.Int64
	pingCalls  atomic.Int64
	closeCalls atomic.Int64

	// getHook runs inside Get before the failure check.
	getHook func()
}

func newDurableStoreMock() *durableStoreMock {
	return &durableStoreMock{data: make(map[string][]byte)}
}

func (m *durableStoreMock) op() error {
	m.opCalls.Add(1)
	if m.panicking.Load() {
		panic("durable store exploded")
	}
	if m.failing.Load() {
		return errDurableDown
	}
	return nil
}

func (m *durableStoreMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.getHook != nil {
		m.getHook()
	}
	if err := m.op(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *durableStoreMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.op(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *durableStoreMock) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := m.op(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *durableStoreMock) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := m.op(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *durableStoreMock) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := m.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return m.Delete(ctx, keys...)
}

func (m *durableStoreMock) Clear(ctx context.Context) error {
	if err := m.op(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

func (m *durableStoreMock) Size(ctx context.Context) (int64, error) {
	if err := m.op(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

func (m *durableStoreMock) Ping(ctx context.Context) error {
	m.pingCalls.Add(1)
	if m.pingPanic.Load() {
		panic("durable store exploded")
	}
	if m.pingFails.Load() {
		return errDurableDown
	}
	return nil
}

func (m *durableStoreMock) Close() error {
	m.closeCalls.Add(1)
	if m.panicking.Load() {
		panic("durable store exploded")
	}
	return nil
}

func (m *durableStoreMock) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
