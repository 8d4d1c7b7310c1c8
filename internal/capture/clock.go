package capture

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time operations so capture tests run on virtual time
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NewTicker creates a ticker firing every d
	NewTicker(d time.Duration) Ticker
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration)
}

// Ticker is the minimal ticker surface the scheduler needs
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// RealClock implements Clock using the real system time
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()                  { r.t.Stop() }

// MockClock implements Clock for testing. Sleep returns immediately and
// Advance moves the virtual time forward, delivering one tick to the active
// ticker per call. The tick send blocks until the scheduler loop has
// accepted it, which makes tests deterministic.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	ticks   chan time.Time
}

// NewMockClock creates a mock clock starting at start
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
		ticks:   make(chan time.Time),
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) NewTicker(d time.Duration) Ticker {
	return mockTicker{m.ticks}
}

func (m *MockClock) Sleep(ctx context.Context, d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// Advance moves the virtual time forward and fires one tick
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	now := m.current
	m.mu.Unlock()
	m.ticks <- now
}

type mockTicker struct {
	c chan time.Time
}

func (m mockTicker) Chan() <-chan time.Time { return m.c }
func (m mockTicker) Stop()                  {}

var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
)
