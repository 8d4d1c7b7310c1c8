package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stcam/internal/smartthings"
)

// Runner is the capture operation the scheduler drives on every tick
type Runner interface {
	Capture(ctx context.Context, h smartthings.Handle) Result
}

// Scheduler repeatedly invokes the capture controller at a fixed interval.
// At most one capture is in flight at a time: a tick that fires while the
// previous capture is still running is skipped, not queued, since
// overlapping refresh/take/status sequences would leave the device in an
// indeterminate state.
type Scheduler struct {
	runner   Runner
	handle   smartthings.Handle
	clock    Clock
	logger   *slog.Logger
	onResult func(Result)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	inFlight bool
}

// NewScheduler creates a live capture scheduler. onResult is invoked with
// every completed capture's result and may be nil.
func NewScheduler(runner Runner, handle smartthings.Handle, clock Clock, logger *slog.Logger, onResult func(Result)) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		handle:   handle,
		clock:    clock,
		logger:   logger,
		onResult: onResult,
	}
}

// Start begins live capture every interval. Starting while already running
// is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.logger.Info("Live capture started",
		"component", "scheduler",
		"interval", interval.String())
	go s.loop(interval, s.stopChan)
}

// Stop ends live capture. The stop is binding before Stop returns: a tick
// firing afterwards is a no-op. An in-progress capture runs to completion.
// Stopping while not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	s.logger.Info("Live capture stopped", "component", "scheduler")
}

// Running reports whether live capture is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(interval time.Duration, stop chan struct{}) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.tick()
		case <-stop:
			return
		}
	}
}

// tick launches one capture unless stopped or a capture is still running
func (s *Scheduler) tick() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Warn("Previous capture still running, skipping tick",
			"component", "scheduler")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go func() {
		res := s.runner.Capture(context.Background(), s.handle)

		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()

		if s.onResult != nil {
			s.onResult(res)
		}
	}()
}
