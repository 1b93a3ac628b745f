// Package monitor logs a periodic health report for a running
// simulation: store queue depth and write latency, bus backlog,
// snapshot feed drops, and goroutine count. The report goes through
// the application logger, so it lands in the same sinks as everything
// else.
package monitor

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/mcb1510/v2v-simulator/internal/sim"
)

// StoreStatus is the slice of the store backend the monitor reads.
type StoreStatus interface {
	QueueDepth() int
	Healthy() bool
}

// WriteDurationProvider is probed on the store; backends that batch to
// a database expose their last write time through it.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// BusStatus is the slice of the message bus the monitor reads.
type BusStatus interface {
	Pending() int
	Total() uint64
}

// Dependencies holds everything the monitor reports on. Everything
// except the logger is optional; absent ones are skipped.
type Dependencies struct {
	Logger       *slog.Logger
	Store        StoreStatus
	Bus          BusStatus
	Stats        func() sim.Snapshot
	TickDuration func() time.Duration
	FeedDrops    func() uint64
}

// Config paces the report.
type Config struct {
	Interval time.Duration
}

// Service emits the health report until stopped.
type Service struct {
	cfg  Config
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      sync.WaitGroup
}

// NewService creates a monitor service.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: monitor interval %v must be > 0", sim.ErrInvalidConfig, cfg.Interval)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{cfg: cfg, deps: deps}, nil
}

// IsRunning returns whether the report loop is active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the report loop. Starting a running service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.done.Add(1)
	go s.loop()
}

// Stop halts the report loop and waits for it to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.mu.Unlock()

	s.done.Wait()
}

func (s *Service) loop() {
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.done.Done()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Report()
		case <-s.stopChan:
			return
		}
	}
}

// Report logs one health record from whatever dependencies are wired.
func (s *Service) Report() {
	attrs := []any{slog.Int("goroutines", runtime.NumGoroutine())}

	if s.deps.Stats != nil {
		snap := s.deps.Stats()
		attrs = append(attrs,
			slog.Uint64("tick", snap.Tick),
			slog.Float64("simTime", snap.SimTime),
		)
	}
	if s.deps.TickDuration != nil {
		attrs = append(attrs, slog.Float64("tickMs", float64(s.deps.TickDuration().Microseconds())/1000))
	}
	if s.deps.Bus != nil {
		attrs = append(attrs,
			slog.Int("busPending", s.deps.Bus.Pending()),
			slog.Uint64("busTotal", s.deps.Bus.Total()),
		)
	}
	if s.deps.Store != nil {
		attrs = append(attrs,
			slog.Int("storeQueue", s.deps.Store.QueueDepth()),
			slog.Bool("storeHealthy", s.deps.Store.Healthy()),
		)
		if p, ok := s.deps.Store.(WriteDurationProvider); ok {
			attrs = append(attrs, slog.Float64("lastWriteMs", float64(p.LastWriteDuration().Milliseconds())))
		}
	}
	if s.deps.FeedDrops != nil {
		attrs = append(attrs, slog.Uint64("feedDrops", s.deps.FeedDrops()))
	}

	s.deps.Logger.Info("health report", attrs...)
}
