package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/mcb1510/v2v-simulator/internal/bus"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// SnapshotSink receives the per-tick statistics snapshot. Implementations
// must not block the engine; buffer internally instead.
type SnapshotSink interface {
	OnSnapshot(s Snapshot)
}

// EngineConfig paces the outer simulation loop.
type EngineConfig struct {
	TickInterval time.Duration
	Duration     float64 // simulation seconds to run
	Workers      int     // integration goroutines, 0 = GOMAXPROCS, 1 = sequential
}

func (c EngineConfig) validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %v must be > 0", ErrInvalidConfig, c.TickInterval)
	}
	if c.Duration <= 0 || math.IsNaN(c.Duration) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration %v must be > 0", ErrInvalidConfig, c.Duration)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: worker count %d must be >= 0", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Dependencies carries the collaborating services for the engine.
type Dependencies struct {
	Clock    *Clock
	Fleet    *Fleet
	Bus      *bus.Bus
	Analyzer *Analyzer
	Stats    *Aggregator
	Events   EventLog
	Logger   *slog.Logger
	Sinks    []SnapshotSink
}

// Engine owns the tick lifecycle: clock advance, fleet integration, BSM
// cadence, risk evaluation, delivery, and snapshot fan-out.
type Engine struct {
	cfg  EngineConfig
	deps Dependencies

	lastTick  atomic.Int64 // nanoseconds spent in the previous step
	tickGauge metric.Int64ObservableGauge
}

// NewEngine validates configuration and wiring.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewEngine(cfg EngineConfig, deps Dependencies) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil || deps.Fleet == nil || deps.Bus == nil ||
		deps.Analyzer == nil || deps.Stats == nil {
		return nil, fmt.Errorf("engine dependencies incomplete")
	}
	if deps.Events == nil {
		deps.Events = NopEvents{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	e := &Engine{cfg: cfg, deps: deps}

	m := meter()
	var err error
	e.tickGauge, err = m.Int64ObservableGauge(
		"engine.tick.duration",
		metric.WithDescription("Nanoseconds spent in the previous tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(e.tickGauge, e.lastTick.Load())
			return nil
		},
		e.tickGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering tick callback: %w", err)
	}

	return e, nil
}

// LastTickDuration reports how long the previous step took.
func (e *Engine) LastTickDuration() time.Duration {
	return time.Duration(e.lastTick.Load())
}

// Run drives the simulation until the configured duration of simulated time
// has passed or ctx is cancelled. Cancellation is a normal outcome: the
// in-flight tick completes and the final snapshot is still produced. The
// returned snapshot is always valid.
func (e *Engine) Run(ctx context.Context) (Snapshot, error) {
	e.deps.Logger.Info("simulation started",
		"vehicles", e.deps.Fleet.Size(),
		"duration", e.cfg.Duration,
		"tick", e.cfg.TickInterval,
		"speed", e.deps.Clock.Ratio(),
	)
	e.deps.Events.Info("engine", "simulation started", map[string]any{
		"vehicles": e.deps.Fleet.Size(),
		"duration": e.cfg.Duration,
	})

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			e.deps.Logger.Info("simulation cancelled")
			e.deps.Events.Info("engine", "simulation cancelled", nil)
			return e.finish(), nil

		case now := <-ticker.C:
			if err := e.step(now.Sub(last)); err != nil {
				e.deps.Logger.Error("simulation aborted", "error", err)
				e.deps.Events.Error("engine", "simulation aborted", map[string]any{
					"error": err.Error(),
				})
				return e.finish(), err
			}
			last = now

			if e.deps.Clock.Now() >= e.cfg.Duration {
				e.deps.Logger.Info("simulation finished", "simTime", e.deps.Clock.Now())
				e.deps.Events.Info("engine", "simulation finished", map[string]any{
					"simTime": e.deps.Clock.Now(),
				})
				return e.finish(), nil
			}
		}
	}
}

// step runs one tick: advance time, integrate from the start-of-tick state
// behind a barrier, broadcast due BSMs in ascending ID order, evaluate risk
// on the fresh snapshot, deliver, and fan out the statistics.
func (e *Engine) step(wall time.Duration) error {
	start := time.Now()

	dt := e.deps.Clock.Tick(wall)
	if dt < 0 {
		return fmt.Errorf("clock produced negative delta %v", dt)
	}
	simTime := e.deps.Clock.Now()

	e.deps.Fleet.Integrate(dt, e.cfg.Workers)
	states := e.deps.Fleet.States()

	for _, st := range states {
		if !st.Active {
			continue
		}
		v := e.deps.Fleet.Get(st.ID)
		if v != nil && v.ShouldBroadcast(simTime) {
			e.deps.Bus.Publish(v.Broadcast(simTime))
		}
	}

	for _, as := range e.deps.Analyzer.Evaluate(states, simTime) {
		e.deps.Fleet.Brake(as.Sender, as.BrakeDir, e.deps.Analyzer.Factor())
		e.deps.Bus.Publish(v2v.CollisionWarningMessage{
			ID:            uuid.New(),
			Source:        as.Sender,
			Target:        as.Target,
			SimTime:       simTime,
			TimeToClosest: as.TimeToClosest,
			MinSeparation: as.MinSeparation,
			Mitigated:     true,
		})
		if as.NewEpisode {
			e.deps.Stats.OnCollisionPrevented()
			e.deps.Events.Info("risk", "collision prevented", map[string]any{
				"sender": as.Sender.String(),
				"target": as.Target.String(),
				"ttc":    as.TimeToClosest,
			})
		}
	}

	e.deps.Bus.DeliverAll()

	snap := e.deps.Stats.OnTick(simTime, e.deps.Fleet.ActiveCount(), e.deps.Clock.Multiplier())
	for _, sink := range e.deps.Sinks {
		sink.OnSnapshot(snap)
	}

	e.lastTick.Store(int64(time.Since(start)))
	return nil
}

// finish produces the final snapshot and pushes it to every sink.
func (e *Engine) finish() Snapshot {
	snap := e.deps.Stats.OnTick(
		e.deps.Clock.Now(),
		e.deps.Fleet.ActiveCount(),
		e.deps.Clock.Multiplier(),
	)
	for _, sink := range e.deps.Sinks {
		sink.OnSnapshot(snap)
	}
	return snap
}
