package sim

import (
	"sync"
	"time"

	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// Snapshot is the immutable statistics view produced once per tick.
type Snapshot struct {
	Tick                uint64
	SimTime             float64
	WallElapsed         time.Duration
	SpeedMultiplier     float64
	VehicleCount        int
	BSMSent             uint64
	CWMSent             uint64
	CollisionsPrevented uint64
	BSMRate             float64 // BSMs per simulated second
}

// Aggregator folds bus traffic and analyzer outcomes into snapshots. All
// counters are monotonically non-decreasing for the lifetime of a run.
type Aggregator struct {
	mu        sync.RWMutex
	bsm       uint64
	cwm       uint64
	prevented uint64
	tick      uint64
	start     time.Time
	last      Snapshot
}

// NewAggregator creates an aggregator; wall elapsed time counts from here.
func NewAggregator() *Aggregator {
	return &Aggregator{start: time.Now()}
}

// OnMessage counts a delivered message by kind. Implements bus.Subscriber.
func (a *Aggregator) OnMessage(m v2v.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch m.MessageKind() {
	case v2v.KindBSM:
		a.bsm++
	case v2v.KindCWM:
		a.cwm++
	}
}

// OnCollisionPrevented counts one new risk episode.
func (a *Aggregator) OnCollisionPrevented() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prevented++
}

// OnTick folds the tick into a fresh snapshot and returns it.
func (a *Aggregator) OnTick(simTime float64, vehicles int, multiplier float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tick++
	snap := Snapshot{
		Tick:                a.tick,
		SimTime:             simTime,
		WallElapsed:         time.Since(a.start),
		SpeedMultiplier:     multiplier,
		VehicleCount:        vehicles,
		BSMSent:             a.bsm,
		CWMSent:             a.cwm,
		CollisionsPrevented: a.prevented,
	}
	if simTime > 0 {
		snap.BSMRate = float64(a.bsm) / simTime
	}
	a.last = snap
	return snap
}

// Current returns the latest snapshot for late-attaching readers.
func (a *Aggregator) Current() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}
