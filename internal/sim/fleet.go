package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mcb1510/v2v-simulator/internal/geo"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// Spawn speed profile: a highway share cruising fast with a narrow spread
// and the rest at city speeds with a wider one.
const (
	highwaySpeedSpread = 0.10
	citySpeedLow       = 0.8
	citySpeedHigh      = 1.2
)

// Scenario selects the spawn layout.
type Scenario uint8

const (
	// ScenarioRandom scatters vehicles uniformly inside the bounds.
	ScenarioRandom Scenario = iota
	// ScenarioConvoy places a fast rear vehicle 40 m behind a slower lead
	// on a shared lane axis, with the remaining traffic spaced out behind.
	ScenarioConvoy
)

func (s Scenario) String() string {
	switch s {
	case ScenarioRandom:
		return "random"
	case ScenarioConvoy:
		return "convoy"
	default:
		return fmt.Sprintf("Scenario(%d)", uint8(s))
	}
}

// ParseScenario maps the configuration value to a scenario.
func ParseScenario(s string) (Scenario, error) {
	switch s {
	case "", "random":
		return ScenarioRandom, nil
	case "convoy":
		return ScenarioConvoy, nil
	default:
		return ScenarioRandom, fmt.Errorf("%w: unknown scenario %q", ErrInvalidConfig, s)
	}
}

// FleetConfig describes how vehicles spawn and move.
type FleetConfig struct {
	Vehicles       int
	Bounds         geo.Bounds
	Anchor         geo.Anchor
	BSMInterval    float64 // simulation seconds between broadcasts
	BoundaryPolicy BoundaryPolicy
	Scenario       Scenario
	HighwayShare   float64 // fraction spawning at highway speed
	HighwaySpeed   float64 // m/s
	CitySpeed      float64 // m/s
	AccelJitter    float64 // max |acceleration| per axis, m/s^2
}

func (c FleetConfig) validate() error {
	if c.Vehicles < MinVehicles || c.Vehicles > MaxVehicles {
		return fmt.Errorf("%w: vehicle count %d outside [%d, %d]",
			ErrInvalidConfig, c.Vehicles, MinVehicles, MaxVehicles)
	}
	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.BSMInterval <= 0 || math.IsNaN(c.BSMInterval) {
		return fmt.Errorf("%w: broadcast interval %v must be > 0", ErrInvalidConfig, c.BSMInterval)
	}
	if c.HighwayShare < 0 || c.HighwayShare > 1 {
		return fmt.Errorf("%w: highway share %v outside [0, 1]", ErrInvalidConfig, c.HighwayShare)
	}
	if c.HighwaySpeed <= 0 || c.CitySpeed <= 0 {
		return fmt.Errorf("%w: spawn speeds must be > 0", ErrInvalidConfig)
	}
	if c.AccelJitter < 0 {
		return fmt.Errorf("%w: acceleration jitter %v must be >= 0", ErrInvalidConfig, c.AccelJitter)
	}
	return nil
}

// Fleet owns the ordered set of vehicle agents. The engine goroutine is the
// only mutator; concurrent readers get the post-barrier state snapshot.
type Fleet struct {
	cfg      FleetConfig
	vehicles []*Vehicle // ascending ID, index = ID-1

	mu     sync.RWMutex
	states []VehicleState
}

// NewFleet validates the configuration and spawns the vehicles using the
// injected seeded source. Validation failures spawn nothing.
func NewFleet(cfg FleetConfig, rng *rand.Rand) (*Fleet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	f := &Fleet{cfg: cfg, vehicles: make([]*Vehicle, 0, cfg.Vehicles)}
	switch cfg.Scenario {
	case ScenarioConvoy:
		f.spawnConvoy(rng)
	default:
		f.spawnRandom(rng)
	}
	f.refreshStates()
	return f, nil
}

func (f *Fleet) newVehicle(pos, vel, acc geom.XY) {
	f.vehicles = append(f.vehicles, &Vehicle{
		id:       v2v.VehicleID(len(f.vehicles) + 1),
		pos:      pos,
		vel:      vel,
		acc:      acc,
		active:   true,
		bounds:   f.cfg.Bounds,
		policy:   f.cfg.BoundaryPolicy,
		anchor:   f.cfg.Anchor,
		interval: f.cfg.BSMInterval,
		nextBSM:  f.cfg.BSMInterval,
	})
}

func (f *Fleet) spawnSpeed(rng *rand.Rand) float64 {
	if rng.Float64() < f.cfg.HighwayShare {
		spread := 1 - highwaySpeedSpread + 2*highwaySpeedSpread*rng.Float64()
		return f.cfg.HighwaySpeed * spread
	}
	return f.cfg.CitySpeed * (citySpeedLow + (citySpeedHigh-citySpeedLow)*rng.Float64())
}

func (f *Fleet) spawnRandom(rng *rand.Rand) {
	for i := 0; i < f.cfg.Vehicles; i++ {
		pos := geom.XY{
			X: rng.Float64() * f.cfg.Bounds.Width,
			Y: rng.Float64() * f.cfg.Bounds.Height,
		}
		speed := f.spawnSpeed(rng)
		heading := rng.Float64() * 2 * math.Pi
		vel := geom.XY{X: speed * math.Cos(heading), Y: speed * math.Sin(heading)}
		acc := geom.XY{
			X: (2*rng.Float64() - 1) * f.cfg.AccelJitter,
			Y: (2*rng.Float64() - 1) * f.cfg.AccelJitter,
		}
		f.newVehicle(pos, vel, acc)
	}
}

func (f *Fleet) spawnConvoy(rng *rand.Rand) {
	lane := f.cfg.Bounds.Height / 2
	rearX := f.cfg.Bounds.Width * 0.05

	// Rear vehicle closes on the slower lead 40 m ahead.
	f.newVehicle(
		geom.XY{X: rearX, Y: lane},
		geom.XY{X: f.cfg.HighwaySpeed},
		geom.XY{},
	)
	f.newVehicle(
		geom.XY{X: rearX + 40, Y: lane},
		geom.XY{X: f.cfg.CitySpeed},
		geom.XY{},
	)

	// Remaining traffic trails at matching speed, so only the pair ahead
	// is ever on a collision course.
	for i := 2; i < f.cfg.Vehicles; i++ {
		x := rearX - 25*float64(i-1)
		if x < 0 {
			x = rng.Float64() * rearX
		}
		f.newVehicle(
			geom.XY{X: x, Y: lane},
			geom.XY{X: f.cfg.HighwaySpeed},
			geom.XY{},
		)
	}
}

// Integrate advances every active vehicle by dt. With workers > 1 the
// vehicles are split across that many goroutines; each agent touches only
// its own state, and the barrier completes before anyone reads the
// refreshed snapshot.
func (f *Fleet) Integrate(dt float64, workers int) {
	if workers > len(f.vehicles) {
		workers = len(f.vehicles)
	}
	if workers <= 1 {
		for _, v := range f.vehicles {
			v.Integrate(dt)
		}
	} else {
		var wg sync.WaitGroup
		chunk := (len(f.vehicles) + workers - 1) / workers
		for start := 0; start < len(f.vehicles); start += chunk {
			end := start + chunk
			if end > len(f.vehicles) {
				end = len(f.vehicles)
			}
			wg.Add(1)
			go func(part []*Vehicle) {
				defer wg.Done()
				for _, v := range part {
					v.Integrate(dt)
				}
			}(f.vehicles[start:end])
		}
		wg.Wait()
	}
	f.refreshStates()
}

func (f *Fleet) refreshStates() {
	states := make([]VehicleState, len(f.vehicles))
	for i, v := range f.vehicles {
		states[i] = v.State()
	}
	f.mu.Lock()
	f.states = states
	f.mu.Unlock()
}

// States returns the post-barrier snapshot, ascending by vehicle ID. The
// slice is replaced wholesale each tick and must not be mutated.
func (f *Fleet) States() []VehicleState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.states
}

// Get returns the agent with the given ID, or nil.
func (f *Fleet) Get(id v2v.VehicleID) *Vehicle {
	idx := int(id) - 1
	if idx < 0 || idx >= len(f.vehicles) {
		return nil
	}
	return f.vehicles[idx]
}

// Size returns the spawned vehicle count.
func (f *Fleet) Size() int {
	return len(f.vehicles)
}

// ActiveCount returns how many vehicles still participate.
func (f *Fleet) ActiveCount() int {
	n := 0
	for _, v := range f.vehicles {
		if v.Active() {
			n++
		}
	}
	return n
}

// Brake applies mitigation to one vehicle.
func (f *Fleet) Brake(id v2v.VehicleID, dir geom.XY, factor float64) {
	if v := f.Get(id); v != nil {
		v.BrakeAlong(dir, factor)
	}
}
