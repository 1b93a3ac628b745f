package sim

import (
	"fmt"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mcb1510/v2v-simulator/internal/geo"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// Vehicle count limits enforced before a run starts.
const (
	MinVehicles = 1
	MaxVehicles = 100
)

// BoundaryPolicy decides what happens when a vehicle reaches the edge of
// the simulation area.
type BoundaryPolicy uint8

const (
	// BoundaryBounce clamps the position and reflects the velocity
	// component on the violated axis.
	BoundaryBounce BoundaryPolicy = iota
	// BoundaryDespawn deactivates the vehicle instead.
	BoundaryDespawn
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryBounce:
		return "bounce"
	case BoundaryDespawn:
		return "despawn"
	default:
		return fmt.Sprintf("BoundaryPolicy(%d)", uint8(p))
	}
}

// ParseBoundaryPolicy maps the configuration value to a policy.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "", "bounce":
		return BoundaryBounce, nil
	case "despawn":
		return BoundaryDespawn, nil
	default:
		return BoundaryBounce, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidConfig, s)
	}
}

// VehicleState is the immutable per-tick view of one vehicle, shared with
// the analyzer, the display, and outgoing broadcasts.
type VehicleState struct {
	ID           v2v.VehicleID
	Position     geom.XY
	Velocity     geom.XY
	Acceleration geom.XY
	Heading      float64
	Speed        float64
	Active       bool
}

// Vehicle is a simulated agent with planar kinematic state. Only the engine
// goroutine mutates a vehicle; everyone else reads the fleet's state
// snapshot.
type Vehicle struct {
	id     v2v.VehicleID
	pos    geom.XY
	vel    geom.XY
	acc    geom.XY
	active bool

	bounds geo.Bounds
	policy BoundaryPolicy
	anchor geo.Anchor

	// Broadcast schedule is anchored to multiples of the interval so the
	// emission count stays within one of duration/interval for any tick
	// size.
	interval float64
	nextBSM  float64
}

// ID returns the stable vehicle identifier.
func (v *Vehicle) ID() v2v.VehicleID { return v.id }

// Active reports whether the vehicle still participates in the simulation.
func (v *Vehicle) Active() bool { return v.active }

// State captures the current kinematic state.
func (v *Vehicle) State() VehicleState {
	return VehicleState{
		ID:           v.id,
		Position:     v.pos,
		Velocity:     v.vel,
		Acceleration: v.acc,
		Heading:      geo.Heading(v.vel),
		Speed:        v.vel.Length(),
		Active:       v.active,
	}
}

// Integrate advances the vehicle by dt seconds of simulated time using
// semi-implicit Euler: velocity first, then position with the updated
// velocity. Positions that leave the bounds are clamped to the boundary and
// the boundary policy is applied.
func (v *Vehicle) Integrate(dt float64) {
	if !v.active || dt == 0 {
		return
	}
	v.vel = v.vel.Add(v.acc.Scale(dt))
	v.pos = v.pos.Add(v.vel.Scale(dt))
	if v.bounds.Contains(v.pos) {
		return
	}

	if v.pos.X < 0 {
		v.pos.X = 0
		v.vel.X = -v.vel.X
	} else if v.pos.X > v.bounds.Width {
		v.pos.X = v.bounds.Width
		v.vel.X = -v.vel.X
	}
	if v.pos.Y < 0 {
		v.pos.Y = 0
		v.vel.Y = -v.vel.Y
	} else if v.pos.Y > v.bounds.Height {
		v.pos.Y = v.bounds.Height
		v.vel.Y = -v.vel.Y
	}

	if v.policy == BoundaryDespawn {
		v.active = false
	}
}

// ShouldBroadcast reports whether the broadcast interval has elapsed since
// the last BSM.
func (v *Vehicle) ShouldBroadcast(now float64) bool {
	return v.active && now >= v.nextBSM
}

// Broadcast builds the BSM for the current state and advances the schedule.
// At most one BSM is emitted per tick; a late schedule catches up instead
// of bursting.
func (v *Vehicle) Broadcast(now float64) v2v.BasicSafetyMessage {
	v.nextBSM += v.interval
	for v.nextBSM <= now {
		v.nextBSM += v.interval
	}

	lon, lat := v.anchor.Geographic(v.pos)
	return v2v.BasicSafetyMessage{
		ID:           uuid.New(),
		Source:       v.id,
		SimTime:      now,
		Position:     v.pos,
		Velocity:     v.vel,
		Acceleration: v.acc,
		Heading:      geo.Heading(v.vel),
		Speed:        v.vel.Length(),
		Longitude:    lon,
		Latitude:     lat,
	}
}

// BrakeAlong scales the velocity component along dir (a unit vector toward
// the at-risk peer) by factor, leaving the perpendicular component alone.
// Components pointing away from the peer are never touched.
func (v *Vehicle) BrakeAlong(dir geom.XY, factor float64) {
	if !v.active {
		return
	}
	along := v.vel.Dot(dir)
	if along <= 0 {
		return
	}
	reduction := along * (1 - factor)
	v.vel = v.vel.Sub(dir.Scale(reduction))
}
