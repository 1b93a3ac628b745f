// Package sim contains the simulation core: clock, vehicle agents, fleet,
// collision risk analysis, statistics, and the tick engine.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Clock decouples simulated time from wall time. Simulated time only moves
// when Tick is called and never decreases.
type Clock struct {
	mu         sync.RWMutex
	now        float64
	multiplier float64
}

// NewClock creates a clock with the given speed multiplier. 0 pauses the
// simulated world, 1 tracks wall time, 2 runs twice as fast.
func NewClock(multiplier float64) (*Clock, error) {
	c := &Clock{}
	if err := c.SetMultiplier(multiplier); err != nil {
		return nil, err
	}
	return c, nil
}

// Tick advances simulated time by the wall delta scaled with the current
// multiplier and returns the simulated delta in seconds. Negative wall
// deltas are treated as zero.
func (c *Clock) Tick(wall time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wall < 0 {
		wall = 0
	}
	delta := wall.Seconds() * c.multiplier
	c.now += delta
	return delta
}

// Now returns the current simulated time in seconds.
func (c *Clock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Multiplier returns the current speed multiplier.
func (c *Clock) Multiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multiplier
}

// SetMultiplier changes the speed ratio from the next tick on. Negative or
// non-finite ratios are rejected and the current ratio is kept.
func (c *Clock) SetMultiplier(r float64) error {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: speed multiplier %v must be >= 0", ErrInvalidConfig, r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiplier = r
	return nil
}

// Ratio renders the speed relative to wall time, e.g. "2x" or "0.5x".
func (c *Clock) Ratio() string {
	return fmt.Sprintf("%gx", c.Multiplier())
}
