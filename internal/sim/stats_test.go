package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

func TestAggregator_CountsByKind(t *testing.T) {
	agg := NewAggregator()

	for i := 0; i < 5; i++ {
		agg.OnMessage(v2v.BasicSafetyMessage{Source: 1})
	}
	agg.OnMessage(v2v.CollisionWarningMessage{Source: 1, Target: 2})

	snap := agg.OnTick(1.0, 10, 1.0)
	assert.Equal(t, uint64(5), snap.BSMSent)
	assert.Equal(t, uint64(1), snap.CWMSent)
	assert.Equal(t, 10, snap.VehicleCount)
}

func TestAggregator_CountersNeverDecrease(t *testing.T) {
	agg := NewAggregator()

	var prev Snapshot
	for i := 1; i <= 20; i++ {
		if i%3 == 0 {
			agg.OnMessage(v2v.BasicSafetyMessage{Source: 1})
		}
		if i%7 == 0 {
			agg.OnMessage(v2v.CollisionWarningMessage{Source: 1, Target: 2})
			agg.OnCollisionPrevented()
		}
		snap := agg.OnTick(float64(i)*0.1, 10, 1.0)
		assert.GreaterOrEqual(t, snap.BSMSent, prev.BSMSent)
		assert.GreaterOrEqual(t, snap.CWMSent, prev.CWMSent)
		assert.GreaterOrEqual(t, snap.CollisionsPrevented, prev.CollisionsPrevented)
		assert.Equal(t, uint64(i), snap.Tick)
		prev = snap
	}
}

func TestAggregator_BSMRate(t *testing.T) {
	agg := NewAggregator()

	for i := 0; i < 40; i++ {
		agg.OnMessage(v2v.BasicSafetyMessage{Source: 1})
	}

	snap := agg.OnTick(2.0, 4, 1.0)
	assert.InDelta(t, 20.0, snap.BSMRate, 1e-9)
}

func TestAggregator_ZeroSimTimeHasNoRate(t *testing.T) {
	agg := NewAggregator()
	agg.OnMessage(v2v.BasicSafetyMessage{Source: 1})

	snap := agg.OnTick(0, 1, 0)
	assert.Zero(t, snap.BSMRate)
}

func TestAggregator_CurrentReturnsLastSnapshot(t *testing.T) {
	agg := NewAggregator()
	require.Zero(t, agg.Current().Tick)

	agg.OnMessage(v2v.BasicSafetyMessage{Source: 1})
	snap := agg.OnTick(0.5, 3, 2.0)

	cur := agg.Current()
	assert.Equal(t, snap.Tick, cur.Tick)
	assert.Equal(t, snap.BSMSent, cur.BSMSent)
	assert.Equal(t, 2.0, cur.SpeedMultiplier)
	assert.Equal(t, 0.5, cur.SimTime)
}
