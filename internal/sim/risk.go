package sim

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mcb1510/v2v-simulator/internal/geo"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// Closing components below this are treated as parallel motion.
const closingEpsilon = 1e-9

// RiskConfig tunes the collision predictor.
type RiskConfig struct {
	Horizon       float64 // look-ahead window, simulation seconds
	VehicleRadius float64 // bounding radius per vehicle, meters
	SafetyMargin  float64 // extra separation on top of the radii, meters
	DecelFactor   float64 // closing-speed multiplier applied as mitigation
}

func (c RiskConfig) validate() error {
	if c.Horizon <= 0 || math.IsNaN(c.Horizon) {
		return fmt.Errorf("%w: risk horizon %v must be > 0", ErrInvalidConfig, c.Horizon)
	}
	if c.VehicleRadius <= 0 {
		return fmt.Errorf("%w: vehicle radius %v must be > 0", ErrInvalidConfig, c.VehicleRadius)
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("%w: safety margin %v must be >= 0", ErrInvalidConfig, c.SafetyMargin)
	}
	if c.DecelFactor < 0 || c.DecelFactor >= 1 {
		return fmt.Errorf("%w: deceleration factor %v outside [0, 1)", ErrInvalidConfig, c.DecelFactor)
	}
	return nil
}

// Threshold returns the separation below which a predicted approach counts
// as a collision: both bounding radii plus the safety margin.
func (c RiskConfig) Threshold() float64 {
	return 2*c.VehicleRadius + c.SafetyMargin
}

// Assessment is one at-risk pair for the current tick.
type Assessment struct {
	Sender        v2v.VehicleID // closing vehicle, receives the mitigation
	Target        v2v.VehicleID
	TimeToClosest float64
	MinSeparation float64
	BrakeDir      geom.XY // unit vector from sender toward target
	NewEpisode    bool
}

type pairKey struct {
	low, high v2v.VehicleID
}

// Analyzer predicts near-future conflicts under a constant-velocity
// assumption. One analyzer instance belongs to one engine and is not safe
// for concurrent use.
type Analyzer struct {
	cfg      RiskConfig
	events   EventLog
	episodes map[pairKey]bool
}

// NewAnalyzer validates the configuration and builds an analyzer.
func NewAnalyzer(cfg RiskConfig, events EventLog) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Analyzer{cfg: cfg, events: events, episodes: make(map[pairKey]bool)}, nil
}

// Factor returns the configured mitigation multiplier.
func (a *Analyzer) Factor() float64 { return a.cfg.DecelFactor }

// Evaluate examines every unordered pair of active vehicles and returns at
// most one assessment per pair, in ascending (low, high) order. Pairs with
// corrupt state are skipped with a WARNING; the remaining pairs still get
// evaluated.
func (a *Analyzer) Evaluate(states []VehicleState, now float64) []Assessment {
	current := make(map[pairKey]bool)
	var out []Assessment

	for i := 0; i < len(states); i++ {
		if !states[i].Active {
			continue
		}
		for j := i + 1; j < len(states); j++ {
			if !states[j].Active {
				continue
			}
			as, err := a.assessPair(states[i], states[j])
			if err != nil {
				a.events.Warning("risk", "skipping pair", map[string]any{
					"pair":  states[i].ID.String() + "/" + states[j].ID.String(),
					"time":  now,
					"error": err.Error(),
				})
				continue
			}
			if as == nil {
				continue
			}
			key := pairKey{low: states[i].ID, high: states[j].ID}
			current[key] = true
			as.NewEpisode = !a.episodes[key]
			out = append(out, *as)
		}
	}

	// Pairs absent this tick fell out of risk, which closes their episode.
	a.episodes = current
	return out
}

// assessPair returns nil when the pair is not at risk, an assessment when
// it is, and an error for transient numeric anomalies.
func (a *Analyzer) assessPair(si, sj VehicleState) (*Assessment, error) {
	if !geo.IsFinite(si.Position) || !geo.IsFinite(si.Velocity) ||
		!geo.IsFinite(sj.Position) || !geo.IsFinite(sj.Velocity) {
		return nil, fmt.Errorf("%w: non-finite vehicle state", ErrTransient)
	}

	relPos := sj.Position.Sub(si.Position)
	relVel := sj.Velocity.Sub(si.Velocity)

	// Approach rate is positive only when the distance is shrinking.
	approach := -relPos.Dot(relVel)
	if approach <= closingEpsilon {
		return nil, nil
	}
	speedSq := relVel.Dot(relVel)
	if speedSq <= closingEpsilon {
		return nil, nil
	}

	tStar := approach / speedSq
	minSep := relPos.Add(relVel.Scale(tStar)).Length()
	if math.IsNaN(tStar) || math.IsInf(tStar, 0) || math.IsNaN(minSep) {
		return nil, fmt.Errorf("%w: degenerate closest approach", ErrTransient)
	}
	if tStar > a.cfg.Horizon || minSep >= a.cfg.Threshold() {
		return nil, nil
	}

	// The vehicle with the larger closing component along the line of
	// sight warns the other and brakes.
	los := geo.UnitToward(si.Position, sj.Position)
	closingI := si.Velocity.Dot(los)
	closingJ := sj.Velocity.Dot(los.Scale(-1))

	as := &Assessment{TimeToClosest: tStar, MinSeparation: minSep}
	if closingI >= closingJ {
		as.Sender, as.Target = si.ID, sj.ID
		as.BrakeDir = los
	} else {
		as.Sender, as.Target = sj.ID, si.ID
		as.BrakeDir = los.Scale(-1)
	}
	return as, nil
}
