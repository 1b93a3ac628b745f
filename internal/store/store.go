// Package store persists simulation runs and their event streams.
//
// Three backends share one interface: postgres writes to a central
// database and falls back to SQLite when the server is unreachable,
// sqlite records into an in-memory database that is vacuumed to disk,
// and memory skips SQL entirely and exports one JSON file per run.
// Event methods never block the simulation loop; rows queue in memory
// and a background writer flushes them in batches.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mcb1510/v2v-simulator/internal/config"
	"github.com/mcb1510/v2v-simulator/internal/sim"
)

// Backend is the interface every run store implements. The embedded
// event methods satisfy sim.EventLog.
type Backend interface {
	sim.EventLog

	// Init prepares the backend: connects, migrates, starts the writer.
	Init() error
	// BeginRun opens a run; queued events attach to it when flushed.
	BeginRun(info RunInfo) error
	// CloseRun flushes pending events and seals the run with its final
	// statistics snapshot.
	CloseRun(summary sim.Snapshot) error
	// Healthy reports whether the backend can currently accept writes.
	Healthy() bool
	// Close stops the writer and releases all resources.
	Close() error
}

// RunInfo identifies a simulation run.
type RunInfo struct {
	ID        uuid.UUID
	Seed      int64
	Vehicles  int
	Scenario  string
	Speed     float64
	StartTime time.Time
}

// NewBackend builds the backend named by cfg.Backend. The simTime
// callback stamps the simulated clock on every event row; nil leaves
// the stamp at zero.
func NewBackend(cfg config.StoreConfig, log zerolog.Logger, simTime func() float64) (Backend, error) {
	switch cfg.Backend {
	case "postgres":
		return NewGormBackend(cfg, log, simTime, true), nil
	case "sqlite":
		return NewGormBackend(cfg, log, simTime, false), nil
	case "memory":
		return NewMemoryBackend(cfg, log, simTime), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", sim.ErrInvalidConfig, cfg.Backend)
	}
}
