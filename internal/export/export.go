// Package export writes the end-of-run results file: run identity plus
// the final statistics snapshot, as indented JSON. A path ending in
// .gz is gzip-compressed.
package export

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mcb1510/v2v-simulator/internal/sim"
)

// Results is the root JSON structure of the results file.
type Results struct {
	RunID     string       `json:"runId"`
	Scenario  string       `json:"scenario"`
	Seed      int64        `json:"seed"`
	Vehicles  int          `json:"vehicles"`
	Speed     float64      `json:"speed"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
	Stats     sim.Snapshot `json:"stats"`
}

// Collector retains the most recent snapshot so the final state is
// available even when a run is cancelled mid-tick.
type Collector struct {
	mu   sync.Mutex
	last sim.Snapshot
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// OnSnapshot implements sim.SnapshotSink.
func (c *Collector) OnSnapshot(s sim.Snapshot) {
	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
}

// Last returns the most recent snapshot, zero before the first tick.
func (c *Collector) Last() sim.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Write writes the results file at path, creating parent directories.
func Write(path string, res Results) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		if err := encode(zw, res); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("closing gzip writer: %w", err)
		}
		return nil
	}

	return encode(f, res)
}

func encode(w io.Writer, res Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}
