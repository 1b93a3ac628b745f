package export

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb1510/v2v-simulator/internal/sim"
)

var _ sim.SnapshotSink = (*Collector)(nil)

func testResults() Results {
	return Results{
		RunID:     "8d5a1c90-7f6a-4c21-9a3e-000000000000",
		Scenario:  "convoy",
		Seed:      42,
		Vehicles:  2,
		Speed:     2.0,
		StartTime: time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 12, 21, 39, 6, 0, time.UTC),
		Stats: sim.Snapshot{
			Tick:                300,
			SimTime:             30.0,
			BSMSent:             592,
			CWMSent:             1,
			CollisionsPrevented: 1,
		},
	}
}

func TestCollector_KeepsLastSnapshot(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.Last())

	c.OnSnapshot(sim.Snapshot{Tick: 1, SimTime: 0.1})
	c.OnSnapshot(sim.Snapshot{Tick: 2, SimTime: 0.2})
	assert.Equal(t, uint64(2), c.Last().Tick)
	assert.Equal(t, 0.2, c.Last().SimTime)
}

func TestWrite_PlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	res := testResults()
	require.NoError(t, Write(path, res))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Results
	require.NoError(t, json.Unmarshal(blob, &got))
	assert.Equal(t, res, got)
}

func TestWrite_GzipBySuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json.gz")
	res := testResults()
	require.NoError(t, Write(path, res))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	blob, err := io.ReadAll(zr)
	require.NoError(t, err)

	var got Results
	require.NoError(t, json.Unmarshal(blob, &got))
	assert.Equal(t, res, got)
}

func TestWrite_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "results.json")
	require.NoError(t, Write(path, testResults()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
