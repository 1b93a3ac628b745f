package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb1510/v2v-simulator/internal/sim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v2v_simulator.cfg.json"), []byte(content), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sim": { "vehicles": 25, "speed": 2.0 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 25, viper.GetInt("sim.vehicles"))
	assert.Equal(t, 2.0, viper.GetFloat64("sim.speed"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, 10, viper.GetInt("sim.vehicles"))
	assert.Equal(t, 30.0, viper.GetFloat64("sim.duration"))
	assert.Equal(t, 1.0, viper.GetFloat64("sim.speed"))
	assert.Equal(t, "random", viper.GetString("sim.scenario"))
	assert.Equal(t, "bounce", viper.GetString("sim.boundaryPolicy"))
	assert.Equal(t, 0.1, viper.GetFloat64("sim.bsmInterval"))
	assert.Equal(t, 25, viper.GetInt("sim.messageLog"))
	assert.Equal(t, 5.0, viper.GetFloat64("risk.horizon"))
	assert.Equal(t, 2.25, viper.GetFloat64("risk.vehicleRadius"))
	assert.Equal(t, 0.5, viper.GetFloat64("risk.safetyMargin"))
	assert.Equal(t, 0.5, viper.GetFloat64("risk.decelFactor"))
	assert.Equal(t, "sqlite", viper.GetString("store.backend"))
	assert.Equal(t, "./runs", viper.GetString("store.outputDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "v2v", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "v2v-metrics", viper.GetString("influx.org"))
	assert.Equal(t, "v2v_stats", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, true, viper.GetBool("display.enabled"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSimConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetSimConfig()
	assert.Equal(t, 10, cfg.Vehicles)
	assert.Equal(t, 30.0, cfg.Duration)
	assert.Equal(t, 1.0, cfg.Speed)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, int64(0), cfg.Seed)
	assert.Equal(t, "random", cfg.Scenario)
	assert.Equal(t, 1000.0, cfg.AreaWidth)
	assert.Equal(t, 700.0, cfg.AreaHeight)
	assert.Equal(t, 0.7, cfg.HighwayShare)
	assert.Equal(t, 27.8, cfg.HighwaySpeed)
	assert.Equal(t, 11.1, cfg.CitySpeed)
	assert.Equal(t, 0.1, cfg.BSMInterval)
	assert.Equal(t, 25, cfg.MessageLog)
}

func TestGetSimConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"sim": {
			"vehicles": 50,
			"duration": 120.5,
			"tickInterval": "50ms",
			"seed": 1234,
			"scenario": "convoy",
			"boundaryPolicy": "despawn"
		}
	}`)
	require.NoError(t, Load(dir))

	cfg := GetSimConfig()
	assert.Equal(t, 50, cfg.Vehicles)
	assert.Equal(t, 120.5, cfg.Duration)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, int64(1234), cfg.Seed)
	assert.Equal(t, "convoy", cfg.Scenario)
	assert.Equal(t, "despawn", cfg.BoundaryPolicy)
}

func TestGetRiskConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"risk": { "horizon": 8.0, "vehicleRadius": 3.0, "safetyMargin": 1.0, "decelFactor": 0.25 }
	}`)
	require.NoError(t, Load(dir))

	cfg := GetRiskConfig()
	assert.Equal(t, 8.0, cfg.Horizon)
	assert.Equal(t, 3.0, cfg.VehicleRadius)
	assert.Equal(t, 1.0, cfg.SafetyMargin)
	assert.Equal(t, 0.25, cfg.DecelFactor)
}

func TestGetStoreConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStoreConfig()
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "./runs", cfg.OutputDir)
	assert.Equal(t, time.Second, cfg.FlushInterval)
	assert.Equal(t, time.Minute, cfg.DumpInterval)
	assert.Equal(t, 500, cfg.BatchSize)
}

func TestGetStoreConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"store": {
			"backend": "postgres",
			"outputDir": "/tmp/out",
			"flushInterval": "250ms",
			"dumpInterval": "10m",
			"batchSize": 100
		}
	}`)
	require.NoError(t, Load(dir))

	cfg := GetStoreConfig()
	assert.Equal(t, "postgres", cfg.Backend)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 10*time.Minute, cfg.DumpInterval)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestGetInfluxConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"influx": {
			"enabled": true,
			"host": "influx.internal",
			"port": "8087",
			"protocol": "https",
			"token": "secret",
			"org": "fleet-ops",
			"bucket": "trials"
		}
	}`)
	require.NoError(t, Load(dir))

	cfg := GetInfluxConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "influx.internal", cfg.Host)
	assert.Equal(t, "8087", cfg.Port)
	assert.Equal(t, "https", cfg.Protocol)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "fleet-ops", cfg.Org)
	assert.Equal(t, "trials", cfg.Bucket)
}

func TestGetGeoConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetGeoConfig()
	assert.Equal(t, -83.0458, cfg.Longitude)
	assert.Equal(t, 42.3314, cfg.Latitude)
}

func TestGetDisplayConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetDisplayConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshInterval)
	assert.Equal(t, 10, cfg.MessageRows)
}

func TestGetMonitorConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))
	assert.Equal(t, 5*time.Second, GetMonitorConfig().Interval)
}

func TestValidate_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	SetDefaults()
	assert.NoError(t, Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]struct {
		key   string
		value any
	}{
		"unknown backend":    {"store.backend", "etcd"},
		"zero batch":         {"store.batchSize", 0},
		"zero flush":         {"store.flushInterval", "0s"},
		"zero dump":          {"store.dumpInterval", "0s"},
		"zero message log":   {"sim.messageLog", 0},
		"zero refresh":       {"display.refreshInterval", "0s"},
		"bad monitor period": {"monitor.interval", "0s"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			SetDefaults()
			viper.Set(tc.key, tc.value)

			err := Validate()
			assert.ErrorIs(t, err, sim.ErrInvalidConfig)
		})
	}
}
