// Package config loads the simulator configuration from a JSON file with
// viper, layering defaults underneath. Typed getters expose one view per
// subsystem; range checks that no constructor covers live in Validate.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mcb1510/v2v-simulator/internal/sim"
)

// SimConfig holds the simulation loop and fleet settings.
type SimConfig struct {
	Vehicles       int
	Duration       float64
	Speed          float64
	TickInterval   time.Duration
	Seed           int64
	Scenario       string
	BoundaryPolicy string
	Workers        int

	AreaWidth  float64
	AreaHeight float64

	HighwayShare float64
	HighwaySpeed float64
	CitySpeed    float64
	AccelJitter  float64

	BSMInterval float64
	MessageLog  int
}

// RiskConfig holds the collision predictor settings.
type RiskConfig struct {
	Horizon       float64
	VehicleRadius float64
	SafetyMargin  float64
	DecelFactor   float64
}

// GeoConfig anchors the planar simulation area on the globe.
type GeoConfig struct {
	Longitude float64
	Latitude  float64
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Backend       string
	OutputDir     string
	FlushInterval time.Duration
	DumpInterval  time.Duration
	BatchSize     int
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// GraylogConfig holds the GELF forwarding settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// DisplayConfig holds the live terminal view settings.
type DisplayConfig struct {
	Enabled         bool
	RefreshInterval time.Duration
	MessageRows     int
}

// MonitorConfig paces the periodic health report.
type MonitorConfig struct {
	Interval time.Duration
}

// Load reads configuration from the JSON file in configDir and sets
// default values.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName("v2v_simulator.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	return nil
}

// SetDefaults registers every default without reading a file, for runs
// without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.vehicles", 10)
	viper.SetDefault("sim.duration", 30.0)
	viper.SetDefault("sim.speed", 1.0)
	viper.SetDefault("sim.tickInterval", "100ms")
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.scenario", "random")
	viper.SetDefault("sim.boundaryPolicy", "bounce")
	viper.SetDefault("sim.workers", 0)
	viper.SetDefault("sim.areaWidth", 1000.0)
	viper.SetDefault("sim.areaHeight", 700.0)

	viper.SetDefault("sim.highwayShare", 0.7)
	viper.SetDefault("sim.highwaySpeed", 27.8)
	viper.SetDefault("sim.citySpeed", 11.1)
	viper.SetDefault("sim.accelJitter", 0.5)

	viper.SetDefault("sim.bsmInterval", 0.1)
	viper.SetDefault("sim.messageLog", 25)

	viper.SetDefault("risk.horizon", 5.0)
	viper.SetDefault("risk.vehicleRadius", 2.25)
	viper.SetDefault("risk.safetyMargin", 0.5)
	viper.SetDefault("risk.decelFactor", 0.5)

	viper.SetDefault("geo.longitude", -83.0458)
	viper.SetDefault("geo.latitude", 42.3314)

	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.outputDir", "./runs")
	viper.SetDefault("store.flushInterval", "1s")
	viper.SetDefault("store.dumpInterval", "1m")
	viper.SetDefault("store.batchSize", 500)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "v2v")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "v2v-metrics")
	viper.SetDefault("influx.bucket", "v2v_stats")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("display.enabled", true)
	viper.SetDefault("display.refreshInterval", "500ms")
	viper.SetDefault("display.messageRows", 10)

	viper.SetDefault("monitor.interval", "5s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		Vehicles:       viper.GetInt("sim.vehicles"),
		Duration:       viper.GetFloat64("sim.duration"),
		Speed:          viper.GetFloat64("sim.speed"),
		TickInterval:   viper.GetDuration("sim.tickInterval"),
		Seed:           viper.GetInt64("sim.seed"),
		Scenario:       viper.GetString("sim.scenario"),
		BoundaryPolicy: viper.GetString("sim.boundaryPolicy"),
		Workers:        viper.GetInt("sim.workers"),
		AreaWidth:      viper.GetFloat64("sim.areaWidth"),
		AreaHeight:     viper.GetFloat64("sim.areaHeight"),
		HighwayShare:   viper.GetFloat64("sim.highwayShare"),
		HighwaySpeed:   viper.GetFloat64("sim.highwaySpeed"),
		CitySpeed:      viper.GetFloat64("sim.citySpeed"),
		AccelJitter:    viper.GetFloat64("sim.accelJitter"),
		BSMInterval:    viper.GetFloat64("sim.bsmInterval"),
		MessageLog:     viper.GetInt("sim.messageLog"),
	}
}

// GetRiskConfig returns the collision predictor settings.
func GetRiskConfig() RiskConfig {
	return RiskConfig{
		Horizon:       viper.GetFloat64("risk.horizon"),
		VehicleRadius: viper.GetFloat64("risk.vehicleRadius"),
		SafetyMargin:  viper.GetFloat64("risk.safetyMargin"),
		DecelFactor:   viper.GetFloat64("risk.decelFactor"),
	}
}

// GetGeoConfig returns the geographic anchor.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		Longitude: viper.GetFloat64("geo.longitude"),
		Latitude:  viper.GetFloat64("geo.latitude"),
	}
}

// GetStoreConfig returns the persistence settings.
func GetStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:       viper.GetString("store.backend"),
		OutputDir:     viper.GetString("store.outputDir"),
		FlushInterval: viper.GetDuration("store.flushInterval"),
		DumpInterval:  viper.GetDuration("store.dumpInterval"),
		BatchSize:     viper.GetInt("store.batchSize"),
	}
}

// GetInfluxConfig returns the metrics sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF forwarding settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetDisplayConfig returns the live view settings.
func GetDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Enabled:         viper.GetBool("display.enabled"),
		RefreshInterval: viper.GetDuration("display.refreshInterval"),
		MessageRows:     viper.GetInt("display.messageRows"),
	}
}

// GetMonitorConfig returns the health report settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: viper.GetDuration("monitor.interval"),
	}
}

// Validate covers the ranges no domain constructor checks. The simulation
// constructors validate their own inputs when the services are built.
func Validate() error {
	switch b := viper.GetString("store.backend"); b {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: unknown store backend %q", sim.ErrInvalidConfig, b)
	}
	if n := viper.GetInt("store.batchSize"); n < 1 {
		return fmt.Errorf("%w: store batch size %d must be >= 1", sim.ErrInvalidConfig, n)
	}
	if d := viper.GetDuration("store.flushInterval"); d <= 0 {
		return fmt.Errorf("%w: store flush interval %v must be > 0", sim.ErrInvalidConfig, d)
	}
	if d := viper.GetDuration("store.dumpInterval"); d <= 0 {
		return fmt.Errorf("%w: store dump interval %v must be > 0", sim.ErrInvalidConfig, d)
	}
	if n := viper.GetInt("sim.messageLog"); n < 1 {
		return fmt.Errorf("%w: message log capacity %d must be >= 1", sim.ErrInvalidConfig, n)
	}
	if d := viper.GetDuration("display.refreshInterval"); d <= 0 {
		return fmt.Errorf("%w: display refresh interval %v must be > 0", sim.ErrInvalidConfig, d)
	}
	if d := viper.GetDuration("monitor.interval"); d <= 0 {
		return fmt.Errorf("%w: monitor interval %v must be > 0", sim.ErrInvalidConfig, d)
	}
	return nil
}
