// Command v2v-simulator runs a vehicle-to-vehicle safety messaging
// simulation: a fleet of simulated vehicles broadcasts Basic Safety
// Messages over a shared bus while a risk analyzer predicts collisions
// and issues warnings. Results are persisted to the configured event
// store and optionally exported as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mcb1510/v2v-simulator/internal/bus"
	"github.com/mcb1510/v2v-simulator/internal/config"
	"github.com/mcb1510/v2v-simulator/internal/display"
	"github.com/mcb1510/v2v-simulator/internal/export"
	"github.com/mcb1510/v2v-simulator/internal/geo"
	"github.com/mcb1510/v2v-simulator/internal/logging"
	"github.com/mcb1510/v2v-simulator/internal/metrics"
	"github.com/mcb1510/v2v-simulator/internal/monitor"
	"github.com/mcb1510/v2v-simulator/internal/sim"
	"github.com/mcb1510/v2v-simulator/internal/store"
)

const appName = "v2v-simulator"

// Fleets beyond this size tend to overrun the tick interval on typical
// hardware; the run proceeds with a warning.
const realtimeVehicleLimit = 50

var (
	SessionStartTime = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.Manager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// Dynamic run state read by the logging callbacks.
	runID uuid.UUID
	clock *sim.Clock
)

func main() {
	configDir := flag.String("config", ".", "directory containing v2v_simulator.cfg.json")
	duration := flag.Float64("duration", 30, "simulation seconds to run")
	vehicles := flag.Int("vehicles", 10, "vehicle count, 1 to 100")
	speed := flag.Float64("speed", 1.0, "simulation speed multiplier")
	seed := flag.Int64("seed", 0, "deterministic seed, 0 derives one from the clock")
	output := flag.String("output", "", "results JSON path, empty skips the export")
	maxMessages := flag.Int("max-messages", 25, "recent message log capacity")
	scenario := flag.String("scenario", "random", "spawn scenario: random or convoy")
	storeBackend := flag.String("store", "sqlite", "event store backend: sqlite, postgres or memory")
	headless := flag.Bool("headless", false, "disable the live terminal display")
	flag.Parse()

	// Console logging until the session log file exists.
	SlogManager = logging.NewManager()
	if err := SlogManager.Setup(nil, viper.GetString("logLevel"), ""); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "dir", *configDir, "error", err)
	} else {
		Logger.Info("Loaded config", "dir", *configDir)
	}

	// Flags given on the command line win over file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "duration":
			viper.Set("sim.duration", *duration)
		case "vehicles":
			viper.Set("sim.vehicles", *vehicles)
		case "speed":
			viper.Set("sim.speed", *speed)
		case "seed":
			viper.Set("sim.seed", *seed)
		case "max-messages":
			viper.Set("sim.messageLog", *maxMessages)
		case "scenario":
			viper.Set("sim.scenario", *scenario)
		case "store":
			viper.Set("store.backend", *storeBackend)
		}
	})

	if err := config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if err := run(*output, *headless); err != nil {
		Logger.Error("Run failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run wires the simulation services together, drives the engine until the
// configured duration or a signal, and tears everything down in order.
func run(outputPath string, headless bool) error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, SessionStartTime)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	graylogAddr := ""
	if gl := config.GetGraylogConfig(); gl.Enabled {
		graylogAddr = gl.Address
	}
	level := config.GetString("logLevel")
	if err := SlogManager.Setup(logFile, level, graylogAddr); err != nil {
		// Graylog being down should not kill the run.
		if err2 := SlogManager.Setup(logFile, level, ""); err2 != nil {
			return err2
		}
		Logger = SlogManager.Logger()
		Logger.Warn("Graylog unavailable, continuing without it", "address", graylogAddr, "error", err)
	} else {
		Logger = SlogManager.Logger()
	}
	Logger.Info("Begin logging in logs directory", "path", logPath)

	// Dynamic state callbacks stamp run context on every record.
	SlogManager.GetRunID = func() string {
		if runID == uuid.Nil {
			return ""
		}
		return shortID(runID)
	}
	SlogManager.GetSimTime = func() float64 {
		if clock == nil {
			return 0
		}
		return clock.Now()
	}
	SlogManager.GetSpeed = func() string {
		if clock == nil {
			return ""
		}
		return clock.Ratio()
	}

	zlog := zerolog.New(logFile).With().Timestamp().Logger()
	storeLog := zlog.With().Str("component", "store").Logger()
	metricsLog := zlog.With().Str("component", "metrics").Logger()
	busLog := zlog.With().Str("component", "bus").Logger()

	simCfg := config.GetSimConfig()
	riskCfg := config.GetRiskConfig()
	geoCfg := config.GetGeoConfig()
	storeCfg := config.GetStoreConfig()
	displayCfg := config.GetDisplayConfig()

	seed := simCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		Logger.Info("Seed derived from clock", "seed", seed)
	}
	rng := rand.New(rand.NewSource(seed))

	scenario, err := sim.ParseScenario(simCfg.Scenario)
	if err != nil {
		return err
	}
	policy, err := sim.ParseBoundaryPolicy(simCfg.BoundaryPolicy)
	if err != nil {
		return err
	}
	anchor, err := geo.NewAnchor(geoCfg.Longitude, geoCfg.Latitude)
	if err != nil {
		return err
	}
	clock, err = sim.NewClock(simCfg.Speed)
	if err != nil {
		return err
	}

	fleet, err := sim.NewFleet(sim.FleetConfig{
		Vehicles:       simCfg.Vehicles,
		Bounds:         geo.Bounds{Width: simCfg.AreaWidth, Height: simCfg.AreaHeight},
		Anchor:         anchor,
		BSMInterval:    simCfg.BSMInterval,
		BoundaryPolicy: policy,
		Scenario:       scenario,
		HighwayShare:   simCfg.HighwayShare,
		HighwaySpeed:   simCfg.HighwaySpeed,
		CitySpeed:      simCfg.CitySpeed,
		AccelJitter:    simCfg.AccelJitter,
	}, rng)
	if err != nil {
		return err
	}

	backend, err := store.NewBackend(storeCfg, storeLog, func() float64 { return clock.Now() })
	if err != nil {
		return err
	}

	analyzer, err := sim.NewAnalyzer(sim.RiskConfig{
		Horizon:       riskCfg.Horizon,
		VehicleRadius: riskCfg.VehicleRadius,
		SafetyMargin:  riskCfg.SafetyMargin,
		DecelFactor:   riskCfg.DecelFactor,
	}, backend)
	if err != nil {
		return err
	}

	msgBus, err := bus.New(
		bus.WithLogger(logging.NewBusLogger(busLog)),
		bus.WithLogCapacity(simCfg.MessageLog),
	)
	if err != nil {
		return err
	}

	stats := sim.NewAggregator()
	msgBus.Subscribe(stats)

	collector := export.NewCollector()
	sinks := []sim.SnapshotSink{collector}

	runID = uuid.New()
	Logger.Info("Run opened",
		"vehicles", simCfg.Vehicles,
		"scenario", scenario.String(),
		"seed", seed,
		"store", storeCfg.Backend,
	)

	// Configuration is sound; side effects start here.
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing event store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Closing event store failed", "error", err)
		}
	}()

	if err := backend.BeginRun(store.RunInfo{
		ID:        runID,
		Seed:      seed,
		Vehicles:  simCfg.Vehicles,
		Scenario:  scenario.String(),
		Speed:     simCfg.Speed,
		StartTime: SessionStartTime,
	}); err != nil {
		return fmt.Errorf("opening run record: %w", err)
	}

	if simCfg.Vehicles > realtimeVehicleLimit {
		Logger.Warn("Large fleet, ticks may fall behind real time", "vehicles", simCfg.Vehicles)
		backend.Warning("cmd", "large fleet, ticks may fall behind real time", map[string]any{
			"vehicles": simCfg.Vehicles,
			"limit":    realtimeVehicleLimit,
		})
	}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(storeCfg.OutputDir,
			fmt.Sprintf("influx_backup_%s.gz", SessionStartTime.Format("20060102_150405")))
		influx := metrics.NewManager(metricsLog, backupPath)
		influx.SetRun(shortID(runID), scenario.String())
		if err := influx.Connect(); err != nil {
			Logger.Warn("Metrics unavailable, continuing without them", "error", err)
		} else {
			sinks = append(sinks, influx)
			defer influx.Close()
		}
	}

	var renderer *display.Renderer
	if displayCfg.Enabled && !headless {
		renderer, err = display.New(display.Config{
			RefreshInterval: displayCfg.RefreshInterval,
			MessageRows:     displayCfg.MessageRows,
		}, fleet, msgBus, clock, os.Stdout)
		if err != nil {
			return err
		}
		renderer.SetRun(shortID(runID), scenario.String())
		sinks = append(sinks, renderer)
	}

	engine, err := sim.NewEngine(sim.EngineConfig{
		TickInterval: simCfg.TickInterval,
		Duration:     simCfg.Duration,
		Workers:      simCfg.Workers,
	}, sim.Dependencies{
		Clock:    clock,
		Fleet:    fleet,
		Bus:      msgBus,
		Analyzer: analyzer,
		Stats:    stats,
		Events:   backend,
		Logger:   Logger,
		Sinks:    sinks,
	})
	if err != nil {
		return err
	}

	// Health reports are debug-run noise; only emit them at debug level.
	if strings.EqualFold(level, "debug") {
		deps := monitor.Dependencies{
			Logger:       Logger,
			Bus:          msgBus,
			Stats:        stats.Current,
			TickDuration: engine.LastTickDuration,
		}
		if st, ok := backend.(monitor.StoreStatus); ok {
			deps.Store = st
		}
		if renderer != nil {
			deps.FeedDrops = renderer.FeedDrops
		}
		health, err := monitor.NewService(monitor.Config{Interval: config.GetMonitorConfig().Interval}, deps)
		if err != nil {
			return err
		}
		health.Start()
		defer health.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if renderer != nil {
		renderer.Start()
	}

	final, runErr := engine.Run(ctx)

	if renderer != nil {
		renderer.Stop()
		renderer.RenderFinal(final)
	}

	Logger.Info("Run summary",
		"simTime", final.SimTime,
		"vehicles", final.VehicleCount,
		"bsmSent", final.BSMSent,
		"bsmRate", final.BSMRate,
		"cwmSent", final.CWMSent,
		"prevented", final.CollisionsPrevented,
	)

	if outputPath != "" {
		res := export.Results{
			RunID:     runID.String(),
			Scenario:  scenario.String(),
			Seed:      seed,
			Vehicles:  simCfg.Vehicles,
			Speed:     simCfg.Speed,
			StartTime: SessionStartTime,
			EndTime:   time.Now(),
			Stats:     final,
		}
		if err := export.Write(outputPath, res); err != nil {
			Logger.Error("Writing results file failed", "path", outputPath, "error", err)
		} else {
			Logger.Info("Results written", "path", outputPath)
		}
	}

	if err := backend.CloseRun(final); err != nil {
		Logger.Error("Sealing run record failed", "error", err)
	}

	return runErr
}

// shortID is the run tag used in logs, frames, and metric points; the
// full UUID stays in the run record and results file.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
