package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mcb1510/v2v-simulator/internal/config"
	"github.com/mcb1510/v2v-simulator/internal/queue"
	"github.com/mcb1510/v2v-simulator/internal/sim"
)

// GormBackend persists runs through GORM. With usePostgres it connects
// to the configured Postgres server and falls back to SQLite when the
// connection cannot be established or validated; otherwise it starts on
// SQLite directly. The SQLite database lives in memory and is vacuumed
// to SqliteFilePath periodically and on close.
type GormBackend struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	ShouldSaveLocal bool
	SqliteFilePath  string

	cfg         config.StoreConfig
	log         zerolog.Logger
	simTime     func() float64
	usePostgres bool

	pending *queue.Queue[RunEvent]

	mu        sync.Mutex
	run       *Run
	lastWrite time.Duration

	stop chan struct{}
	done sync.WaitGroup
}

// NewGormBackend creates a backend; Init connects and starts the writer.
func NewGormBackend(cfg config.StoreConfig, log zerolog.Logger, simTime func() float64, usePostgres bool) *GormBackend {
	return &GormBackend{
		cfg:         cfg,
		log:         log,
		simTime:     simTime,
		usePostgres: usePostgres,
		pending:     queue.New[RunEvent](),
		stop:        make(chan struct{}),
	}
}

// Init connects, migrates the schema, and starts the background writer.
func (b *GormBackend) Init() error {
	if b.cfg.BatchSize < 1 {
		return fmt.Errorf("%w: store batch size %d must be >= 1", sim.ErrInvalidConfig, b.cfg.BatchSize)
	}
	if b.cfg.FlushInterval <= 0 {
		return fmt.Errorf("%w: store flush interval %v must be > 0", sim.ErrInvalidConfig, b.cfg.FlushInterval)
	}

	if err := b.connect(); err != nil {
		return err
	}
	if err := b.DB.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	if b.ShouldSaveLocal {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if b.SqliteFilePath == "" {
			name := fmt.Sprintf("v2v_run_%s.db", time.Now().Format("20060102_150405"))
			b.SqliteFilePath = filepath.Join(b.cfg.OutputDir, name)
		}
		if b.cfg.DumpInterval > 0 {
			b.done.Add(1)
			go b.dumpLoop()
		}
	}

	b.done.Add(1)
	go b.flushLoop()
	return nil
}

// connect opens Postgres when requested, falling back to SQLite if the
// connection fails to open or to answer a ping.
func (b *GormBackend) connect() error {
	var err error

	if b.usePostgres {
		b.DB, err = b.openPostgres()
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to connect to Postgres DB, falling back to SQLite")
			b.ShouldSaveLocal = true
			b.DB, err = b.openSqlite()
		}
	} else {
		b.ShouldSaveLocal = true
		b.DB, err = b.openSqlite()
	}
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	b.SqlDB, err = b.DB.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}

	if err = b.SqlDB.Ping(); err != nil {
		if b.ShouldSaveLocal {
			return fmt.Errorf("validating connection: %w", err)
		}
		b.log.Error().Err(err).Msg("Failed to validate Postgres connection, falling back to SQLite")
		b.ShouldSaveLocal = true
		b.DB, err = b.openSqlite()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		b.SqlDB, err = b.DB.DB()
		if err != nil {
			return fmt.Errorf("accessing sql interface: %w", err)
		}
	}

	if !b.ShouldSaveLocal {
		b.SqlDB.SetMaxOpenConns(10)
	}

	b.log.Info().Str("dialect", b.DB.Dialector.Name()).Msg("Connected to database")
	return nil
}

func (b *GormBackend) openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	b.log.Debug().Str("host", viper.GetString("db.host")).Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func (b *GormBackend) openSqlite() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	b.log.Info().Msg("Using local SQLite DB in memory with periodic disk dump")

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}

// BeginRun inserts the run row that queued events attach to.
func (b *GormBackend) BeginRun(info RunInfo) error {
	run := &Run{
		RunID:     info.ID.String(),
		Seed:      info.Seed,
		Vehicles:  info.Vehicles,
		Scenario:  info.Scenario,
		Speed:     info.Speed,
		StartTime: info.StartTime,
	}
	if err := b.DB.Create(run).Error; err != nil {
		return fmt.Errorf("creating run row: %w", err)
	}

	b.mu.Lock()
	b.run = run
	b.mu.Unlock()

	b.log.Info().Str("run", info.ID.String()).Str("scenario", info.Scenario).Msg("Run opened")
	return nil
}

// Info implements sim.EventLog.
func (b *GormBackend) Info(source, message string, attrs map[string]any) {
	b.record("INFO", source, message, attrs)
}

// Warning implements sim.EventLog.
func (b *GormBackend) Warning(source, message string, attrs map[string]any) {
	b.record("WARNING", source, message, attrs)
}

// Error implements sim.EventLog.
func (b *GormBackend) Error(source, message string, attrs map[string]any) {
	b.record("ERROR", source, message, attrs)
}

func (b *GormBackend) record(level, source, message string, attrs map[string]any) {
	row := RunEvent{
		Level:   level,
		Source:  source,
		Message: message,
	}
	if b.simTime != nil {
		row.SimTime = b.simTime()
	}
	if len(attrs) > 0 {
		if blob, err := json.Marshal(attrs); err == nil {
			row.Attrs = datatypes.JSON(blob)
		}
	}
	b.pending.Push(row)
}

// Flush drains the queue and writes the rows in one transaction. Events
// recorded before BeginRun stay queued until a run is open.
func (b *GormBackend) Flush() error {
	b.mu.Lock()
	run := b.run
	b.mu.Unlock()
	if run == nil {
		return nil
	}

	rows := b.pending.Drain()
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].RunID = run.ID
	}

	start := time.Now()
	tx := b.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("opening transaction: %w", tx.Error)
	}
	if err := tx.CreateInBatches(&rows, b.cfg.BatchSize).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("writing %d event rows: %w", len(rows), err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing %d event rows: %w", len(rows), err)
	}

	b.mu.Lock()
	b.lastWrite = time.Since(start)
	b.mu.Unlock()
	return nil
}

// CloseRun flushes pending events and seals the run row with its end
// time and final statistics.
func (b *GormBackend) CloseRun(summary sim.Snapshot) error {
	if err := b.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	run := b.run
	b.run = nil
	b.mu.Unlock()
	if run == nil {
		return fmt.Errorf("no open run")
	}

	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	run.EndTime = time.Now()
	run.SimTime = summary.SimTime
	run.Summary = datatypes.JSON(blob)
	if err := b.DB.Save(run).Error; err != nil {
		return fmt.Errorf("sealing run row: %w", err)
	}

	b.log.Info().Str("run", run.RunID).Float64("simTime", run.SimTime).Msg("Run sealed")
	return nil
}

// Healthy reports whether the database still answers a ping.
func (b *GormBackend) Healthy() bool {
	return b.SqlDB != nil && b.SqlDB.Ping() == nil
}

// QueueDepth reports how many event rows wait for the next flush.
func (b *GormBackend) QueueDepth() int {
	return b.pending.Len()
}

// LastWriteDuration reports how long the most recent batch write took.
func (b *GormBackend) LastWriteDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWrite
}

// Close stops the background loops, dumps the in-memory database one
// last time, and closes the connection.
func (b *GormBackend) Close() error {
	close(b.stop)
	b.done.Wait()

	if b.ShouldSaveLocal && b.SqliteFilePath != "" {
		if err := b.DumpMemoryToDisk(); err != nil {
			b.log.Error().Err(err).Msg("Final disk dump failed")
		}
	}

	if b.SqlDB != nil {
		return b.SqlDB.Close()
	}
	return nil
}

// DumpMemoryToDisk vacuums the in-memory database to SqliteFilePath.
func (b *GormBackend) DumpMemoryToDisk() error {
	if b.SqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	// VACUUM INTO refuses to overwrite.
	if _, err := os.Stat(b.SqliteFilePath); err == nil {
		if err := os.Remove(b.SqliteFilePath); err != nil {
			return fmt.Errorf("removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := b.DB.Exec("VACUUM INTO 'file:" + b.SqliteFilePath + "';").Error; err != nil {
		return fmt.Errorf("dumping memory DB to disk: %s", err)
	}

	b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

func (b *GormBackend) flushLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error().Err(err).Msg("Event flush failed")
			}
		case <-b.stop:
			return
		}
	}
}

func (b *GormBackend) dumpLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.DumpMemoryToDisk(); err != nil {
				b.log.Error().Err(err).Msg("Periodic disk dump failed")
			}
		case <-b.stop:
			return
		}
	}
}
