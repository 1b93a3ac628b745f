package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// stdout is the console fallback target, swapped in tests.
var stdout io.Writer = os.Stdout

// Manager owns the slog handler chain for the process. Records go to the
// session log file when one is provided, to the console otherwise, and to
// Graylog when an address is configured.
type Manager struct {
	logger *slog.Logger

	// Dynamic run state, stamped on every record when set. Wired by the
	// command after the simulation services exist.
	GetRunID   func() string
	GetSimTime func() float64
	GetSpeed   func() string
}

// NewManager creates an empty manager; call Setup before logging.
func NewManager() *Manager {
	return &Manager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the handler chain. With a nil file the console takes over;
// the live display owns stdout during a run, so interactive runs always
// pass a file. A non-empty graylogAddr adds GELF forwarding over UDP.
func (m *Manager) Setup(file io.Writer, level string, graylogAddr string) error {
	lvl := parseLevel(level)

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
	}

	// The GELF writer speaks UDP; it lives for the whole process and needs
	// no teardown.
	if graylogAddr != "" {
		w, err := gelf.NewWriter(graylogAddr)
		if err != nil {
			return fmt.Errorf("connecting to graylog at %s: %w", graylogAddr, err)
		}
		w.Facility = "v2v-simulator"
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	handler = NewContextHandler(handler, m.runContext)

	m.logger = slog.New(handler)
	m.logger.Info("logging initialized", "level", lvl.String())
	return nil
}

// runContext produces the dynamic attributes for the current record.
func (m *Manager) runContext() []slog.Attr {
	var attrs []slog.Attr
	if m.GetRunID != nil {
		if id := m.GetRunID(); id != "" {
			attrs = append(attrs, slog.String("run", id))
		}
	}
	if m.GetSimTime != nil {
		attrs = append(attrs, slog.Float64("simTime", m.GetSimTime()))
	}
	if m.GetSpeed != nil {
		attrs = append(attrs, slog.String("speed", m.GetSpeed()))
	}
	return attrs
}

// Logger returns the configured slog.Logger, or the process default before
// Setup has run.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}
