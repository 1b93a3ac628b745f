// Package logging assembles the process logger: a per-session log file or
// console fallback, plus optional Graylog forwarding, fanned out behind a
// single slog handler. Run context (run ID, simulated time) is stamped on
// every record once the simulation is wired up.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds a session log file path using OS-appropriate path
// separators.
func LogFilePath(logsDir, app string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", app, sessionStart.Format("20060102_150405")),
	)
}
