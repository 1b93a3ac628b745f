package sim

import "errors"

// ErrInvalidConfig wraps every pre-run validation failure. A rejected
// configuration leaves no side effects: nothing spawns, ticks, publishes,
// or persists.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrTransient marks a recoverable per-pair computation anomaly. The
// affected pair is skipped for the tick and the run continues.
var ErrTransient = errors.New("transient computation error")
