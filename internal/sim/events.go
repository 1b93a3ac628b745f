package sim

// EventLog receives lifecycle and anomaly events from the core. Severities
// are exactly INFO, WARNING, and ERROR. Implementations must not block the
// caller; the persistent store queues internally.
type EventLog interface {
	Info(source, message string, attrs map[string]any)
	Warning(source, message string, attrs map[string]any)
	Error(source, message string, attrs map[string]any)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Info(string, string, map[string]any)    {}
func (NopEvents) Warning(string, string, map[string]any) {}
func (NopEvents) Error(string, string, map[string]any)   {}
