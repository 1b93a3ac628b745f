package store

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run is one recorded simulation session.
type Run struct {
	gorm.Model
	RunID     string         `json:"runId" gorm:"size:36;uniqueIndex:idx_runs_run_id"`
	Seed      int64          `json:"seed"`
	Vehicles  int            `json:"vehicles"`
	Scenario  string         `json:"scenario" gorm:"size:32"`
	Speed     float64        `json:"speed"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_runs_start_time"`
	EndTime   time.Time      `json:"endTime"`
	SimTime   float64        `json:"simTime"`
	Summary   datatypes.JSON `json:"summary"`
}

func (Run) TableName() string {
	return "runs"
}

// RunEvent is one row of a run's event stream. Severity is exactly one of
// INFO, WARNING, or ERROR.
type RunEvent struct {
	gorm.Model
	RunID   uint           `json:"runId" gorm:"index:idx_run_events_run_id"`
	SimTime float64        `json:"simTime"`
	Level   string         `json:"level" gorm:"size:8;index:idx_run_events_level"`
	Source  string         `json:"source" gorm:"size:32"`
	Message string         `json:"message" gorm:"size:255"`
	Attrs   datatypes.JSON `json:"attrs"`
}

func (RunEvent) TableName() string {
	return "run_events"
}

// DatabaseModels lists every table migrated at startup.
var DatabaseModels = []interface{}{
	&Run{},
	&RunEvent{},
}
