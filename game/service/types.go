package service

import (
	"time"

	"github.com/wricardo/grid-localization/game/engine"
)

// SessionInfo provides information about a localization session
type SessionInfo struct {
	ID             string           `json:"id"`
	ConfigName     string           `json:"config_name"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Snapshot       *engine.Snapshot `json:"snapshot"`
	Config         *engine.Config   `json:"config"`
	Estimate       *engine.Estimate `json:"estimate,omitempty"`
}

// StepResult contains the outcome of a single step
type StepResult struct {
	Snapshot      *engine.Snapshot `json:"snapshot"`
	From          engine.Position  `json:"from"`
	To            engine.Position  `json:"to"`
	SensorReading int              `json:"sensor_reading"`
	ReadingName   string           `json:"reading_name"`
	Estimate      engine.Estimate  `json:"estimate"`
}

// BulkStepResult contains the outcome of several steps run in one call
type BulkStepResult struct {
	RequestedSteps int               `json:"requested_steps"`
	StepsExecuted  int               `json:"steps_executed"`
	Success        bool              `json:"success"`
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	StoppedOnStep  int               `json:"stopped_on_step,omitempty"`
	Readings       []int             `json:"readings"`
	Path           []engine.Position `json:"path"`
	Snapshot       *engine.Snapshot  `json:"snapshot"`
	Estimate       engine.Estimate   `json:"estimate"`
}

// ConfigInfo provides information about an engine configuration
type ConfigInfo struct {
	Filename       string  `json:"filename"`
	ConfigID       string  `json:"config_id"` // The identifier to use for session creation
	Name           string  `json:"name"`      // Display name
	Description    string  `json:"description"`
	BoardSize      int     `json:"board_size"`
	SensorAccuracy float64 `json:"sensor_accuracy"`
	NumColors      int     `json:"num_colors"`
}
