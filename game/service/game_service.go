package service

import (
	"context"
	"time"

	"github.com/wricardo/grid-localization/game/engine"
)

// DefaultSessionID names the session the flat, single-board routes act on.
// It is created from the default config on first use.
const DefaultSessionID = "default"

// MaxBulkSteps caps how many steps one BulkStep call may run
const MaxBulkSteps = 100

// GameService defines all localization operations exposed to transports
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	Step(ctx context.Context, sessionID string) (*StepResult, error)
	BulkStep(ctx context.Context, sessionID string, steps int) (*BulkStepResult, error)
	Restart(ctx context.Context, sessionID string, numColors *int) (*engine.Snapshot, error)

	// State
	GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetBoard(ctx context.Context, sessionID string) ([][]int, error)
	GetProbabilityField(ctx context.Context, sessionID string) ([][]float64, error)
	GetVehiclePosition(ctx context.Context, sessionID string) (engine.Position, error)
	GetEstimate(ctx context.Context, sessionID string) (*engine.Estimate, error)
	GetColormap(ctx context.Context, numColors int) ([]engine.Color, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Config, error)
	SaveConfig(ctx context.Context, configName string, config *engine.Config) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.Config) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.Config) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	AccessTimes(id string) (created, accessed time.Time, err error)
}

// ConfigManager handles engine configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Config, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Config
	SaveConfig(name string, config *engine.Config) error
}

// Session represents one running localization game
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.LocalizationEngine
	Config         *engine.Config
	// Guarded by the session manager; read through AccessTimes
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
