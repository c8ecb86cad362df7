package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/grid-localization/game/engine"
)

// ErrInvalidSteps is returned when a bulk step count is not positive
var ErrInvalidSteps = errors.New("steps must be positive")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	metrics  *serviceMetrics
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	metrics, err := newServiceMetrics(meter(), sessions)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to no-op metrics")
		metrics = noopServiceMetrics(sessions)
	}

	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		metrics:  metrics,
	}
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// lookup resolves a session, creating the default session on first use
func (s *gameServiceImpl) lookup(sessionID string) (*Session, error) {
	var (
		sess *Session
		err  error
	)
	if strings.EqualFold(sessionID, DefaultSessionID) {
		sess, err = s.sessions.GetOrCreate(DefaultSessionID, s.configs.GetDefault())
	} else {
		sess, err = s.sessions.Get(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.sessions.UpdateLastAccessed(sess.ID)
	return sess, nil
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	est := sess.Engine.Estimate()
	cfg := sess.Engine.Config()
	created, accessed, err := s.sessions.AccessTimes(sess.ID)
	if err != nil {
		log.Debug().Err(err).Str("session", sess.ID).Msg("Session vanished while reading access times")
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.getConfigID(cfg.Name),
		CreatedAt:      created,
		LastAccessedAt: accessed,
		Snapshot:       sess.Engine.Snapshot(),
		Config:         &cfg,
		Estimate:       &est,
	}
}

// CreateSession creates a new localization session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.Config
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					configIDs := make([]string, 0, len(availableConfigs))
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' (available: %v): %w", configName, configIDs, err)
				}
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	info := s.sessionInfo(sess)
	if configName != "" {
		info.ConfigName = configName
	}

	log.Info().
		Str("session", sess.ID).
		Str("config", info.ConfigName).
		Int("board_size", config.BoardSize).
		Int("num_colors", config.NumColors).
		Msg("Session created")

	return info, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	log.Info().Str("session", sessionID).Msg("Session deleted")
	return nil
}

// Step runs one move, sense and update cycle
func (s *gameServiceImpl) Step(ctx context.Context, sessionID string) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	from := sess.Engine.VehiclePosition()
	if err := sess.Engine.Step(); err != nil {
		s.recordStepError(ctx, sess.ID, err)
		return nil, err
	}
	s.metrics.stepCommitted(ctx, 1)

	reading := sess.Engine.SensorReading()
	result := &StepResult{
		Snapshot:      sess.Engine.Snapshot(),
		From:          from,
		To:            sess.Engine.VehiclePosition(),
		SensorReading: reading,
		ReadingName:   engine.ColorName(reading),
		Estimate:      sess.Engine.Estimate(),
	}

	log.Debug().
		Str("session", sess.ID).
		Int("step", result.Snapshot.Step).
		Int("reading", reading).
		Float64("confidence", result.Estimate.Probability).
		Msg("Step")

	return result, nil
}

// BulkStep runs up to MaxBulkSteps steps and stops at the first failure
func (s *gameServiceImpl) BulkStep(ctx context.Context, sessionID string, steps int) (*BulkStepResult, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, steps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	result := &BulkStepResult{
		RequestedSteps: steps,
		Success:        true,
		Readings:       make([]int, 0, min(steps, MaxBulkSteps)),
		Path:           make([]engine.Position, 0, min(steps, MaxBulkSteps)),
	}

	// Limit steps to prevent abuse
	if steps > MaxBulkSteps {
		result.Truncated = true
		result.Limit = MaxBulkSteps
		steps = MaxBulkSteps
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.StoppedReason = "canceled"
			result.StoppedOnStep = i + 1
			break
		}
		if err := sess.Engine.Step(); err != nil {
			s.recordStepError(ctx, sess.ID, err)
			result.Success = false
			result.StoppedReason = stopReason(err)
			result.StoppedOnStep = i + 1
			break
		}
		result.StepsExecuted++
		result.Readings = append(result.Readings, sess.Engine.SensorReading())
		result.Path = append(result.Path, sess.Engine.VehiclePosition())
	}
	s.metrics.stepCommitted(ctx, result.StepsExecuted)

	result.Snapshot = sess.Engine.Snapshot()
	result.Estimate = sess.Engine.Estimate()

	log.Debug().
		Str("session", sess.ID).
		Int("requested", result.RequestedSteps).
		Int("executed", result.StepsExecuted).
		Str("stopped_reason", result.StoppedReason).
		Msg("Bulk step")

	return result, nil
}

// Restart starts a new game, optionally with a different number of colors
func (s *gameServiceImpl) Restart(ctx context.Context, sessionID string, numColors *int) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	if numColors == nil {
		err = sess.Engine.Restart()
	} else {
		err = sess.Engine.RestartWithColors(*numColors)
	}
	if err != nil {
		if errors.Is(err, engine.ErrInvalidNumColors) {
			s.metrics.restartRejected(ctx)
			log.Warn().Str("session", sess.ID).Int("num_colors", *numColors).Msg("Restart rejected")
		}
		return nil, fmt.Errorf("restart session %s: %w", sess.ID, err)
	}

	// Keep the session's config in step with the engine
	cfg := sess.Engine.Config()
	sess.Config = &cfg

	s.metrics.restarted(ctx, sess.Engine.NumColors())
	log.Info().Str("session", sess.ID).Int("num_colors", sess.Engine.NumColors()).Msg("Game restarted")

	return sess.Engine.Snapshot(), nil
}

// GetSnapshot retrieves the whole current state
func (s *gameServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Snapshot(), nil
}

// GetBoard retrieves the color board
func (s *gameServiceImpl) GetBoard(ctx context.Context, sessionID string) ([][]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Board(), nil
}

// GetProbabilityField retrieves the posterior field
func (s *gameServiceImpl) GetProbabilityField(ctx context.Context, sessionID string) ([][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.ProbabilityField(), nil
}

// GetVehiclePosition retrieves the true vehicle position
func (s *gameServiceImpl) GetVehiclePosition(ctx context.Context, sessionID string) (engine.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return engine.Position{}, err
	}
	return sess.Engine.VehiclePosition(), nil
}

// GetEstimate retrieves the most likely vehicle cell
func (s *gameServiceImpl) GetEstimate(ctx context.Context, sessionID string) (*engine.Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	est := sess.Engine.Estimate()
	return &est, nil
}

// GetColormap returns the first numColors palette entries. A non-positive
// count returns the whole palette.
func (s *gameServiceImpl) GetColormap(ctx context.Context, numColors int) ([]engine.Color, error) {
	if numColors <= 0 {
		numColors = engine.PaletteSize()
	}
	return engine.ColorPalette(numColors), nil
}

// ListConfigs returns available engine configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific engine configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.Config, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves an engine configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.Config) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) recordStepError(ctx context.Context, sessionID string, err error) {
	if errors.Is(err, engine.ErrDegeneratePosterior) {
		s.metrics.stepDegenerate(ctx)
	}
	log.Error().Err(err).Str("session", sessionID).Msg("Step failed")
}

func stopReason(err error) string {
	if errors.Is(err, engine.ErrDegeneratePosterior) {
		return "degenerate_posterior"
	}
	return "error"
}
