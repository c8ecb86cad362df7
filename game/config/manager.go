package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/wricardo/grid-localization/game/engine"
	"github.com/wricardo/grid-localization/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultConfigName is the config loaded as the default when present
const DefaultConfigName = "default"

// SupportedExtensions lists the config file formats, in lookup order
var SupportedExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// Manager handles engine configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.Config
	configs       map[string]*engine.Config
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.Config),
	}

	m.loadDefaultConfig()
	return m, nil
}

// ReadConfigFile loads one engine config file with its own viper instance.
// Keys missing from the file take the engine defaults.
func ReadConfigFile(path string) (*engine.Config, error) {
	defaults := engine.DefaultConfig()

	v := viper.New()
	v.SetDefault("name", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	v.SetDefault("description", "")
	v.SetDefault("board_size", defaults.BoardSize)
	v.SetDefault("sensor_accuracy", defaults.SensorAccuracy)
	v.SetDefault("num_colors", defaults.NumColors)
	v.SetDefault("seed", 0)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config engine.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := engine.ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &config, nil
}

// LoadConfig loads a configuration by name. The name may carry one of the
// supported extensions; without one each extension is tried in turn.
func (m *Manager) LoadConfig(name string) (*engine.Config, error) {
	key := configKey(name)

	m.mu.RLock()
	if config, exists := m.configs[key]; exists {
		m.mu.RUnlock()
		return copyConfig(config), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[key]; exists {
		return copyConfig(config), nil
	}

	path, err := m.resolvePath(name)
	if err != nil {
		return nil, err
	}

	config, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	m.configs[key] = config
	return copyConfig(config), nil
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	configs := []*service.ConfigInfo{}
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !isSupported(entry.Name()) {
			continue
		}

		id := configKey(entry.Name())
		if seen[id] {
			continue
		}

		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Skipping invalid config")
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:       entry.Name(),
			ConfigID:       id,
			Name:           config.Name,
			Description:    config.Description,
			BoardSize:      config.BoardSize,
			SensorAccuracy: config.SensorAccuracy,
			NumColors:      config.NumColors,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns a copy of the default configuration
func (m *Manager) GetDefault() *engine.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyConfig(m.defaultConfig)
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops cached configurations and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.configs = make(map[string]*engine.Config)
	m.mu.Unlock()

	m.loadDefaultConfig()
}

// Count returns the number of cached configurations
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}

// loadDefaultConfig picks default.*, then the first valid file, then the
// built-in engine defaults.
func (m *Manager) loadDefaultConfig() {
	config, err := m.LoadConfig(DefaultConfigName)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr == nil && len(configs) > 0 {
			config, err = m.LoadConfig(configs[0].Filename)
		}
	}

	if err != nil || config == nil {
		log.Debug().Str("dir", m.configDir).Msg("No usable config file, using built-in defaults")
		config = engine.DefaultConfig()
		config.Name = DefaultConfigName
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
}

// SaveConfig saves a configuration to disk. The format follows the name's
// extension and defaults to JSON.
func (m *Manager) SaveConfig(name string, config *engine.Config) error {
	if err := engine.ValidateConfig(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	filename := filepath.Base(name)
	if !isSupported(filename) {
		filename += ".json"
	}

	v := viper.New()
	v.Set("name", config.Name)
	v.Set("description", config.Description)
	v.Set("board_size", config.BoardSize)
	v.Set("sensor_accuracy", config.SensorAccuracy)
	v.Set("num_colors", config.NumColors)
	if config.Seed != 0 {
		v.Set("seed", config.Seed)
	}

	if err := v.WriteConfigAs(filepath.Join(m.configDir, filename)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[configKey(filename)] = copyConfig(config)
	m.mu.Unlock()

	log.Info().Str("config", configKey(filename)).Str("file", filename).Msg("Config saved")
	return nil
}

// resolvePath finds the file backing name. It assumes the caller holds m.mu.
func (m *Manager) resolvePath(name string) (string, error) {
	base := filepath.Base(name)
	if isSupported(base) {
		path := filepath.Join(m.configDir, base)
		if _, err := os.Stat(path); err != nil {
			return "", ErrConfigNotFound
		}
		return path, nil
	}

	for _, ext := range SupportedExtensions {
		path := filepath.Join(m.configDir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

func configKey(name string) string {
	base := filepath.Base(name)
	if isSupported(base) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

func isSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

func copyConfig(config *engine.Config) *engine.Config {
	if config == nil {
		return nil
	}
	cp := *config
	return &cp
}
