package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tether/pkg/logging"
)

const (
	userConfigDir  = ".config/tether"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns ~/.config/tether.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults,
// resolves the repository path against configPath and validates the result.
// A missing config.yaml yields the defaults.
func LoadConfig(configPath string) (TetherConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return TetherConfig{}, NewConfigurationError(configFilePath, ErrorTypeIO, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return TetherConfig{}, NewConfigurationError(configFilePath, ErrorTypeParse, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if config.Repository.Path != "" && !filepath.IsAbs(config.Repository.Path) {
		config.Repository.Path = filepath.Join(configPath, config.Repository.Path)
	}

	if err := config.Validate(); err != nil {
		return TetherConfig{}, NewConfigurationError(configFilePath, ErrorTypeValidation, err)
	}
	return config, nil
}
