package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spatialdb/spatialdb/pkg/vtree"
)

// Config is the top-level configuration for a spatialdb server process.
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Index    Index    `yaml:"index"`
	Security Security `yaml:"security"`
	Logging  Logging  `yaml:"logging"`
}

// Index carries the per-tree tuning knobs: fill factors governing split
// thresholds, how often an updater run reports progress, and how long the
// group coordinator waits between checking whether a commit is durable.
// Only the fill factors reach the core, through ToVTreeConfig; pkg/group
// uses its own built-in checkpoint interval and commit delay and does not
// read CheckpointEvery or CommitDelay.
type Index struct {
	MinFilled       int           `yaml:"min_filled"`
	MaxFilled       int           `yaml:"max_filled"`
	CheckpointEvery int           `yaml:"checkpoint_every"`
	CommitDelay     time.Duration `yaml:"commit_delay"`
}

// ToVTreeConfig projects the fill-factor fields onto vtree.Config.
func (i Index) ToVTreeConfig() vtree.Config {
	return vtree.Config{MinFilled: i.MinFilled, MaxFilled: i.MaxFilled}
}

// Security holds the key gating the admin HTTP surface.
type Security struct {
	AdminAPIKey string `yaml:"admin_api_key"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Index: Index{
			MinFilled:       vtree.DefaultMinFilled,
			MaxFilled:       vtree.DefaultMaxFilled,
			CheckpointEvery: 200,
			CommitDelay:     time.Second,
		},
		Security: Security{
			AdminAPIKey: "auto",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified path with secure
// permissions.
func SaveConfig(cfg *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key.
func GenerateSecureKey(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BootstrapConfig creates a new configuration with a generated admin key
// if one doesn't already exist at configPath.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	adminKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate admin API key: %w", err)
	}
	cfg.Security.AdminAPIKey = adminKey

	if err := SaveConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return cfg, nil
}

// GetDefaultConfigPath returns the default configuration path for the
// current platform.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./spatialdb.yaml"
	}
	configDir := filepath.Join(homeDir, ".config", "spatialdb")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
