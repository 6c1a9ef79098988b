// Package config provides configuration for pvekit. Settings load from
// /etc/pvekit/config.yaml on a host (falling back to ~/.config/pvekit for
// non-root use), with PVEKIT_* environment variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version is the current config schema version.
const Version = "1.0"

const (
	// SystemConfigDir holds host-wide configuration.
	SystemConfigDir = "/etc/pvekit"
	// ConfigDirName is the name of the user config directory under ~/.config.
	ConfigDirName = "pvekit"
	// ConfigFileName is the name of the main config file.
	ConfigFileName = "config.yaml"
	// EnvFileName is the name of the optional environment overrides file.
	EnvFileName = "pvekit.env"
)

// ErrNotFound is returned when no config file exists at the resolved path.
var ErrNotFound = errors.New("config file not found")

// Config represents the pvekit configuration.
type Config struct {
	Version string  `yaml:"version"`
	Output  string  `yaml:"output,omitempty"` // readiness report path, empty = default
	SSHKeys SSHKeys `yaml:"ssh_keys"`
	Harden  Harden  `yaml:"harden"`
	Agents  Agents  `yaml:"agents"`
}

// SSHKeys configures where authorized keys are fetched from.
type SSHKeys struct {
	URL    string `yaml:"url,omitempty"`    // remote authorized_keys source
	SHA256 string `yaml:"sha256,omitempty"` // expected checksum, empty = skip verification
	User   string `yaml:"user,omitempty"`   // target account, default root
}

// Harden configures the sshd hardening task.
type Harden struct {
	PermitRootLogin string   `yaml:"permit_root_login,omitempty"` // default prohibit-password
	AllowUsers      []string `yaml:"allow_users,omitempty"`       // empty = no AllowUsers directive
}

// Agents holds enrollment secrets and sources for the optional
// third-party agents.
type Agents struct {
	WARPToken          string `yaml:"warp_token,omitempty"`
	NetBirdSetupKey    string `yaml:"netbird_setup_key,omitempty"`
	ABBInstallerURL    string `yaml:"abb_installer_url,omitempty"`
	ABBInstallerSHA256 string `yaml:"abb_installer_sha256,omitempty"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: Version,
		SSHKeys: SSHKeys{User: "root"},
		Harden:  Harden{PermitRootLogin: "prohibit-password"},
	}
}

// UserConfigDir returns the per-user config directory (~/.config/pvekit).
// Respects XDG_CONFIG_HOME if set.
func UserConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDirName), nil
}

// DefaultPath resolves the config file path: the system file when it
// exists, otherwise the per-user file.
func DefaultPath() (string, error) {
	systemPath := filepath.Join(SystemConfigDir, ConfigFileName)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}
	userDir, err := UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(userDir, ConfigFileName), nil
}

// Load reads the config from path. Returns ErrNotFound when the file does
// not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.SSHKeys.User == "" {
		cfg.SSHKeys.User = "root"
	}
	if cfg.Harden.PermitRootLogin == "" {
		cfg.Harden.PermitRootLogin = "prohibit-password"
	}

	return &cfg, nil
}

// LoadOrDefault loads the config at path, or returns defaults when no
// file exists. An empty path resolves via DefaultPath.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		resolved, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the config as YAML to path, creating parent directories.
// Mode 0600: the file may carry enrollment secrets.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads environment variables from an env file if it exists.
// Variables already set in the environment are not overridden.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}
	return nil
}

// LoadEnvFiles loads the well-known env files: /etc/pvekit/pvekit.env
// first, then ./pvekit.env for development use.
func LoadEnvFiles() error {
	if err := LoadEnvFile(filepath.Join(SystemConfigDir, EnvFileName)); err != nil {
		return err
	}
	return LoadEnvFile(EnvFileName)
}

// ApplyEnv overlays PVEKIT_* environment variables onto the config.
func (c *Config) ApplyEnv() {
	c.Output = envOr("PVEKIT_OUTPUT", c.Output)
	c.SSHKeys.URL = envOr("PVEKIT_SSH_KEYS_URL", c.SSHKeys.URL)
	c.SSHKeys.SHA256 = envOr("PVEKIT_SSH_KEYS_SHA256", c.SSHKeys.SHA256)
	c.SSHKeys.User = envOr("PVEKIT_SSH_KEYS_USER", c.SSHKeys.User)
	c.Agents.WARPToken = envOr("PVEKIT_WARP_TOKEN", c.Agents.WARPToken)
	c.Agents.NetBirdSetupKey = envOr("PVEKIT_NETBIRD_SETUP_KEY", c.Agents.NetBirdSetupKey)
	c.Agents.ABBInstallerURL = envOr("PVEKIT_ABB_INSTALLER_URL", c.Agents.ABBInstallerURL)
	c.Agents.ABBInstallerSHA256 = envOr("PVEKIT_ABB_INSTALLER_SHA256", c.Agents.ABBInstallerSHA256)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
