// Package config loads and validates the envforge configuration from
// its YAML config file, environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the resolved tool configuration.
type Config struct {
	// DataDir holds the record files and the audit database.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	Tools    ToolsConfig    `mapstructure:"tools"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ToolsConfig names the external CLI binaries.
type ToolsConfig struct {
	Compute       string `mapstructure:"compute" validate:"required"`
	Database      string `mapstructure:"database" validate:"required"`
	SourceControl string `mapstructure:"source_control" validate:"required"`
	Git           string `mapstructure:"git" validate:"required"`
}

// SSHConfig carries the remote-exec settings.
type SSHConfig struct {
	User                  string        `mapstructure:"user" validate:"required"`
	Port                  int           `mapstructure:"port" validate:"min=1,max=65535"`
	PrivateKeyPath        string        `mapstructure:"private_key_path"`
	KnownHostsPath        string        `mapstructure:"known_hosts_path"`
	StrictHostKeyChecking bool          `mapstructure:"strict_host_key_checking"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
}

// DatabaseConfig carries branching-service defaults.
type DatabaseConfig struct {
	// Region is the default region for new instances when the project
	// record does not specify one.
	Region string `mapstructure:"region"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Load reads the configuration. An explicit path wins; otherwise
// ~/.config/envforge/config.yaml and the working directory are
// searched. A missing config file is fine, defaults and ENVFORGE_*
// environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("tools.compute", "flyctl")
	v.SetDefault("tools.database", "neonctl")
	v.SetDefault("tools.source_control", "gh")
	v.SetDefault("tools.git", "git")
	v.SetDefault("ssh.user", "deploy")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.connect_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := homeConfigDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ENVFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ProjectsPath returns the location of the projects record file.
func (c *Config) ProjectsPath() string {
	return filepath.Join(c.DataDir, "projects.json")
}

// VMsPath returns the location of the environments record file.
func (c *Config) VMsPath() string {
	return filepath.Join(c.DataDir, "vms.json")
}

// AuditPath returns the location of the audit database.
func (c *Config) AuditPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}
