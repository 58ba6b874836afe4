package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mersinvald/rustyrobot/pkg/log"
)

// Config holds the full service configuration. Defaults match the broker
// invariants every stage relies on; a YAML file and the environment override
// them.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Github  GithubConfig  `yaml:"github"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// KafkaConfig enumerates the recognized broker options.
type KafkaConfig struct {
	BootstrapServers  []string      `yaml:"bootstrap_servers"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MessageTimeout    time.Duration `yaml:"message_timeout"`
}

// GithubConfig carries remote API credentials. Token and Username come from
// the environment, never from the config file.
type GithubConfig struct {
	Token    string `yaml:"-"`
	Username string `yaml:"-"`
}

// MetricsConfig configures the prometheus endpoint. An empty address
// disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: log.InfoLevel,
		},
		Kafka: KafkaConfig{
			BootstrapServers:  []string{"127.0.0.1:9092"},
			SessionTimeout:    6 * time.Second,
			HeartbeatInterval: 1 * time.Second,
			MessageTimeout:    5 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment. A local .env file is consulted before the process
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg.Github.Token = os.Getenv("GITHUB_TOKEN")
	cfg.Github.Username = os.Getenv("GITHUB_USERNAME")

	return cfg, nil
}

// RequireToken fails when GITHUB_TOKEN is not set.
func (c *Config) RequireToken() error {
	if c.Github.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set (checked .env and environment)")
	}
	return nil
}

// RequireUsername fails when GITHUB_USERNAME is not set.
func (c *Config) RequireUsername() error {
	if c.Github.Username == "" {
		return fmt.Errorf("GITHUB_USERNAME is not set (checked .env and environment)")
	}
	return nil
}
