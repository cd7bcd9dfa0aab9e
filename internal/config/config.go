package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. FOUNDRY_SERVER_PORT.
const EnvPrefix = "FOUNDRY"

// Config holds all foundry configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Client     ClientConfig     `mapstructure:"client"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig holds observer server settings
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	TickRate int    `mapstructure:"tick_rate" validate:"min=1,max=1000"` // Hz
}

// SimulationConfig holds world and tick settings
type SimulationConfig struct {
	WorldFile  string `mapstructure:"world_file" validate:"required"`
	MaxStorage int    `mapstructure:"max_storage" validate:"min=1"`
	MaxTicks   int64  `mapstructure:"max_ticks" validate:"min=0"` // 0 runs until stopped
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// ClientConfig holds per-connection limits for observers
type ClientConfig struct {
	RateLimit      int   `mapstructure:"rate_limit" validate:"min=1"` // commands per minute
	MaxMessageSize int64 `mapstructure:"max_message_size" validate:"min=512"`
}

// JWTConfig holds JWT authentication settings. An empty PublicKeyURL
// disables authentication.
type JWTConfig struct {
	Issuer              string `mapstructure:"issuer" validate:"required_with=PublicKeyURL"`
	PublicKeyURL        string `mapstructure:"public_key_url" validate:"omitempty,url"`
	PublicKeyRefreshHrs int    `mapstructure:"public_key_refresh_hours" validate:"min=1"`
}

// Enabled reports whether tokens are required.
func (c JWTConfig) Enabled() bool { return c.PublicKeyURL != "" }

// RedisConfig holds Redis connection settings. An empty Address disables
// Redis.
type RedisConfig struct {
	Address         string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db" validate:"min=0"`
	BlacklistPrefix string `mapstructure:"blacklist_prefix"`
	EventChannel    string `mapstructure:"event_channel"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Address != "" }

// MetricsConfig holds Prometheus exposure settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// Load reads configuration with priority environment > file > defaults. An
// empty path searches ./foundry.yaml and ./configs/foundry.yaml; a missing
// file is not an error unless path was given explicitly.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("foundry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	SetDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnv registers every key so AutomaticEnv overrides apply even when the
// file does not mention the key.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.tick_rate",
		"simulation.world_file", "simulation.max_storage", "simulation.max_ticks",
		"logging.level", "logging.format",
		"client.rate_limit", "client.max_message_size",
		"jwt.issuer", "jwt.public_key_url", "jwt.public_key_refresh_hours",
		"redis.address", "redis.password", "redis.db", "redis.blacklist_prefix", "redis.event_channel",
		"metrics.enabled", "metrics.path",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Address returns host:port for the observer server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
