package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Feed     FeedConfig     `mapstructure:"feed" json:"feed"`
	Session  SessionConfig  `mapstructure:"session" json:"session"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
}

// ServerConfig represents the HTTP API server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host" json:"host"`
	Port            int    `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" json:"read_timeout"`   // in seconds
	WriteTimeout    int    `mapstructure:"write_timeout" json:"write_timeout"` // in seconds
	CORSAllowOrigin string `mapstructure:"cors_allow_origin" json:"cors_allow_origin"`
}

// DatabaseConfig represents the session journal database configuration
type DatabaseConfig struct {
	ConnectionString string `mapstructure:"connection_string" json:"connection_string" validate:"required"`
	MaxOpenConns     int    `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime  int    `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"` // in minutes
}

// FeedConfig represents the live auction feed configuration
type FeedConfig struct {
	URL              string `mapstructure:"url" json:"url" validate:"required,url"`
	AuthToken        string `mapstructure:"auth_token" json:"auth_token"`
	HandshakeTimeout int    `mapstructure:"handshake_timeout" json:"handshake_timeout"` // in seconds
	WriteTimeout     int    `mapstructure:"write_timeout" json:"write_timeout"`         // in seconds
	PongTimeout      int    `mapstructure:"pong_timeout" json:"pong_timeout"`           // in seconds
	ReadTimeout      int    `mapstructure:"read_timeout" json:"read_timeout"`           // in seconds
	MessageBuffer    int    `mapstructure:"message_buffer" json:"message_buffer" validate:"min=1"`
}

// SessionConfig represents the connection lifecycle configuration
type SessionConfig struct {
	EnableAutoReconnect    bool `mapstructure:"enable_auto_reconnect" json:"enable_auto_reconnect"`
	MaxReconnectAttempts   int  `mapstructure:"max_reconnect_attempts" json:"max_reconnect_attempts" validate:"min=0"`
	BaseReconnectDelayMS   int  `mapstructure:"base_reconnect_delay_ms" json:"base_reconnect_delay_ms" validate:"min=1"`
	MaxReconnectDelayMS    int  `mapstructure:"max_reconnect_delay_ms" json:"max_reconnect_delay_ms" validate:"min=1,gtefield=BaseReconnectDelayMS"`
	ConnectTimeoutMS       int  `mapstructure:"connect_timeout_ms" json:"connect_timeout_ms" validate:"min=1"`
	HeartbeatIntervalMS    int  `mapstructure:"heartbeat_interval_ms" json:"heartbeat_interval_ms" validate:"min=1"`
	NetworkProbeIntervalMS int  `mapstructure:"network_probe_interval_ms" json:"network_probe_interval_ms" validate:"min=1"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" json:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" json:"output_path"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("BARTERDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.cors_allow_origin", "*")

	// Database defaults
	v.SetDefault("database.connection_string", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5)

	// Feed defaults
	v.SetDefault("feed.url", "wss://feed.barterdash.io/ws/v1")
	v.SetDefault("feed.auth_token", "")
	v.SetDefault("feed.handshake_timeout", 10)
	v.SetDefault("feed.write_timeout", 10)
	v.SetDefault("feed.pong_timeout", 5)
	v.SetDefault("feed.read_timeout", 300)
	v.SetDefault("feed.message_buffer", 256)

	// Session defaults
	v.SetDefault("session.enable_auto_reconnect", true)
	v.SetDefault("session.max_reconnect_attempts", 10)
	v.SetDefault("session.base_reconnect_delay_ms", 1000)
	v.SetDefault("session.max_reconnect_delay_ms", 30000)
	v.SetDefault("session.connect_timeout_ms", 10000)
	v.SetDefault("session.heartbeat_interval_ms", 30000)
	v.SetDefault("session.network_probe_interval_ms", 5000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	validate := validator.New()
	return validate.Struct(config)
}
