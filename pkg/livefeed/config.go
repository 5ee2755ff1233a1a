package livefeed

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds live feed client configuration.
type Config struct {
	// Connection settings
	URL       string `json:"url" validate:"required,url"`
	AuthToken string `json:"auth_token"`

	// Timing settings
	HandshakeTimeout time.Duration `json:"handshake_timeout" validate:"min=1"`
	WriteTimeout     time.Duration `json:"write_timeout" validate:"min=1"`
	PongTimeout      time.Duration `json:"pong_timeout" validate:"min=1"`
	ReadTimeout      time.Duration `json:"read_timeout" validate:"min=1"`

	// Buffer settings
	ReadBufferSize  int   `json:"read_buffer_size" validate:"min=1"`
	WriteBufferSize int   `json:"write_buffer_size" validate:"min=1"`
	MaxMessageSize  int64 `json:"max_message_size" validate:"min=1"`
	MessageBuffer   int   `json:"message_buffer" validate:"min=1"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      5 * time.Second,
		ReadTimeout:      5 * time.Minute,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		MaxMessageSize:   512 * 1024,
		MessageBuffer:    256,
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = defaults.PongTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.MessageBuffer == 0 {
		c.MessageBuffer = defaults.MessageBuffer
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
