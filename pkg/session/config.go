package session

import (
	"fmt"
	"time"
)

// Callbacks are the event listeners a session owner may register. All are
// optional; nil callbacks are skipped. Callbacks are invoked one at a time in
// the order the events occurred and may safely call back into the Manager.
type Callbacks struct {
	OnStateChange   func(state ConnectionState)
	OnQualityChange func(quality ConnectionQuality)
	OnError         func(err error)
	OnReconnect     func(attempt int)
}

// Config holds session manager configuration. Start from DefaultConfig and
// override; zero durations and counts are filled in by ApplyDefaults.
type Config struct {
	// Reconnection settings
	EnableAutoReconnect  bool          `json:"enable_auto_reconnect"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	BaseReconnectDelay   time.Duration `json:"base_reconnect_delay"`
	MaxReconnectDelay    time.Duration `json:"max_reconnect_delay"`

	// Attempt and heartbeat timing
	ConnectTimeout    time.Duration `json:"connect_timeout"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// Event listeners
	Callbacks Callbacks `json:"-"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableAutoReconnect:  true,
		MaxReconnectAttempts: 10,
		BaseReconnectDelay:   time.Second,
		MaxReconnectDelay:    30 * time.Second,
		ConnectTimeout:       10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative")
	}

	if c.BaseReconnectDelay <= 0 {
		return fmt.Errorf("base reconnect delay must be positive")
	}

	if c.MaxReconnectDelay < c.BaseReconnectDelay {
		return fmt.Errorf("max reconnect delay must not be below the base delay")
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}

	return nil
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if c.BaseReconnectDelay == 0 {
		c.BaseReconnectDelay = defaults.BaseReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = defaults.HeartbeatInterval
	}
}

// TestConfig returns a configuration with short timings suitable for tests.
func TestConfig() Config {
	config := DefaultConfig()
	config.MaxReconnectAttempts = 3
	config.BaseReconnectDelay = 10 * time.Millisecond
	config.MaxReconnectDelay = 50 * time.Millisecond
	config.ConnectTimeout = 250 * time.Millisecond
	config.HeartbeatInterval = 20 * time.Millisecond
	return config
}
