package gateway

import "time"

// Config holds HTTP gateway settings.
type Config struct {
	// Bind is the listen address. Defaults to loopback.
	Bind string

	// AdminToken protects the admin surface. When empty, the admin
	// endpoints are not mounted at all.
	AdminToken string

	// InboundSecrets maps channel names to shared HMAC secrets for the
	// inbound endpoint. Channels without an entry accept unsigned
	// requests.
	InboundSecrets map[string]string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
