package natsbridge

import (
	"time"

	"github.com/skovalik/cognograph/errors"
)

// Config holds the bridge's connection and subject settings.
type Config struct {
	// URL is the NATS server address. Ignored when a connection is
	// injected via WithConn.
	URL string `json:"url"`

	// SubjectPrefix namespaces every subject the bridge uses.
	SubjectPrefix string `json:"subject_prefix"`

	// ClientName identifies the connection on the server.
	ClientName string `json:"client_name"`

	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		SubjectPrefix: "cognograph",
		ClientName:    "cognograph-automation",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats url is required")
	}
	if c.SubjectPrefix == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "subject prefix is required")
	}
	if c.ReconnectWait <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "reconnect wait must be positive")
	}
	return nil
}
