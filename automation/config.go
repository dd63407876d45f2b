package automation

import (
	"fmt"
	"time"

	"github.com/skovalik/cognograph/errors"
)

// Config holds the engine's tuning knobs.
type Config struct {
	// DebounceInterval is the quiet period a (rule, source node) pair must
	// observe before a matched event executes.
	DebounceInterval time.Duration `json:"debounce_interval"`

	// MaxStackDepth bounds how deep an action-triggers-action chain may
	// nest before further executions are rejected.
	MaxStackDepth int `json:"max_stack_depth"`

	// DefaultNodeWidth and DefaultNodeHeight substitute for unmeasured
	// nodes when computing bounding boxes for proximity distances.
	DefaultNodeWidth  float64 `json:"default_node_width"`
	DefaultNodeHeight float64 `json:"default_node_height"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DebounceInterval:  300 * time.Millisecond,
		MaxStackDepth:     5,
		DefaultNodeWidth:  200,
		DefaultNodeHeight: 100,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.DebounceInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("debounce interval must be positive, got %v", c.DebounceInterval))
	}
	if c.MaxStackDepth < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("max stack depth must be at least 1, got %d", c.MaxStackDepth))
	}
	if c.DefaultNodeWidth <= 0 || c.DefaultNodeHeight <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"default node dimensions must be positive")
	}
	return nil
}
