package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	NATSURL          string
	SubjectPrefix    string
	MetricsPort      int
	LogLevel         string
	LogFormat        string
	DebounceInterval time.Duration
	TickInterval     time.Duration
	ShowVersion      bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("COGNOGRAPH_NATS_URL", "nats://localhost:4222"),
		"NATS server URL (env: COGNOGRAPH_NATS_URL)")

	flag.StringVar(&cfg.SubjectPrefix, "subject-prefix",
		getEnv("COGNOGRAPH_SUBJECT_PREFIX", "cognograph"),
		"Subject namespace for graph deltas and run records (env: COGNOGRAPH_SUBJECT_PREFIX)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("COGNOGRAPH_METRICS_PORT", 9090),
		"Prometheus metrics port (env: COGNOGRAPH_METRICS_PORT)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("COGNOGRAPH_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: COGNOGRAPH_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("COGNOGRAPH_LOG_FORMAT", "json"),
		"Log format: json, text (env: COGNOGRAPH_LOG_FORMAT)")

	flag.DurationVar(&cfg.DebounceInterval, "debounce",
		getEnvDuration("COGNOGRAPH_DEBOUNCE", 300*time.Millisecond),
		"Debounce quiet period for rule triggers (env: COGNOGRAPH_DEBOUNCE)")

	flag.DurationVar(&cfg.TickInterval, "tick-interval",
		getEnvDuration("COGNOGRAPH_TICK_INTERVAL", time.Minute),
		"Schedule trigger tick cadence, 0 to disable (env: COGNOGRAPH_TICK_INTERVAL)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version and exit")

	flag.Parse()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.NATSURL == "" {
		return fmt.Errorf("nats url is required")
	}
	if cfg.SubjectPrefix == "" {
		return fmt.Errorf("subject prefix is required")
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.DebounceInterval <= 0 {
		return fmt.Errorf("debounce interval must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
