package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override, e.g. TIENLEN_TCP_ADDR.
const EnvPrefix = "TIENLEN_"

// Config holds server settings. JSON keys double as environment keys.
type Config struct {
	TCPAddr               string `json:"tcp_addr"`
	HTTPAddr              string `json:"http_addr"`
	MaxFrameBytes         int    `json:"max_frame_bytes"`
	PingIntervalSeconds   int    `json:"ping_interval_seconds"`
	SessionTimeoutSeconds int    `json:"session_timeout_seconds"`
	SweepIntervalMillis   int    `json:"sweep_interval_millis"`
	RoomTTLSeconds        int    `json:"room_ttl_seconds"`
	SendQueueSize         int    `json:"send_queue_size"`
	LogLevel              string `json:"log_level"`

	VivoxSecret          string `json:"vivox_secret"`
	VivoxIssuer          string `json:"vivox_issuer"`
	VivoxDomain          string `json:"vivox_domain"`
	VoiceTokenTTLSeconds int    `json:"voice_token_ttl_seconds"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		TCPAddr:               ":7777",
		HTTPAddr:              ":8080",
		MaxFrameBytes:         2_000_000,
		PingIntervalSeconds:   5,
		SessionTimeoutSeconds: 15,
		SweepIntervalMillis:   500,
		RoomTTLSeconds:        60,
		SendQueueSize:         64,
		LogLevel:              "info",
		VoiceTokenTTLSeconds:  3600,
	}
}

// Load reads the JSON file at path over the defaults, then a .env file if one
// exists, then TIENLEN_* environment variables. An empty path or a missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(envMap()); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			out[strings.ToLower(strings.TrimPrefix(k, EnvPrefix))] = v
		}
	}
	return out
}

// ApplyEnv overrides fields from a map keyed by the JSON names. The Nakama
// runtime env map uses the same keys.
func (c *Config) ApplyEnv(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := env[key]
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("tcp_addr", &c.TCPAddr)
	str("http_addr", &c.HTTPAddr)
	str("log_level", &c.LogLevel)
	str("vivox_secret", &c.VivoxSecret)
	str("vivox_issuer", &c.VivoxIssuer)
	str("vivox_domain", &c.VivoxDomain)

	for key, dst := range map[string]*int{
		"max_frame_bytes":         &c.MaxFrameBytes,
		"ping_interval_seconds":   &c.PingIntervalSeconds,
		"session_timeout_seconds": &c.SessionTimeoutSeconds,
		"sweep_interval_millis":   &c.SweepIntervalMillis,
		"room_ttl_seconds":        &c.RoomTTLSeconds,
		"send_queue_size":         &c.SendQueueSize,
		"voice_token_ttl_seconds": &c.VoiceTokenTTLSeconds,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("max_frame_bytes must be positive, got %d", c.MaxFrameBytes)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send_queue_size must be positive, got %d", c.SendQueueSize)
	}
	if c.SessionTimeoutSeconds <= c.PingIntervalSeconds {
		return fmt.Errorf("session_timeout_seconds (%d) must exceed ping_interval_seconds (%d)", c.SessionTimeoutSeconds, c.PingIntervalSeconds)
	}
	return nil
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMillis) * time.Millisecond
}

func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

func (c *Config) VoiceTokenTTL() time.Duration {
	return time.Duration(c.VoiceTokenTTLSeconds) * time.Second
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
