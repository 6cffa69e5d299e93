package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the relay configuration.
// Defaults are overridden by an optional YAML file (CONFIG_FILE) and then by env vars.
type Config struct {
	Debug bool
	Port  string

	MaxFrameBytes   int64
	CatchUpWindow   time.Duration
	StreamingWindow time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration

	ViewerPassword string

	RedisAddr             string
	RedisDB               int
	RedisFrameChannel     string
	RedisTelemetryChannel string

	WatchDir    string
	WatchRemove bool
}

// fileConfig mirrors Config for YAML decoding. Nil fields keep the current value.
type fileConfig struct {
	Debug                 *bool         `yaml:"debug"`
	Port                  *string       `yaml:"port"`
	MaxFrameBytes         *int64        `yaml:"max_frame_bytes"`
	CatchUpWindow         *yamlDuration `yaml:"catchup_window"`
	StreamingWindow       *yamlDuration `yaml:"streaming_window"`
	WriteTimeout          *yamlDuration `yaml:"write_timeout"`
	PingInterval          *yamlDuration `yaml:"ping_interval"`
	ViewerPassword        *string       `yaml:"viewer_password"`
	RedisAddr             *string       `yaml:"redis_addr"`
	RedisDB               *int          `yaml:"redis_db"`
	RedisFrameChannel     *string       `yaml:"redis_frame_channel"`
	RedisTelemetryChannel *string       `yaml:"redis_telemetry_channel"`
	WatchDir              *string       `yaml:"watch_dir"`
	WatchRemove           *bool         `yaml:"watch_remove"`
}

func defaultConfig() Config {
	return Config{
		Port:                  ":3000",
		MaxFrameBytes:         2 << 20,
		CatchUpWindow:         10 * time.Second,
		StreamingWindow:       5 * time.Second,
		WriteTimeout:          5 * time.Second,
		PingInterval:          30 * time.Second,
		RedisFrameChannel:     "camrelay:frames",
		RedisTelemetryChannel: "camrelay:telemetry",
	}
}

// loadConfig builds the configuration from .env, CONFIG_FILE and the environment.
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setBool(&c.Debug, fc.Debug)
	if fc.Port != nil {
		c.Port = normalizePort(*fc.Port)
	}
	if fc.MaxFrameBytes != nil {
		c.MaxFrameBytes = *fc.MaxFrameBytes
	}
	setDuration(&c.CatchUpWindow, fc.CatchUpWindow)
	setDuration(&c.StreamingWindow, fc.StreamingWindow)
	setDuration(&c.WriteTimeout, fc.WriteTimeout)
	setDuration(&c.PingInterval, fc.PingInterval)
	setString(&c.ViewerPassword, fc.ViewerPassword)
	setString(&c.RedisAddr, fc.RedisAddr)
	if fc.RedisDB != nil {
		c.RedisDB = *fc.RedisDB
	}
	setString(&c.RedisFrameChannel, fc.RedisFrameChannel)
	setString(&c.RedisTelemetryChannel, fc.RedisTelemetryChannel)
	setString(&c.WatchDir, fc.WatchDir)
	setBool(&c.WatchRemove, fc.WatchRemove)
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DEBUG"); v != "" {
		c.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Port = normalizePort(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = normalizePort(v)
	}
	if v := os.Getenv("MAX_FRAME_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_FRAME_BYTES: %w", err)
		}
		c.MaxFrameBytes = n
	}
	for key, dst := range map[string]*time.Duration{
		"CATCHUP_WINDOW":   &c.CatchUpWindow,
		"STREAMING_WINDOW": &c.StreamingWindow,
		"WRITE_TIMEOUT":    &c.WriteTimeout,
		"PING_INTERVAL":    &c.PingInterval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	c.ViewerPassword = getEnv("VIEWER_PASSWORD", c.ViewerPassword)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	c.RedisFrameChannel = getEnv("REDIS_FRAME_CHANNEL", c.RedisFrameChannel)
	c.RedisTelemetryChannel = getEnv("REDIS_TELEMETRY_CHANNEL", c.RedisTelemetryChannel)
	c.WatchDir = getEnv("WATCH_DIR", c.WatchDir)
	if v := os.Getenv("WATCH_REMOVE"); v != "" {
		c.WatchRemove = v == "true" || v == "1"
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.MaxFrameBytes <= 0:
		return fmt.Errorf("max frame bytes must be positive, got %d", c.MaxFrameBytes)
	case c.CatchUpWindow < 0:
		return fmt.Errorf("catch-up window must not be negative, got %s", c.CatchUpWindow)
	case c.StreamingWindow <= 0:
		return fmt.Errorf("streaming window must be positive, got %s", c.StreamingWindow)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	case c.PingInterval <= 0:
		return fmt.Errorf("ping interval must be positive, got %s", c.PingInterval)
	}
	return nil
}

// parseDuration accepts Go duration strings ("10s") or plain milliseconds ("10000").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// yamlDuration decodes the same duration forms as the environment.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = yamlDuration(v)
	return nil
}

// normalizePort turns "3000" into ":3000" and leaves host:port forms alone.
func normalizePort(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *yamlDuration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

var logger = logging.Logger("camrelay")

// setupLogging enables debug output when debug mode is on.
func setupLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	if err := logging.SetLogLevel("camrelay", level); err != nil {
		fmt.Fprintf(os.Stderr, "setting log level: %v\n", err)
	}
}

// debugLog prints only when debug mode is enabled
func debugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// infoLog always prints important information
func infoLog(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func warnLog(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// errorLog always prints errors
func errorLog(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}
