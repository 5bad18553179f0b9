package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactive.json"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultSnapshotKey is the default store key for the sheet.
	DefaultSnapshotKey = "sheet.json"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

// Config represents the complete reactive.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Engine contains reactive runtime configuration.
	Engine EngineConfig `json:"engine"`

	// Store contains snapshot persistence configuration.
	Store StoreConfig `json:"store"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "30s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`

	// CallTimeout bounds how long a request waits for the runtime (e.g., "5s").
	CallTimeout string `json:"callTimeout,omitempty"`

	// AllowedOrigins lists extra WebSocket origins besides the server's own.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// EngineConfig contains reactive runtime settings.
type EngineConfig struct {
	// MaxFlushRounds bounds effect-driven propagation rounds per flush.
	MaxFlushRounds int `json:"maxFlushRounds,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"logFormat,omitempty"`
}

// StoreConfig selects where the sheet snapshot is kept.
type StoreConfig struct {
	// Backend is "memory", "s3" or "sqlite".
	Backend string `json:"backend,omitempty"`

	// Key is the snapshot name within the backend.
	Key string `json:"key,omitempty"`

	// S3 settings.
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`

	// Path is the SQLite database file.
	Path string `json:"path,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled serves /metrics and records engine metrics.
	Enabled bool `json:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled emits one span per flush to the global tracer provider.
	Enabled bool `json:"enabled"`

	// TracerName names the tracer.
	TracerName string `json:"tracerName,omitempty"`

	// MinDuration skips spans for faster flushes (e.g., "1ms").
	MinDuration string `json:"minDuration,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: "30s",
			CallTimeout:     "5s",
		},
		Engine: EngineConfig{
			MaxFlushRounds: reactive.DefaultMaxFlushRounds,
			LogLevel:       "info",
			LogFormat:      "text",
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Key:     DefaultSnapshotKey,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "reactive",
		},
		Tracing: TracingConfig{
			TracerName: "reactive",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for reactive.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E140").
				WithDetail("No " + ConfigFileName + " found at " + path)
		}
		return nil, errors.New("E141").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E141").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E142").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E142").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for fields a partial file left
// empty.
func (c *Config) applyDefaults() {
	d := New()
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.CallTimeout == "" {
		c.Server.CallTimeout = d.Server.CallTimeout
	}
	if c.Engine.MaxFlushRounds == 0 {
		c.Engine.MaxFlushRounds = d.Engine.MaxFlushRounds
	}
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = d.Engine.LogLevel
	}
	if c.Engine.LogFormat == "" {
		c.Engine.LogFormat = d.Engine.LogFormat
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Key == "" {
		c.Store.Key = d.Store.Key
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = d.Tracing.TracerName
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("E141").WithDetail(detail)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port must be between 0 and 65535")
	}
	for field, value := range map[string]string{
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"server.callTimeout":     c.Server.CallTimeout,
		"tracing.minDuration":    c.Tracing.MinDuration,
	} {
		if _, err := parseDuration(value); err != nil {
			return invalid(field + " is not a valid duration: " + value)
		}
	}
	if c.Engine.MaxFlushRounds < 0 {
		return invalid("engine.maxFlushRounds must not be negative")
	}
	if _, ok := parseLevel(c.Engine.LogLevel); !ok {
		return invalid("engine.logLevel must be one of debug, info, warn, error")
	}
	if c.Engine.LogFormat != "text" && c.Engine.LogFormat != "json" {
		return invalid(`engine.logFormat must be "text" or "json"`)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendS3:
		if c.Store.Bucket == "" {
			return invalid("store.bucket is required for the s3 backend")
		}
	case BackendSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the sqlite backend")
		}
	default:
		return invalid(`store.backend must be "memory", "s3" or "sqlite"`)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ShutdownTimeout returns the parsed server.shutdownTimeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ShutdownTimeout)
	return d
}

// CallTimeout returns the parsed server.callTimeout.
func (c *Config) CallTimeout() time.Duration {
	d, _ := parseDuration(c.Server.CallTimeout)
	return d
}

// TraceMinDuration returns the parsed tracing.minDuration.
func (c *Config) TraceMinDuration() time.Duration {
	d, _ := parseDuration(c.Tracing.MinDuration)
	return d
}

// LogLevel returns the parsed engine.logLevel, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Engine.LogLevel)
	return l
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find reactive.json.
// Returns the directory containing it, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E140").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent that has one.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
