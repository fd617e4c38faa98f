// Package config builds the process-wide configuration once at startup. The
// returned *Config is shared read-only by every request.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // queue.timezone must resolve on minimal images

	"github.com/Lllllllleong/queuedesk/internal/gcp"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

// DefaultPath is read when QUEUEDESK_CONFIG is not set.
const DefaultPath = "config.yaml"

type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Form     FormConfig     `yaml:"form"`
	Log      LogConfig      `yaml:"log"`
}

type NetworkConfig struct {
	IPAddress       string        `yaml:"ip_address"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Addr is the listen address for the standalone server.
func (n NetworkConfig) Addr() string {
	return net.JoinHostPort(n.IPAddress, n.Port)
}

type DatabaseConfig struct {
	FirebaseProjectID     string        `yaml:"firebase_project_id"`
	DatabaseID            string        `yaml:"database_id"`
	Collection            string        `yaml:"collection"`
	ServiceAccountKeyPath string        `yaml:"service_account_key_path"`
	Backend               string        `yaml:"backend"`
	BaseURL               string        `yaml:"base_url"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	PageSize              int           `yaml:"page_size"`
	CacheToken            bool          `yaml:"cache_token"`
	Scopes                []string      `yaml:"scopes"`
}

type QueueConfig struct {
	Queues     int `yaml:"queues"`
	QueueSlots int `yaml:"queue_slots"`
	DaysRange  int `yaml:"days_range"`
	// Timezone decides which calendar day counts as today. Empty or "Local"
	// means the server's zone.
	Timezone      string `yaml:"timezone"`
	DefaultAmount int    `yaml:"default_amount"`
	// MaxAmount caps the amount a caller may request; 0 means no cap.
	MaxAmount int `yaml:"max_amount"`
}

// Location resolves Timezone.
func (q QueueConfig) Location() (*time.Location, error) {
	if q.Timezone == "" || q.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(q.Timezone)
}

type FormConfig struct {
	Fields []FormField `yaml:"fields"`
}

type FormField struct {
	Name      string `yaml:"name"`
	FieldType string `yaml:"field_type"`
	Required  bool   `yaml:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			IPAddress:       "127.0.0.1",
			Port:            "8000",
			ReadTimeout:     7 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateBurst:       10,
		},
		Database: DatabaseConfig{
			DatabaseID:     gcp.DefaultDatabaseID,
			Collection:     "appointments",
			Backend:        BackendREST,
			BaseURL:        gcp.DefaultBaseURL,
			RequestTimeout: 15 * time.Second,
			CacheToken:     true,
			Scopes:         []string{gcp.DatastoreScope},
		},
		Queue: QueueConfig{
			Queues:        1,
			QueueSlots:    60,
			DaysRange:     14,
			DefaultAmount: 10,
			MaxAmount:     100,
		},
		Form: FormConfig{
			Fields: []FormField{
				{Name: "name", FieldType: "text", Required: true},
				{Name: "phone", FieldType: "tel", Required: true},
				{Name: "message", FieldType: "textarea", Required: false},
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env, the file named by QUEUEDESK_CONFIG (default config.yaml,
// then Config.toml) and environment overrides, then validates the result. The
// default files may be absent; an explicitly named one may not.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	path, explicit := os.LookupEnv("QUEUEDESK_CONFIG")
	if !explicit || path == "" {
		path = DefaultPath
		explicit = false
	}

	cfg := Default()
	err := cfg.readFile(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		err = cfg.readFile(LegacyPath)
	}
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one YAML or TOML file over the defaults, without .env or environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes path over c. Files ending in .toml use the legacy TOML
// layout; everything else is YAML.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to open config file %q: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = c.decodeTOML(data)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("unable to parse config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Network.IPAddress = gcp.GetEnv("IP_ADDRESS", c.Network.IPAddress)
	c.Network.Port = gcp.GetEnv("PORT", c.Network.Port)

	c.Database.FirebaseProjectID = gcp.GetEnv("PROJECT_ID", c.Database.FirebaseProjectID)
	c.Database.DatabaseID = gcp.GetEnv("FIRESTORE_DATABASE", c.Database.DatabaseID)
	c.Database.Collection = gcp.GetEnv("FIRESTORE_COLLECTION", c.Database.Collection)
	c.Database.ServiceAccountKeyPath = gcp.GetEnv("SERVICE_ACCOUNT_KEY_PATH", c.Database.ServiceAccountKeyPath)
	c.Database.Backend = gcp.GetEnv("FIRESTORE_BACKEND", c.Database.Backend)
	c.Database.BaseURL = gcp.GetEnv("FIRESTORE_BASE_URL", c.Database.BaseURL)
	c.Database.RequestTimeout = gcp.GetEnvDuration("FIRESTORE_REQUEST_TIMEOUT", c.Database.RequestTimeout)
	c.Database.CacheToken = gcp.GetEnvBool("FIRESTORE_CACHE_TOKEN", c.Database.CacheToken)

	c.Queue.Timezone = gcp.GetEnv("QUEUE_TIMEZONE", c.Queue.Timezone)
	c.Queue.DefaultAmount = gcp.GetEnvInt("QUEUE_DEFAULT_AMOUNT", c.Queue.DefaultAmount)

	c.Log.Level = gcp.GetEnv("LOG_LEVEL", c.Log.Level)
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Network.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("network.port must be a number between 1 and 65535, got %q", c.Network.Port)
	}
	if c.Network.RateLimit < 0 || c.Network.RateBurst < 0 {
		return fmt.Errorf("network.rate_limit and network.rate_burst must not be negative")
	}

	if c.Database.FirebaseProjectID == "" {
		return fmt.Errorf("database.firebase_project_id must be set")
	}
	if c.Database.Collection == "" {
		return fmt.Errorf("database.collection must be set")
	}
	if c.Database.ServiceAccountKeyPath == "" {
		return fmt.Errorf("database.service_account_key_path must be set")
	}
	switch c.Database.Backend {
	case BackendREST, BackendSDK:
	default:
		return fmt.Errorf("database.backend must be %q or %q, got %q", BackendREST, BackendSDK, c.Database.Backend)
	}
	if c.Database.RequestTimeout <= 0 {
		return fmt.Errorf("database.request_timeout must be positive")
	}
	if c.Database.PageSize < 0 {
		return fmt.Errorf("database.page_size must not be negative")
	}

	if _, err := c.Queue.Location(); err != nil {
		return fmt.Errorf("queue.timezone: %w", err)
	}
	if c.Queue.DefaultAmount < 0 || c.Queue.MaxAmount < 0 {
		return fmt.Errorf("queue.default_amount and queue.max_amount must not be negative")
	}
	if c.Queue.Queues < 0 || c.Queue.QueueSlots < 0 || c.Queue.DaysRange < 0 {
		return fmt.Errorf("queue.queues, queue.queue_slots and queue.days_range must not be negative")
	}

	seen := make(map[string]bool, len(c.Form.Fields))
	for i, f := range c.Form.Fields {
		if f.Name == "" || f.FieldType == "" {
			return fmt.Errorf("form.fields[%d] needs a name and a field_type", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("form.fields: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
