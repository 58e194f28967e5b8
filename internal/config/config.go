package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/push"
	"github.com/joho/godotenv"
)

// Store backends for the reminder engine.
const (
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

// Push delivery modes.
const (
	PushLocal = "local"
	PushHTTP  = "http"
)

// Config holds the process configuration.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	StaticDir string

	Location         *time.Location
	SchedulerEnabled bool
	Tick             time.Duration
	CallTimeout      time.Duration
	SentRetention    time.Duration

	Store           string
	SupabaseURL     string
	SupabaseKey     string
	PushMode        string
	PushBaseURL     string
	PushSendToken   string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	RedisURL        string
}

// Load reads the environment, after loading .env when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv reads the current environment only.
func FromEnv() (*Config, error) {
	tzName := getEnv("LOCAL_TZ", "Europe/Madrid")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_TZ %q: %w", tzName, err)
	}

	port := getEnv("AGENDA_PORT", "8080")
	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("AGENDA_DB_PATH", "agenda.db"),
		LogLevel:  getEnv("AGENDA_LOG_LEVEL", "info"),
		LogFormat: getEnv("AGENDA_LOG_FORMAT", "text"),
		StaticDir: getEnv("AGENDA_STATIC_DIR", "static"),

		Location:         loc,
		SchedulerEnabled: getEnvAsBool("SCHED_ENABLED", true),
		Tick:             time.Duration(getEnvAsInt("SCHED_TICK_SECONDS", 10)) * time.Second,
		CallTimeout:      getEnvAsDuration("SCHED_CALL_TIMEOUT", 10*time.Second),
		SentRetention:    getEnvAsDuration("SENT_LOG_RETENTION", 30*24*time.Hour),

		Store:         strings.ToLower(getEnv("AGENDA_STORE", StoreSQLite)),
		SupabaseURL:   strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:   getEnv("SUPABASE_SERVICE_ROLE_KEY", getEnv("SUPABASE_API_KEY", "")),
		PushMode:      strings.ToLower(getEnv("AGENDA_PUSH_MODE", PushLocal)),
		PushBaseURL:   getEnv("PUSH_BASE_URL", "http://127.0.0.1:"+port),
		PushSendToken: getEnv("PUSH_SEND_TOKEN", ""),

		VAPIDPublicKey:  push.NormalizeVAPIDKey(getEnv("VAPID_PUBLIC", "")),
		VAPIDPrivateKey: push.NormalizeVAPIDKey(getEnv("VAPID_PRIVATE", "")),
		VAPIDSubject:    getEnv("VAPID_SUB", "mailto:admin@example.com"),
		RedisURL:        getEnv("REDIS_URL", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Store {
	case StoreSQLite:
	case StorePostgREST:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("AGENDA_STORE=postgrest requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY (or SUPABASE_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AGENDA_STORE %q", c.Store))
	}
	switch c.PushMode {
	case PushLocal:
	case PushHTTP:
		if c.PushBaseURL == "" {
			errs = append(errs, errors.New("AGENDA_PUSH_MODE=http requires PUSH_BASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AGENDA_PUSH_MODE %q", c.PushMode))
	}
	if c.Tick < time.Second {
		errs = append(errs, fmt.Errorf("SCHED_TICK_SECONDS must be at least 1, got %s", c.Tick))
	}
	return errors.Join(errs...)
}

// ExposePushSend reports whether POST /api/push/send is served. Without a
// token it is only needed when the engine dispatches over HTTP.
func (c *Config) ExposePushSend() bool {
	return c.PushSendToken != "" || c.PushMode == PushHTTP
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment; using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("invalid boolean in environment; using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment; using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}
