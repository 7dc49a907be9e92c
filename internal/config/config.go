// Package config loads golivecatalog settings from defaults, a .env file and
// the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gabrielmiguelok/golivecatalog/pkg/forms"
	"github.com/gabrielmiguelok/golivecatalog/pkg/remote"
)

// Config combines all configuration settings.
type Config struct {
	// Address is the HTTP listen address.
	Address string

	// UsersURL is the list endpoint read by the user directory.
	UsersURL string

	// FetchTimeout bounds one outbound list read. Zero means no timeout.
	FetchTimeout time.Duration

	// CacheSize is the number of URLs the fetcher memoizes.
	CacheSize int

	// SubmitDelay is the latency of the simulated form submission.
	SubmitDelay time.Duration

	// DraftTTL is how long an idle wizard draft is kept in memory.
	DraftTTL time.Duration

	// AllowedOrigins for WebSocket connections. Empty means same-origin only.
	AllowedOrigins []string

	// InsecureDevMode disables the origin check (development only).
	InsecureDevMode bool

	Debug    bool
	JSONLogs bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:      ":3000",
		UsersURL:     remote.DefaultUsersURL,
		FetchTimeout: 15 * time.Second,
		CacheSize:    remote.DefaultCacheSize,
		SubmitDelay:  forms.DefaultSubmitDelay,
		DraftTTL:     30 * time.Minute,
	}
}

// Load reads .env if present, then applies environment overrides on top of
// the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv applies overrides read through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Address = port
	}
	if v := strings.TrimSpace(getenv("CATALOG_ADDR")); v != "" {
		cfg.Address = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_USERS_URL")); v != "" {
		cfg.UsersURL = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_ALLOWED_ORIGINS")); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	var err error
	if cfg.FetchTimeout, err = durationEnv(getenv, "CATALOG_FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return cfg, err
	}
	if cfg.SubmitDelay, err = durationEnv(getenv, "CATALOG_SUBMIT_DELAY", cfg.SubmitDelay); err != nil {
		return cfg, err
	}
	if cfg.DraftTTL, err = durationEnv(getenv, "CATALOG_DRAFT_TTL", cfg.DraftTTL); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(getenv("CATALOG_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("CATALOG_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}
	if cfg.InsecureDevMode, err = boolEnv(getenv, "CATALOG_INSECURE_DEV", cfg.InsecureDevMode); err != nil {
		return cfg, err
	}
	if cfg.Debug, err = boolEnv(getenv, "CATALOG_DEBUG", cfg.Debug); err != nil {
		return cfg, err
	}
	if cfg.JSONLogs, err = boolEnv(getenv, "CATALOG_JSON_LOGS", cfg.JSONLogs); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return ErrAddressRequired
	}
	if c.UsersURL == "" {
		return ErrUsersURLRequired
	}
	if c.CacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.FetchTimeout < 0 || c.SubmitDelay < 0 || c.DraftTTL < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// Configuration errors.
var (
	ErrAddressRequired  = configError("listen address is required")
	ErrUsersURLRequired = configError("users URL is required")
	ErrInvalidCacheSize = configError("cache size must be positive")
	ErrNegativeDuration = configError("durations must not be negative")
)

type configError string

func (e configError) Error() string { return string(e) }

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolEnv(getenv func(string) string, key string, def bool) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
