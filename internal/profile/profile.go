package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultCacheTTL is how long a cached notes list stays fresh.
	DefaultCacheTTL = 300 * time.Second
	// DefaultCacheMaxItems bounds the number of cached notes lists.
	DefaultCacheMaxItems = 10000
	// DefaultDateFormat is the layout used for the display date of a note.
	DefaultDateFormat = "2006-01-02 15:04"
	// DefaultRateLimit is the number of requests per second allowed per client.
	DefaultRateLimit = 10
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where ordernotes stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs and verifies bearer tokens. Empty disables authentication.
	Secret string

	// Notes cache configuration
	CacheTTL      time.Duration // ORDERNOTES_CACHE_TTL (default: 300s)
	CacheMaxItems int           // ORDERNOTES_CACHE_MAX_ITEMS (default: 10000)

	// Presentation
	Timezone   string // ORDERNOTES_TIMEZONE (default: UTC)
	DateFormat string // ORDERNOTES_DATE_FORMAT (default: 2006-01-02 15:04)

	// RateLimit is requests per second per client, 0 disables limiting.
	RateLimit float64 // ORDERNOTES_RATE_LIMIT (default: 10)

	// MaxConnections caps simultaneous client connections, 0 means unlimited.
	MaxConnections int // ORDERNOTES_MAX_CONNECTIONS

	// ClassifierRules are extra CEL expressions marking notes as system generated.
	ClassifierRules []string // ORDERNOTES_CLASSIFIER_RULES (separated by ";;")
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAuthEnabled returns true if bearer token authentication is required.
func (p *Profile) IsAuthEnabled() bool {
	return p.Secret != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from ORDERNOTES_* environment variables.
// Values that are already set on the profile are kept when the variable is absent.
func (p *Profile) FromEnv() {
	if v := os.Getenv("ORDERNOTES_SECRET"); v != "" {
		p.Secret = v
	}
	if v := os.Getenv("ORDERNOTES_CACHE_TTL"); v != "" {
		if d, err := parseDuration(v); err == nil {
			p.CacheTTL = d
		} else {
			slog.Warn("ignoring invalid ORDERNOTES_CACHE_TTL", slog.String("value", v), slog.String("error", err.Error()))
		}
	}
	if v := os.Getenv("ORDERNOTES_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ORDERNOTES_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.MaxConnections = n
		}
	}
	if v := os.Getenv("ORDERNOTES_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.RateLimit = f
		}
	}
	if v := os.Getenv("ORDERNOTES_CLASSIFIER_RULES"); v != "" {
		p.ClassifierRules = splitRules(v)
	}

	p.Timezone = getEnvOrDefault("ORDERNOTES_TIMEZONE", orDefault(p.Timezone, "UTC"))
	p.DateFormat = getEnvOrDefault("ORDERNOTES_DATE_FORMAT", orDefault(p.DateFormat, DefaultDateFormat))
}

// parseDuration accepts either a Go duration ("5m") or a number of seconds ("300").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitRules(v string) []string {
	var rules []string
	for _, r := range strings.Split(v, ";;") {
		if r = strings.TrimSpace(r); r != "" {
			rules = append(rules, r)
		}
	}
	return rules
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = DefaultCacheTTL
	}
	if p.CacheMaxItems <= 0 {
		p.CacheMaxItems = DefaultCacheMaxItems
	}
	if p.RateLimit < 0 {
		p.RateLimit = 0
	}
	if p.MaxConnections < 0 {
		p.MaxConnections = 0
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.DateFormat == "" {
		p.DateFormat = DefaultDateFormat
	}

	if p.Driver == "postgres" {
		if p.DSN == "" {
			return errors.New("dsn is required for postgres driver")
		}
		return nil
	}

	if p.Data == "" && p.Mode == "prod" {
		dir, err := defaultDataDir()
		if err != nil {
			return err
		}
		p.Data = dir
	}
	dataDir, err := resolveDataDir(p.Data)
	if err != nil {
		slog.Error("invalid data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir
	if p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("ordernotes_%s.db", p.Mode))
	}
	return nil
}

// defaultDataDir is where a production instance keeps its SQLite file.
func defaultDataDir() (string, error) {
	if runtime.GOOS != "windows" {
		return "/var/opt/ordernotes", nil
	}
	dir := filepath.Join(os.Getenv("ProgramData"), "ordernotes")
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", errors.Wrapf(err, "failed to create data directory %s", dir)
	}
	return dir, nil
}

// resolveDataDir makes dir absolute, relative to the binary, and checks that it exists.
func resolveDataDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(filepath.Join(filepath.Dir(os.Args[0]), dir))
		if err != nil {
			return "", err
		}
		dir = abs
	}
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dir)
	}
	return dir, nil
}
