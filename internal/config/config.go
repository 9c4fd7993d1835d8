// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds the configuration for the catalog server and CLI.
type Config struct {
	MetaDBPath    string // path to the SQLite metastore (default "extcat_meta.sqlite")
	CatalogStore  string // "sqlite" (default) or "memory"
	DefaultSchema string // schema tables are created in (default "public")
	ListenAddr    string // HTTP listen address (default ":8080")
	LogLevel      string // debug, info, warn, error (default "info")
	Env           string // "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default ["*"])

	ScanParallelism int           // worker instances per file scan vertex (default 1)
	QueryTimeout    time.Duration // per select/insert deadline (default 30s)
	TablesFile      string        // optional declarative file applied at startup

	// Members of a deployment that runs every job on each node. Scans of
	// tables with file.sharedFileSystem split their files by member.
	MemberIndex int // this node, 0-based (default 0)
	MemberCount int // nodes in the deployment (default 1)

	// Warnings collects non-fatal problems found while loading. The caller
	// logs them once a logger exists.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
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

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:    os.Getenv("META_DB_PATH"),
		CatalogStore:  strings.ToLower(strings.TrimSpace(os.Getenv("CATALOG_STORE"))),
		DefaultSchema: strings.TrimSpace(os.Getenv("DEFAULT_SCHEMA")),
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
		TablesFile:    os.Getenv("TABLES_FILE"),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_RPS %q", v))
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_BURST %q", v))
		}
	}
	if v := os.Getenv("SCAN_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SCAN_PARALLELISM must be a positive integer, got %q", v)
		}
		cfg.ScanParallelism = n
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QUERY_TIMEOUT %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}
	if v := os.Getenv("MEMBER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("MEMBER_COUNT must be a positive integer, got %q", v)
		}
		cfg.MemberCount = n
	}
	if v := os.Getenv("MEMBER_INDEX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MEMBER_INDEX must be a non-negative integer, got %q", v)
		}
		cfg.MemberIndex = n
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "extcat_meta.sqlite"
	}
	switch cfg.CatalogStore {
	case "":
		cfg.CatalogStore = StoreSQLite
	case StoreSQLite, StoreMemory:
	default:
		return nil, fmt.Errorf("CATALOG_STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, cfg.CatalogStore)
	}
	if cfg.DefaultSchema == "" {
		cfg.DefaultSchema = "public"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.ScanParallelism == 0 {
		cfg.ScanParallelism = 1
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.MemberCount == 0 {
		cfg.MemberCount = 1
	}
	if cfg.MemberIndex >= cfg.MemberCount {
		return nil, fmt.Errorf("MEMBER_INDEX %d is out of range for MEMBER_COUNT %d", cfg.MemberIndex, cfg.MemberCount)
	}
	if cfg.CatalogStore == StoreMemory {
		cfg.Warnings = append(cfg.Warnings, "CATALOG_STORE=memory: table definitions are lost on restart")
	}

	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.CatalogStore == StoreMemory {
			return nil, fmt.Errorf("CATALOG_STORE=memory is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
