// Package config provides environment-driven configuration for pathmerge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Target backends.
const (
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMemory   = "memory"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL      Secret
	TargetBackend    string
	Neo4jURI         string
	Neo4jUser        string
	Neo4jPassword    Secret
	Neo4jDatabase    string
	LogLevel         string
	MergeWorkers     int
	DBMaxConns       int32
	MaxAugmentXrefs  int
	StrictInvariants bool
	MetricsPort      string
	ListenHost       string
	CORSOrigins      []string
	// SupportedTaxa are the NCBI taxonomy ids of the organisms kept when
	// filtering documents; empty disables the filter.
	SupportedTaxa []string
	// MappingsDir, when set, keeps mapping tables as JSON files instead of
	// in PostgreSQL.
	MappingsDir string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      Secret(envOrDefault("DATABASE_URL", "")),
		TargetBackend:    envOrDefault("TARGET_BACKEND", BackendPostgres),
		Neo4jURI:         envOrDefault("NEO4J_URI", ""),
		Neo4jUser:        envOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:    Secret(envOrDefault("NEO4J_PASSWORD", "")),
		Neo4jDatabase:    envOrDefault("NEO4J_DATABASE", ""),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		StrictInvariants: envOrDefault("STRICT_INVARIANTS", "false") == "true",
		MetricsPort:      envOrDefault("METRICS_PORT", "9091"),
		ListenHost:       envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MappingsDir:      envOrDefault("MAPPINGS_DIR", ""),
		CORSOrigins:      splitList(envOrDefault("CORS_ORIGINS", "")),
		SupportedTaxa:    splitList(envOrDefault("SUPPORTED_TAXONOMY_IDS", "")),
	}

	workers, err := strconv.Atoi(envOrDefault("MERGE_WORKERS", "4"))
	if err != nil || workers < 1 || workers > 32 {
		return nil, fmt.Errorf("MERGE_WORKERS must be an integer between 1 and 32")
	}
	cfg.MergeWorkers = workers

	// Each worker may hold a connection for lookups while one more commits.
	maxConns, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", strconv.Itoa(workers+2)))
	if err != nil || maxConns < 2 || maxConns > 200 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be an integer between 2 and 200")
	}
	cfg.DBMaxConns = int32(maxConns) //nolint:gosec // bounded above.

	maxXrefs, err := strconv.Atoi(envOrDefault("MAX_AUGMENT_XREFS", "5"))
	if err != nil || maxXrefs < 0 {
		return nil, fmt.Errorf("MAX_AUGMENT_XREFS must be a non-negative integer")
	}
	cfg.MaxAugmentXrefs = maxXrefs

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// splitList splits a comma separated value, dropping blank items.
func splitList(v string) []string {
	var out []string

	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// MetricsAddr returns the ops server listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

// NeedsDatabase reports whether PostgreSQL is used for the target or the
// mapping tables.
func (c *Config) NeedsDatabase() bool {
	return c.TargetBackend == BackendPostgres || c.MappingsDir == ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
