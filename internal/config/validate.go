package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNeo4j(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateTaxa(); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	return nil
}

func (c *Config) validateBackend() error {
	switch c.TargetBackend {
	case BackendPostgres, BackendNeo4j, BackendMemory:
		return nil
	default:
		return fmt.Errorf("TARGET_BACKEND must be 'postgres', 'neo4j' or 'memory', got %q", c.TargetBackend)
	}
}

func (c *Config) validateDatabase() error {
	if !c.NeedsDatabase() {
		return nil
	}

	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required unless TARGET_BACKEND is not postgres and MAPPINGS_DIR is set")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if !isLoopback(dbHost) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
	}

	return nil
}

func (c *Config) validateNeo4j() error {
	if c.TargetBackend != BackendNeo4j {
		return nil
	}

	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required when TARGET_BACKEND is neo4j")
	}

	u, err := url.Parse(c.Neo4jURI)
	if err != nil {
		return fmt.Errorf("NEO4J_URI is not a valid URL: %w", err)
	}

	switch u.Scheme {
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
	default:
		return fmt.Errorf("NEO4J_URI scheme must be neo4j or bolt, got %q", u.Scheme)
	}

	if !isLoopback(u.Hostname()) && (u.Scheme == "neo4j" || u.Scheme == "bolt") {
		return fmt.Errorf("NEO4J_URI must use an encrypted scheme (+s) for non-local host %q", u.Hostname())
	}

	return nil
}

func (c *Config) validateNetwork() error {
	// Allow loopback addresses for local runs and 0.0.0.0/:: for
	// containerized deployments where the network boundary is external.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	metricsPort, err := strconv.Atoi(c.MetricsPort)
	if err != nil {
		return fmt.Errorf("METRICS_PORT must be a valid integer: %w", err)
	}

	if metricsPort < 1 || metricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcards or glob characters, got %q", origin)
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateTaxa() error {
	for _, id := range c.SupportedTaxa {
		if n, err := strconv.Atoi(id); err != nil || n < 1 {
			return fmt.Errorf("SUPPORTED_TAXONOMY_IDS must list positive NCBI taxonomy ids, got %q", id)
		}
	}

	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
