package main

import (
	"context"
	"fmt"

	"github.com/persistorai/pathmerge/internal/api"
	"github.com/persistorai/pathmerge/internal/config"
	"github.com/persistorai/pathmerge/internal/db"
	"github.com/persistorai/pathmerge/internal/db/migrations"
	"github.com/persistorai/pathmerge/internal/dbpool"
	"github.com/persistorai/pathmerge/internal/domain"
	"github.com/persistorai/pathmerge/internal/store"
)

// backend holds the stores selected by the configuration.
type backend struct {
	pool     *dbpool.Pool
	target   domain.TargetStore
	reader   domain.GraphReader
	memory   *store.MemoryTarget
	graphDB  *store.Neo4jTarget
	mappings domain.MappingStore
	audit    *store.AuditStore
}

// openBackend connects the configured stores. The target is only opened
// when withTarget is set; memoryIn seeds an in-memory target from a file.
func openBackend(ctx context.Context, withTarget bool, memoryIn string) (*backend, error) {
	b := &backend{}

	if cfg.NeedsDatabase() {
		pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		b.pool = pool

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			b.Close(ctx)
			return nil, err
		}
	}

	base := store.Base{Pool: b.pool, Log: log}

	if cfg.MappingsDir != "" {
		b.mappings = store.NewMappingFiles(cfg.MappingsDir)
	} else {
		b.mappings = store.NewMappingStore(base)
	}

	if b.pool != nil {
		b.audit = store.NewAuditStore(base)
	}

	if !withTarget {
		return b, nil
	}

	switch cfg.TargetBackend {
	case config.BackendPostgres:
		t := store.NewTargetStore(base)
		b.target, b.reader = t, t
	case config.BackendNeo4j:
		t, err := store.NewNeo4jTarget(ctx, store.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword.Value(),
			Database: cfg.Neo4jDatabase,
		}, log)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.graphDB = t
		b.target, b.reader = t, t
	case config.BackendMemory:
		b.memory = store.NewMemoryTarget(nil)
		if memoryIn != "" {
			m, err := store.LoadMemoryTarget(memoryIn)
			if err != nil {
				b.Close(ctx)
				return nil, err
			}
			b.memory = m
		}
		b.target, b.reader = b.memory, b.memory
	default:
		b.Close(ctx)
		return nil, fmt.Errorf("unknown target backend %q", cfg.TargetBackend)
	}

	return b, nil
}

// healthChecks returns the readiness checks of the open connections.
func (b *backend) healthChecks() map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{}

	if b.pool != nil {
		checks["database"] = b.pool
	}

	if b.graphDB != nil {
		checks["neo4j"] = b.graphDB
	}

	return checks
}

// Close releases every open connection.
func (b *backend) Close(ctx context.Context) {
	if b.graphDB != nil {
		if err := b.graphDB.Close(ctx); err != nil {
			log.WithError(err).Warn("closing neo4j driver")
		}
	}

	if b.pool != nil {
		b.pool.Close()
	}
}
