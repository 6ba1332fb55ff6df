// Package store persists the merged graph, the mapping tables and the
// merge audit trail.
//
// PostgreSQL stores embed Base and share its pool and helpers. MemoryTarget
// and Neo4jTarget implement the same target contract for tests, local runs
// and graph-database deployments. Stores never import each other.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/dbpool"
	"github.com/persistorai/pathmerge/internal/models"
)

const (
	defaultQueryTimeout = 30 * time.Second
	commitTimeout       = 10 * time.Minute
)

// Base contains shared dependencies for the PostgreSQL stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// storeFailure marks err as a failed target write.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreFailure, err)
}
