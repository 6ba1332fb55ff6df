package api

import (
	"context"

	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
	"github.com/persistorai/pathmerge/internal/service"
)

// NodeReader reads committed nodes from the target store.
type NodeReader interface {
	GetByID(ctx context.Context, id string) (*models.Node, error)
}

// IdentifierMapper maps a source identifier through a stored mapping table.
type IdentifierMapper interface {
	MapIdentifier(ctx context.Context, id string, ns mapping.Namespace, dbHint string) ([]string, error)
}

// GraphCounter counts the nodes and forward edges of the target.
type GraphCounter interface {
	Count(ctx context.Context) (nodes, edges int64, err error)
}

// HealthChecker is a dependency checked by the readiness endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProgressReporter exposes the counters of the current merge run.
type ProgressReporter interface {
	Snapshot() service.ProgressSnapshot
}
