// Package domain defines the storage contracts shared by the pipeline and
// the CLI. Consumers should depend on these interfaces rather than on a
// concrete backend.
package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// TargetStore is the shared merged graph. PostgreSQL, Neo4j and in-memory
// backends implement it.
type TargetStore interface {
	// GetByID returns a detached copy of a node and its direct edge
	// targets, or (nil, nil) when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.Node, error)
	Kinds(ctx context.Context, ids []string) (map[string]models.Kind, error)
	// Commit merges staging atomically: on error nothing is written.
	Commit(ctx context.Context, staging *graph.Graph) (models.CommitResult, error)
}

// GraphReader reads a target as a whole.
type GraphReader interface {
	Export(ctx context.Context) (*graph.Graph, error)
	Count(ctx context.Context) (nodes, edges int64, err error)
}

// MappingStore persists one mapping table per namespace.
type MappingStore interface {
	SaveMappingTable(ctx context.Context, table *mapping.Table) error
	// LoadMappingTable wraps models.ErrNodeNotFound when no table of ns
	// has been saved.
	LoadMappingTable(ctx context.Context, ns mapping.Namespace) (*mapping.Table, error)
	// MapIdentifier maps one identifier without loading the whole table
	// where the backend allows it.
	MapIdentifier(ctx context.Context, id string, ns mapping.Namespace, dbHint string) ([]string, error)
}

// Auditor is the minimal interface for recording merge outcomes.
// Used by the pipeline for fire-and-forget audit logging.
type Auditor interface {
	RecordMergeReport(ctx context.Context, runID uuid.UUID, report *models.MergeReport) error
}
