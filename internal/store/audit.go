package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/pathmerge/internal/models"
)

// Merge audit statuses.
const (
	StatusMerged = "merged"
	StatusFailed = "failed"
)

// AuditEntry is one row of merge_audit.
type AuditEntry struct {
	RunID     uuid.UUID           `json:"run_id"`
	Document  string              `json:"document"`
	Status    string              `json:"status"`
	Report    *models.MergeReport `json:"report,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// AuditStore provides data access for the merge_audit table.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// RecordMergeReport inserts the outcome of one document merge.
func (s *AuditStore) RecordMergeReport(ctx context.Context, runID uuid.UUID, report *models.MergeReport) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	detail, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling merge report: %w", err)
	}

	status := StatusMerged

	var errText *string
	if report.Err != "" {
		status = StatusFailed
		errText = &report.Err
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO merge_audit
			(run_id, document, status, replaced, unresolved, nodes_created, nodes_updated, edges_created, report, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		runID, report.Document, status, report.ReplacedTotal(), report.Unresolved,
		report.Commit.NodesCreated, report.Commit.NodesUpdated, report.Commit.EdgesCreated,
		detail, errText,
	)
	if err != nil {
		return fmt.Errorf("inserting merge audit entry: %w", err)
	}

	return nil
}

// ListRun returns the audit entries of one run in insertion order.
func (s *AuditStore) ListRun(ctx context.Context, runID uuid.UUID) ([]AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT run_id, document, status, report, error, created_at
		FROM merge_audit WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying merge audit: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var (
			e       AuditEntry
			detail  []byte
			errText *string
		)

		if err := row.Scan(&e.RunID, &e.Document, &e.Status, &detail, &errText, &e.CreatedAt); err != nil {
			return e, err
		}

		if errText != nil {
			e.Error = *errText
		}

		e.Report = &models.MergeReport{}
		if err := json.Unmarshal(detail, e.Report); err != nil {
			s.Log.WithError(err).WithField("document", e.Document).Warn("failed to unmarshal merge report")
		}

		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning merge audit: %w", err)
	}

	return entries, nil
}

// purgeBatchSize limits the number of rows deleted per statement to avoid
// holding long locks on merge_audit.
const purgeBatchSize = 5000

// PurgeOldEntries deletes audit entries older than retentionDays in batches.
// Returns the number of deleted entries.
func (s *AuditStore) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	var total int

	for {
		batchCtx, cancel := withTimeout(ctx)

		tag, err := s.Pool.Exec(batchCtx, `
			DELETE FROM merge_audit WHERE id IN (
				SELECT id FROM merge_audit
				WHERE created_at < now() - make_interval(days => $1)
				LIMIT $2)`, retentionDays, purgeBatchSize)
		cancel()

		if err != nil {
			return total, fmt.Errorf("purging merge audit: %w", err)
		}

		deleted := int(tag.RowsAffected())
		total += deleted

		if deleted < purgeBatchSize {
			return total, nil
		}
	}
}
