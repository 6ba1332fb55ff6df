package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// MappingStore persists mapping tables in id_mappings and
// id_mappings_ambiguous.
type MappingStore struct {
	Base
}

// NewMappingStore creates a MappingStore.
func NewMappingStore(base Base) *MappingStore {
	return &MappingStore{Base: base}
}

// SaveMappingTable replaces the stored table of the table's namespace
// wholesale in one transaction.
func (s *MappingStore) SaveMappingTable(ctx context.Context, table *mapping.Table) error {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	ns := table.Namespace().Name
	entries := table.Entries()
	ambiguous := table.AmbiguousEntries()

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("mapping entry %q: %w", e.SourceID, err)
		}
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	for _, name := range []string{"id_mappings", "id_mappings_ambiguous"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+name+` WHERE namespace = $1`, ns); err != nil {
			return fmt.Errorf("clearing %s for %s: %w", name, ns, err)
		}
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"id_mappings"},
		[]string{"namespace", "source_id", "accession"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			return []any{ns, entries[i].SourceID, entries[i].Accession}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying mapping entries: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"id_mappings_ambiguous"},
		[]string{"namespace", "source_id", "accessions"},
		pgx.CopyFromSlice(len(ambiguous), func(i int) ([]any, error) {
			return []any{ns, ambiguous[i].SourceID, ambiguous[i].Accessions}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying ambiguous identifiers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing mapping table: %w", err)
	}

	s.Log.WithField("namespace", ns).
		WithField("entries", n).
		WithField("ambiguous", len(ambiguous)).
		Info("mapping table saved")

	return nil
}

// LoadMappingTable reads the stored table of ns.
func (s *MappingStore) LoadMappingTable(ctx context.Context, ns mapping.Namespace) (*mapping.Table, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	rows, err := tx.Query(ctx, `SELECT source_id, accession FROM id_mappings WHERE namespace = $1`, ns.Name)
	if err != nil {
		return nil, fmt.Errorf("loading mapping entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MappingEntry, error) {
		var e models.MappingEntry
		err := row.Scan(&e.SourceID, &e.Accession)

		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning mapping entries: %w", err)
	}

	rows, err = tx.Query(ctx, `SELECT source_id, accessions FROM id_mappings_ambiguous WHERE namespace = $1`, ns.Name)
	if err != nil {
		return nil, fmt.Errorf("loading ambiguous identifiers: %w", err)
	}

	ambiguous, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AmbiguousEntry, error) {
		var a models.AmbiguousEntry
		err := row.Scan(&a.SourceID, &a.Accessions)

		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ambiguous identifiers: %w", err)
	}

	if len(entries) == 0 && len(ambiguous) == 0 {
		return nil, fmt.Errorf("no stored %s mapping table: %w", ns.Name, models.ErrNodeNotFound)
	}

	return mapping.NewTable(ns, entries, ambiguous), nil
}

// MapIdentifier looks one identifier up in the stored table of ns. The id
// is normalised with the db hint first. It returns no accession for
// unknown and ambiguous identifiers.
func (s *MappingStore) MapIdentifier(ctx context.Context, id string, ns mapping.Namespace, dbHint string) ([]string, error) {
	if id == "" || mapping.SkipDB(dbHint) {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var acc string

	err := s.Pool.QueryRow(ctx,
		`SELECT accession FROM id_mappings WHERE namespace = $1 AND source_id = $2`,
		ns.Name, mapping.NormalizeID(dbHint, id),
	).Scan(&acc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", id, err)
	}

	return []string{acc}, nil
}
