package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// mockAuditor records audit calls.
type mockAuditor struct {
	mu    sync.Mutex
	calls []AuditJob

	err error
}

func (m *mockAuditor) RecordMergeReport(_ context.Context, runID uuid.UUID, report *models.MergeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, AuditJob{RunID: runID, Report: report})
	return m.err
}

func (m *mockAuditor) getCalls() []AuditJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]AuditJob, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// mockMappingStore keeps tables in a map and can fail saves.
type mockMappingStore struct {
	mu      sync.Mutex
	tables  map[string]*mapping.Table
	saveErr error
	saves   int
}

func newMockMappingStore() *mockMappingStore {
	return &mockMappingStore{tables: map[string]*mapping.Table{}}
}

func (m *mockMappingStore) SaveMappingTable(_ context.Context, table *mapping.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}

	m.tables[table.Namespace().Name] = table

	return nil
}

func (m *mockMappingStore) LoadMappingTable(_ context.Context, ns mapping.Namespace) (*mapping.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[ns.Name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ns.Name, models.ErrNodeNotFound)
	}

	return t, nil
}

func (m *mockMappingStore) MapIdentifier(ctx context.Context, id string, ns mapping.Namespace, dbHint string) ([]string, error) {
	t, err := m.LoadMappingTable(ctx, ns)
	if err != nil {
		return nil, err
	}

	return t.Map(dbHint, id), nil
}
