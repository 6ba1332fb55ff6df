package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// MappingFiles keeps one JSON file per mapping table in a directory.
type MappingFiles struct {
	Dir string
}

// NewMappingFiles creates a MappingFiles rooted at dir.
func NewMappingFiles(dir string) *MappingFiles {
	return &MappingFiles{Dir: dir}
}

func (f *MappingFiles) path(ns string) string {
	return filepath.Join(f.Dir, ns+".json")
}

// SaveMappingTable writes the table to <dir>/<namespace>.json. The file is
// written under a temporary name and renamed so readers never see a
// partial table.
func (f *MappingFiles) SaveMappingTable(_ context.Context, table *mapping.Table) error {
	if err := os.MkdirAll(f.Dir, 0o750); err != nil {
		return fmt.Errorf("creating mapping directory: %w", err)
	}

	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding %s mapping table: %w", table.Namespace().Name, err)
	}

	tmp, err := os.CreateTemp(f.Dir, table.Namespace().Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary mapping file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("writing mapping file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing mapping file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path(table.Namespace().Name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming mapping file: %w", err)
	}

	return nil
}

// LoadMappingTable reads the table of ns. A missing file matches
// models.ErrNodeNotFound.
func (f *MappingFiles) LoadMappingTable(_ context.Context, ns mapping.Namespace) (*mapping.Table, error) {
	data, err := os.ReadFile(f.path(ns.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no stored %s mapping table: %w", ns.Name, models.ErrNodeNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s mapping table: %w", ns.Name, err)
	}

	table, err := mapping.UnmarshalTable(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s mapping table: %w", ns.Name, err)
	}

	return table, nil
}

// MapIdentifier maps one identifier through the stored table of ns.
func (f *MappingFiles) MapIdentifier(ctx context.Context, id string, ns mapping.Namespace, dbHint string) ([]string, error) {
	table, err := f.LoadMappingTable(ctx, ns)
	if err != nil {
		return nil, err
	}

	return table.Map(dbHint, id), nil
}
