package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/persistorai/pathmerge/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPlan_ExpandsGlobsRelativeToPlan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "reactome", "a.json"), "{}")
	writeFile(t, filepath.Join(dir, "reactome", "b.json"), "{}")
	writeFile(t, filepath.Join(dir, "kegg.json.gz"), "")

	planPath := filepath.Join(dir, "plan.yaml")
	writeFile(t, planPath, `
datasources:
  - id: reactome
    name: Reactome
    files: [reactome/*.json]
  - id: kegg
    files: [kegg.json.gz]
`)

	ds, err := loadPlan(planPath)
	if err != nil {
		t.Fatalf("loadPlan: %v", err)
	}

	if len(ds) != 2 {
		t.Fatalf("got %d datasources, want 2", len(ds))
	}

	if ds[0].ID != "reactome" || len(ds[0].Files) != 2 {
		t.Errorf("reactome = %+v", ds[0])
	}

	if ds[1].ID != "kegg" || len(ds[1].Files) != 1 || !filepath.IsAbs(ds[1].Files[0]) {
		t.Errorf("kegg = %+v", ds[1])
	}
}

func TestLoadPlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		plan    string
		wantErr string
	}{
		{"empty", "datasources: []", "lists no datasources"},
		{"missing id", "datasources:\n  - files: [a.json]", "id is required"},
		{"duplicate id", "datasources:\n  - id: x\n    files: [a.json]\n  - id: x\n    files: [a.json]", "listed twice"},
		{"no match", "datasources:\n  - id: x\n    files: [nothing-*.json]", "no files match"},
		{"no files", "datasources:\n  - id: x", "lists no files"},
		{"bad yaml", "datasources: [", "parsing plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "a.json"), "{}")

			planPath := filepath.Join(dir, "plan.yaml")
			writeFile(t, planPath, tt.plan)

			_, err := loadPlan(planPath)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPlan_MissingIDIsSentinel(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	writeFile(t, planPath, "datasources:\n  - name: anonymous")

	if _, err := loadPlan(planPath); !errors.Is(err, models.ErrMissingID) {
		t.Errorf("error = %v, want ErrMissingID", err)
	}
}
