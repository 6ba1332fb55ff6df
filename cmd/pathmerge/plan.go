package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/pathmerge/internal/models"
)

// plan is the datasource plan of a merge run.
//
//	datasources:
//	  - id: reactome
//	    name: Reactome
//	    files: [reactome/*.json.gz]
type plan struct {
	Datasources []models.Datasource `yaml:"datasources"`
}

// loadPlan reads a plan file. File entries are glob patterns relative to
// the plan's directory; each must match at least one file.
func loadPlan(path string) ([]models.Datasource, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var p plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}

	if len(p.Datasources) == 0 {
		return nil, fmt.Errorf("plan %s lists no datasources", path)
	}

	dir := filepath.Dir(path)
	seen := map[string]bool{}

	for i := range p.Datasources {
		ds := &p.Datasources[i]

		if ds.ID == "" {
			return nil, fmt.Errorf("datasource %d: %w", i+1, models.ErrMissingID)
		}

		if seen[ds.ID] {
			return nil, fmt.Errorf("datasource %q is listed twice", ds.ID)
		}
		seen[ds.ID] = true

		var files []string

		for _, pattern := range ds.Files {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(dir, pattern)
			}

			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("datasource %q: bad pattern %q: %w", ds.ID, pattern, err)
			}

			if len(matches) == 0 {
				return nil, fmt.Errorf("datasource %q: no files match %q", ds.ID, pattern)
			}

			files = append(files, matches...)
		}

		if len(files) == 0 {
			return nil, fmt.Errorf("datasource %q lists no files", ds.ID)
		}

		ds.Files = files
	}

	return p.Datasources, nil
}
