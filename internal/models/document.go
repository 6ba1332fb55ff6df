package models

// Document is the JSON interchange form of a pathway graph. Object
// properties and back-references name other nodes of the same document.
type Document struct {
	Source string       `json:"source,omitempty"`
	Nodes  []NodeRecord `json:"nodes"`
}

// NodeRecord is one node of a Document.
type NodeRecord struct {
	ID         string              `json:"id"`
	Kind       Kind                `json:"kind"`
	Type       string              `json:"type,omitempty"`
	Properties map[string][]string `json:"properties,omitempty"`
	Xref       *XrefInfo           `json:"xref,omitempty"`
	Edges      map[string][]string `json:"edges,omitempty"`
	Inverse    map[string][]string `json:"inverse,omitempty"`
}

// Validate checks that required fields are present and within limits.
func (r *NodeRecord) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}

	if len(r.ID) > 2048 {
		return ErrFieldTooLong("id", 2048)
	}

	if r.Kind == "" {
		return ErrMissingKind
	}

	if r.Kind == KindXref {
		if r.Xref == nil {
			return ErrMissingXref
		}

		if !r.Xref.Kind.Valid() {
			return ErrInvalidXrefKind
		}
	}

	return nil
}

// Datasource is one data provider in a merge plan. Each file is merged as a
// separate document.
type Datasource struct {
	ID    string   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Files []string `yaml:"files" json:"files"`
}

// DocumentRef identifies a single document of a datasource.
type DocumentRef struct {
	Datasource string
	Path       string
}

// String returns "datasource:path".
func (d DocumentRef) String() string {
	return d.Datasource + ":" + d.Path
}
