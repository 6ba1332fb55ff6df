package models

// MappingEntry maps one source identifier to a canonical accession within
// a single namespace table.
type MappingEntry struct {
	SourceID  string `json:"src"`
	Accession string `json:"acc"`
}

// AmbiguousEntry records a source identifier that maps to more than one
// canonical accession and is therefore excluded from mapping.
type AmbiguousEntry struct {
	SourceID   string   `json:"src"`
	Accessions []string `json:"acc"`
}

// Maximum stored identifier lengths.
const (
	MaxSourceIDLen  = 255
	MaxAccessionLen = 64
)

// Validate checks that the entry can be persisted.
func (e MappingEntry) Validate() error {
	if e.SourceID == "" {
		return ErrMissingID
	}

	if len(e.SourceID) > MaxSourceIDLen {
		return ErrFieldTooLong("src", MaxSourceIDLen)
	}

	if e.Accession == "" {
		return ErrMissingAccession
	}

	if len(e.Accession) > MaxAccessionLen {
		return ErrFieldTooLong("acc", MaxAccessionLen)
	}

	return nil
}
