package mapping

import (
	"regexp"
	"strings"
)

// Canonical source database names used as normalisation keys.
const (
	dbUniProt          = "UNIPROT"
	dbRefSeq           = "REFSEQ"
	dbPubChemCompound  = "PUBCHEM-COMPOUND"
	dbPubChemSubstance = "PUBCHEM-SUBSTANCE"
)

var (
	isoformSuffix = regexp.MustCompile(`-\d+$`)
	versionSuffix = regexp.MustCompile(`\.\d+$`)
	keggGeneID    = regexp.MustCompile(`^[a-zA-Z]+:(\d+)$`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

// CanonicalDB upper-cases a source database name and folds known synonyms.
func CanonicalDB(db string) string {
	d := strings.ToUpper(strings.TrimSpace(db))

	switch {
	case strings.HasPrefix(d, "UNIPROT"), strings.HasPrefix(d, "SWISSPROT"), strings.HasPrefix(d, "SWISS-PROT"):
		return dbUniProt
	case strings.HasPrefix(d, "PUBCHEM") && (strings.Contains(d, "COMPOUND") || strings.Contains(d, "CID")):
		return dbPubChemCompound
	case strings.HasPrefix(d, "PUBCHEM") && (strings.Contains(d, "SUBSTANCE") || strings.Contains(d, "SID")):
		return dbPubChemSubstance
	default:
		return d
	}
}

// NormalizeID strips or adds the parts of an identifier that do not change
// which entity it names, so that equivalent spellings share a table key:
//
//   - UniProt/TrEMBL isoform ids lose their "-N" suffix,
//   - RefSeq ids lose their ".N" version,
//   - KEGG gene ids "org:NNN" become the NCBI Gene id "NNN",
//   - numeric PubChem ids get a "CID:" or "SID:" prefix.
func NormalizeID(db, id string) string {
	id = strings.TrimSpace(id)
	d := CanonicalDB(db)

	switch {
	case d == dbUniProt || strings.Contains(d, "TREMBL"):
		return isoformSuffix.ReplaceAllString(id, "")
	case d == dbRefSeq:
		return versionSuffix.ReplaceAllString(id, "")
	case strings.HasPrefix(d, "KEGG"):
		if m := keggGeneID.FindStringSubmatch(id); m != nil {
			return m[1]
		}

		return id
	case d == dbPubChemCompound:
		return withPrefix(strings.ToUpper(id), "CID:")
	case d == dbPubChemSubstance:
		return withPrefix(strings.ToUpper(id), "SID:")
	default:
		return id
	}
}

func withPrefix(id, prefix string) string {
	if digitsOnly.MatchString(id) {
		return prefix + id
	}

	return id
}

// SkipDB reports whether identifiers of db must never be used for mapping.
// PANTHER component ids look like UniProt accessions but are not.
func SkipDB(db string) bool {
	return strings.HasPrefix(CanonicalDB(db), "PANTHER")
}

// ParseStandardURI splits a normalised URI "http://identifiers.org/<db>/<id>"
// into its db and id parts.
func ParseStandardURI(uri string) (db, id string, ok bool) {
	rest, found := strings.CutPrefix(uri, StandardPrefix)
	if !found {
		return "", "", false
	}

	db, id, found = strings.Cut(rest, "/")
	if !found || db == "" || id == "" {
		return "", "", false
	}

	return strings.ReplaceAll(db, ".", "-"), AccessionOf(id), true
}
