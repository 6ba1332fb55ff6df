package models

import "time"

// Resolution methods recorded in merge reports.
const (
	MethodURI          = "uri"
	MethodID           = "id"
	MethodUnification  = "unification"
	MethodRelationship = "relationship"
	MethodIdentity     = "identity"
	MethodName         = "name"
)

// CommitResult counts the changes a commit made to the target store.
type CommitResult struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	EdgesCreated int `json:"edges_created"`
}

// Add accumulates other into r.
func (r *CommitResult) Add(other CommitResult) {
	r.NodesCreated += other.NodesCreated
	r.NodesUpdated += other.NodesUpdated
	r.EdgesCreated += other.EdgesCreated
}

// MergeReport describes what one merge call did to one document.
type MergeReport struct {
	Document       string         `json:"document"`
	Replaced       map[string]int `json:"replaced"`
	Unresolved     int            `json:"unresolved"`
	Ambiguous      int            `json:"ambiguous"`
	Removed        int            `json:"removed"`
	MovedXrefs     int            `json:"moved_xrefs"`
	MovedFeatures  int            `json:"moved_features"`
	RepairedRefs   int            `json:"repaired_refs"`
	RenamedIDs     int            `json:"renamed_ids"`
	Filtered       int            `json:"filtered"`
	AugmentedXrefs int            `json:"augmented_xrefs"`
	Commit         CommitResult   `json:"commit"`
	Duration       time.Duration  `json:"duration"`
	Err            string         `json:"error,omitempty"`
}

// NewMergeReport creates an empty report for a document.
func NewMergeReport(document string) *MergeReport {
	return &MergeReport{Document: document, Replaced: map[string]int{}}
}

// ReplacedTotal sums replacements over all methods.
func (r *MergeReport) ReplacedTotal() int {
	total := 0
	for _, n := range r.Replaced {
		total += n
	}

	return total
}

// DocumentFailure names a document that was skipped and why.
type DocumentFailure struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// RunSummary is the pipeline-level outcome of one merge run.
type RunSummary struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Merged    []string          `json:"merged"`
	Failed    []DocumentFailure `json:"failed"`
	Skipped   []string          `json:"skipped"`
	Cancelled bool              `json:"cancelled"`
	Replaced  int               `json:"replaced"`
	Commit    CommitResult      `json:"commit"`
}
