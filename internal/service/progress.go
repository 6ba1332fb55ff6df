package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressSnapshot is a point-in-time view of the current or last run.
type ProgressSnapshot struct {
	RunID     string    `json:"run_id,omitempty"`
	Running   bool      `json:"running"`
	Documents int       `json:"documents"`
	Merged    int       `json:"merged"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Progress tracks document outcomes of a run for the ops API.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
}

func (p *Progress) start(runID uuid.UUID, documents int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap = ProgressSnapshot{
		RunID:     runID.String(),
		Running:   true,
		Documents: documents,
		StartedAt: time.Now(),
	}
}

func (p *Progress) record(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch status {
	case statusMerged:
		p.snap.Merged++
	case statusFailed:
		p.snap.Failed++
	case statusSkipped:
		p.snap.Skipped++
	}
}

func (p *Progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap.Running = false
}

// Snapshot returns a copy of the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.snap
}
