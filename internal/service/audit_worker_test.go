package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/models"
)

func newJob(doc string) *AuditJob {
	return &AuditJob{RunID: uuid.New(), Report: models.NewMergeReport(doc)}
}

func TestAuditWorker_ProcessesJob(t *testing.T) {
	auditor := &mockAuditor{}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	aw := NewAuditWorker(auditor, log, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go aw.Run(ctx)

	job := newJob("reactome:doc.json")
	aw.Enqueue(job)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-aw.Done()

	calls := auditor.getCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 audit call, got %d", len(calls))
	}
	if calls[0].Report.Document != "reactome:doc.json" {
		t.Errorf("document = %q, want %q", calls[0].Report.Document, "reactome:doc.json")
	}
	if calls[0].RunID != job.RunID {
		t.Errorf("run id = %s, want %s", calls[0].RunID, job.RunID)
	}
}

func TestAuditWorker_DropsWhenFull(t *testing.T) {
	auditor := &mockAuditor{}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	// Queue size 2, don't start the worker so it can't drain.
	aw := NewAuditWorker(auditor, log, 2)

	aw.Enqueue(newJob("a"))
	aw.Enqueue(newJob("b"))

	// This should be dropped (non-blocking).
	done := make(chan struct{})
	go func() {
		aw.Enqueue(newJob("c"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked when queue was full")
	}

	if len(aw.jobs) != 2 {
		t.Errorf("queue len = %d, want 2", len(aw.jobs))
	}
}

func TestAuditWorker_StopDrains(t *testing.T) {
	auditor := &mockAuditor{}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	aw := NewAuditWorker(auditor, log, 100)

	// Enqueue before starting.
	for i := range 5 {
		aw.Enqueue(newJob(string(rune('a' + i))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go aw.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-aw.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run didn't return after cancel")
	}

	calls := auditor.getCalls()
	if len(calls) != 5 {
		t.Errorf("expected 5 drained audit calls, got %d", len(calls))
	}
}
