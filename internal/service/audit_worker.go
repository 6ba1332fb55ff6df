package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/domain"
	"github.com/persistorai/pathmerge/internal/metrics"
	"github.com/persistorai/pathmerge/internal/models"
)

// AuditJob is one merge report waiting to be recorded.
type AuditJob struct {
	RunID  uuid.UUID
	Report *models.MergeReport
}

// AuditWorker buffers merge reports and writes them via a single worker
// goroutine, so slow audit writes never hold up merge workers.
type AuditWorker struct {
	auditor domain.Auditor
	log     *logrus.Logger
	jobs    chan *AuditJob
	done    chan struct{}
}

// NewAuditWorker creates an AuditWorker with the given queue capacity.
func NewAuditWorker(auditor domain.Auditor, log *logrus.Logger, queueSize int) *AuditWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &AuditWorker{
		auditor: auditor,
		log:     log,
		jobs:    make(chan *AuditJob, queueSize),
		done:    make(chan struct{}),
	}
}

// Enqueue adds an audit job. Non-blocking; drops the job if the queue is full.
func (w *AuditWorker) Enqueue(job *AuditJob) {
	select {
	case w.jobs <- job:
	default:
		metrics.ErrorsTotal.WithLabelValues("audit_dropped").Inc()
		w.log.WithField("document", job.Report.Document).Warn("audit queue full, dropping entry")
	}
}

// Run processes audit jobs until the context is cancelled, then drains remaining jobs.
func (w *AuditWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

// Done is closed once Run has drained the queue and returned.
func (w *AuditWorker) Done() <-chan struct{} {
	return w.done
}

func (w *AuditWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *AuditWorker) process(job *AuditJob) {
	if err := w.auditor.RecordMergeReport(context.Background(), job.RunID, job.Report); err != nil {
		metrics.ErrorsTotal.WithLabelValues("audit").Inc()
		w.log.WithError(err).WithField("document", job.Report.Document).Warn("audit record failed")
	}
}
