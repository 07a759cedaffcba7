package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"supplyaudit/internal"
	"supplyaudit/internal/storage"
)

// Worker drains the continuation queue and periodically sweeps pending
// jobs onto it so freshly submitted jobs start without a kick.
type Worker struct {
	db     *storage.DB
	svc    *Service
	sched  *ChannelScheduler
	logger *zap.Logger

	pollInterval time.Duration
}

func NewWorker(db *storage.DB, svc *Service, sched *ChannelScheduler, pollIntervalSec int, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollIntervalSec <= 0 {
		pollIntervalSec = 5
	}
	return &Worker{
		db:           db,
		svc:          svc,
		sched:        sched,
		logger:       logger,
		pollInterval: time.Duration(pollIntervalSec) * time.Second,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	if err := w.sweepPending(); err != nil {
		w.logger.Warn("pending sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-w.sched.Queue():
			if err := w.svc.RunChunk(ctx, c.JobID, c.Chunk); err != nil {
				w.logger.Error("chunk failed",
					zap.String("jobId", c.JobID), zap.Int("chunk", c.Chunk), zap.Error(err))
			}
		case <-ticker.C:
			if err := w.sweepPending(); err != nil {
				w.logger.Warn("pending sweep failed", zap.Error(err))
			}
		}
	}
}

// sweepPending enqueues chunk 0 for every pending job and marks it
// processing so the next sweep does not enqueue it twice.
func (w *Worker) sweepPending() error {
	pending, err := w.db.ListJobsByStatus(internal.JobPending, 50)
	if err != nil {
		return err
	}

	for _, job := range pending {
		if err := w.sched.ScheduleContinuation(job.ID, 0); err != nil {
			w.logger.Warn("queue full, leaving job pending", zap.String("jobId", job.ID))
			return nil
		}
		if err := w.db.UpdateJobStatus(job.ID, internal.JobProcessing, nil); err != nil {
			return err
		}
		w.logger.Info("job picked up", zap.String("jobId", job.ID), zap.String("file", job.FileName))
	}
	return nil
}
