package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supplyaudit/internal"
	"supplyaudit/internal/catalog"
	"supplyaudit/internal/config"
	"supplyaudit/internal/embed"
	"supplyaudit/internal/ingest"
	"supplyaudit/internal/matching"
	"supplyaudit/internal/report"
	"supplyaudit/internal/savings"
	"supplyaudit/internal/storage"
)

// Progress bands: parsing ends at 10, matching fills 10..90, the
// optimize/report tail takes the rest.
const (
	progressParsed    = 10
	progressMatchBand = 80
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	renderer  report.Renderer
	embedder  embed.Provider
	extractor matching.Extractor
	scheduler Scheduler
	logger    *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	indexOnce sync.Once
	index     *catalog.Index
	indexErr  error
}

func NewService(db *storage.DB, cfg config.Config, renderer report.Renderer, embedder embed.Provider, extractor matching.Extractor, scheduler Scheduler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		cfg:       cfg,
		renderer:  renderer,
		embedder:  embedder,
		extractor: extractor,
		scheduler: scheduler,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// SubmitJob records a pending job for the uploaded file and returns it.
// Nothing runs until a chunk-0 continuation is scheduled or RunJob is
// called.
func (s *Service) SubmitJob(fileName, fileRef string) (internal.ProcessingJob, error) {
	job := internal.ProcessingJob{
		ID:       uuid.NewString(),
		FileName: fileName,
		FileRef:  fileRef,
		Status:   internal.JobPending,
	}
	if err := s.db.CreateJob(job); err != nil {
		return internal.ProcessingJob{}, err
	}
	s.logger.Info("job submitted", zap.String("jobId", job.ID), zap.String("file", fileName))
	return job, nil
}

// CancelJob flips the job terminal; in-flight chunks notice the status
// change and stop scheduling work.
func (s *Service) CancelJob(jobID string) error {
	msg := "canceled"
	return s.db.UpdateJobStatus(jobID, internal.JobFailed, &msg)
}

// RunJob drives a job synchronously, chunk by chunk, until it reaches a
// terminal status. Intended for the CLI one-shot path; the service must
// have been built without a scheduler.
func (s *Service) RunJob(ctx context.Context, jobID string) (*internal.ProcessingJob, error) {
	chunk := 0
	for {
		if err := s.RunChunk(ctx, jobID, chunk); err != nil {
			return nil, err
		}
		job, err := s.db.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		switch job.Status {
		case internal.JobCompleted:
			return job, nil
		case internal.JobFailed:
			msg := "job failed"
			if job.Error != nil {
				msg = *job.Error
			}
			return job, errors.New(msg)
		}
		if job.ChunkCursor <= chunk {
			return job, fmt.Errorf("job %s stalled at chunk %d", jobID, chunk)
		}
		chunk = job.ChunkCursor
	}
}

// RunChunk executes one chunk of the job state machine. Chunk 0 parses
// and persists the line items before matching; the final chunk runs the
// optimizer and writes the report artifact.
func (s *Service) RunChunk(ctx context.Context, jobID string, chunk int) error {
	started := time.Now()

	job, err := s.db.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status == internal.JobCompleted || job.Status == internal.JobFailed {
		s.logger.Info("skipping chunk for terminal job",
			zap.String("jobId", jobID), zap.Int("chunk", chunk), zap.String("status", string(job.Status)))
		return nil
	}

	if chunk == 0 {
		if err := s.startJob(ctx, job); err != nil {
			return s.failJob(jobID, fmt.Errorf("parse: %w", err))
		}
	}

	items, err := s.db.ListLineItems(jobID)
	if err != nil {
		return s.failJob(jobID, err)
	}
	if len(items) == 0 {
		return s.finalize(ctx, jobID, started)
	}

	chunkSize := s.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(items)
	}
	start := chunk * chunkSize
	if start >= len(items) {
		return s.finalize(ctx, jobID, started)
	}
	end := start + chunkSize
	if end > len(items) {
		end = len(items)
	}

	idx, err := s.catalogIndex()
	if err != nil {
		return s.failJob(jobID, err)
	}
	matcher := matching.NewMatcher(s.cfg, idx, s.embedder, s.extractor)
	matcher.ExpensiveAllowed = func() bool {
		j, err := s.db.GetJob(jobID)
		return err == nil && j != nil && j.Status == internal.JobProcessing
	}

	// Each batch is flushed before the next starts; a crash mid-chunk
	// loses at most one batch of results.
	chunkItems := items[start:end]
	batchSize := s.cfg.MatchBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	for b := 0; b < len(chunkItems); b += batchSize {
		bEnd := b + batchSize
		if bEnd > len(chunkItems) {
			bEnd = len(chunkItems)
		}
		results := matcher.MatchBatch(ctx, chunkItems[b:bEnd], batchSize)
		if err := s.db.InsertMatches(jobID, results); err != nil {
			return s.failJob(jobID, fmt.Errorf("persist matches: %w", err))
		}
	}

	progress := progressParsed + progressMatchBand*end/len(items)
	if err := s.db.UpdateJobProgress(jobID, progress, "matching", chunk+1); err != nil {
		return s.failJob(jobID, err)
	}
	s.logger.Info("chunk matched",
		zap.String("jobId", jobID), zap.Int("chunk", chunk),
		zap.Int("items", end-start), zap.Int("progress", progress))

	if end < len(items) {
		if err := s.scheduleWithRetry(ctx, jobID, chunk+1); err != nil {
			return s.failJob(jobID, fmt.Errorf("schedule continuation: %w", err))
		}
		return nil
	}

	return s.finalize(ctx, jobID, started)
}

func (s *Service) startJob(ctx context.Context, job *internal.ProcessingJob) error {
	if err := s.db.UpdateJobStatus(job.ID, internal.JobProcessing, nil); err != nil {
		return err
	}
	if err := s.db.ClearJobResults(job.ID); err != nil {
		return err
	}

	raw, err := os.ReadFile(job.FileRef)
	if err != nil {
		return err
	}
	items, headerIdx, err := ingest.Parse(raw, job.FileName)
	if err != nil {
		return err
	}
	if err := s.db.InsertLineItems(job.ID, items); err != nil {
		return err
	}
	if err := s.db.SetJobTotalItems(job.ID, len(items)); err != nil {
		return err
	}
	if err := s.db.UpdateJobProgress(job.ID, progressParsed, "parsing", 0); err != nil {
		return err
	}

	s.logger.Info("file parsed",
		zap.String("jobId", job.ID), zap.String("file", job.FileName),
		zap.Int("items", len(items)), zap.Int("headerRow", headerIdx))
	return nil
}

func (s *Service) finalize(ctx context.Context, jobID string, started time.Time) error {
	job, err := s.db.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil || job.Status != internal.JobProcessing {
		return nil
	}

	results, err := s.db.ListMatches(jobID)
	if err != nil {
		return s.failJob(jobID, err)
	}
	if err := s.db.UpdateJobProgress(jobID, progressParsed+progressMatchBand, "optimizing", job.ChunkCursor); err != nil {
		return s.failJob(jobID, err)
	}

	idx, err := s.catalogIndex()
	if err != nil {
		return s.failJob(jobID, err)
	}
	optimizer := savings.NewOptimizer(s.cfg, idx)

	outcomes := make([]savings.ItemOutcome, 0, len(results))
	recs := make(map[int]*internal.Recommendation, len(results))
	matched, withSavings := 0, 0
	for _, result := range results {
		rec := optimizer.Optimize(result)
		outcomes = append(outcomes, savings.ItemOutcome{Match: result, Recommendation: rec})
		recs[result.Item.RowNumber] = rec
		if result.Product != nil {
			matched++
		}
		if rec != nil && rec.Type != internal.RecommendNone {
			withSavings++
		}
	}
	if err := s.db.InsertRecommendations(jobID, recs); err != nil {
		return s.failJob(jobID, fmt.Errorf("persist recommendations: %w", err))
	}

	summary := savings.Summarize(outcomes)
	rows := report.BuildRows(outcomes)
	artifact, err := s.renderer.Render(job.FileName, rows, summary)
	if err != nil {
		return s.failJob(jobID, fmt.Errorf("render report: %w", err))
	}
	if err := s.db.CompleteJob(jobID, artifact); err != nil {
		return s.failJob(jobID, err)
	}

	_ = s.db.InsertRun(jobID,
		map[string]float64{"finalizeMs": float64(time.Since(started).Milliseconds())},
		map[string]int{"items": len(results), "matched": matched, "withSavings": withSavings},
	)

	s.logger.Info("job completed",
		zap.String("jobId", jobID), zap.Int("items", len(results)),
		zap.Int("matched", matched), zap.Int("withSavings", withSavings),
		zap.Float64("totalSavings", summary.TotalSavings), zap.String("artifact", artifact))
	return nil
}

// ExportJob re-renders the report artifact for a job from its stored
// matches and recommendations.
func (s *Service) ExportJob(jobID string) (string, error) {
	job, err := s.db.GetJob(jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("job not found: %s", jobID)
	}

	results, err := s.db.ListMatches(jobID)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no results for job: %s", jobID)
	}
	recs, err := s.db.ListRecommendations(jobID)
	if err != nil {
		return "", err
	}

	outcomes := make([]savings.ItemOutcome, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, savings.ItemOutcome{
			Match:          result,
			Recommendation: recs[result.Item.RowNumber],
		})
	}

	return s.renderer.Render(job.FileName, report.BuildRows(outcomes), savings.Summarize(outcomes))
}

// scheduleWithRetry retries the continuation with doubling delays before
// giving up and failing the job. With no scheduler the caller (RunJob)
// drives chunks and nothing needs enqueueing.
func (s *Service) scheduleWithRetry(ctx context.Context, jobID string, nextChunk int) error {
	if s.scheduler == nil {
		return nil
	}

	err := s.scheduler.ScheduleContinuation(jobID, nextChunk)
	if err == nil {
		return nil
	}

	delay := time.Duration(s.cfg.ContinuationDelayMs) * time.Millisecond
	for attempt := 1; attempt <= s.cfg.ContinuationRetries; attempt++ {
		s.logger.Warn("continuation retry",
			zap.String("jobId", jobID), zap.Int("chunk", nextChunk),
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		if err = s.scheduler.ScheduleContinuation(jobID, nextChunk); err == nil {
			return nil
		}
		delay *= 2
	}
	return err
}

func (s *Service) failJob(jobID string, cause error) error {
	msg := cause.Error()
	if err := s.db.UpdateJobStatus(jobID, internal.JobFailed, &msg); err != nil {
		return errors.Join(cause, err)
	}
	s.logger.Error("job failed", zap.String("jobId", jobID), zap.Error(cause))
	return cause
}

func (s *Service) catalogIndex() (*catalog.Index, error) {
	s.indexOnce.Do(func() {
		products, err := s.db.ListProducts()
		if err != nil {
			s.indexErr = err
			return
		}
		if len(products) == 0 {
			s.indexErr = errors.New("catalog is empty; load products first")
			return
		}
		idx := catalog.BuildIndex(products)

		embeddings, err := s.db.LoadEmbeddings()
		if err != nil {
			s.indexErr = err
			return
		}
		for id, vector := range embeddings {
			idx.SetEmbedding(id, vector)
		}
		s.index = idx
	})
	return s.index, s.indexErr
}

// EmbedCatalog fills in missing product embeddings through the
// configured provider so the vector tier has something to search.
func (s *Service) EmbedCatalog(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, errors.New("no embedding provider configured")
	}

	products, err := s.db.ListProducts()
	if err != nil {
		return 0, err
	}
	existing, err := s.db.LoadEmbeddings()
	if err != nil {
		return 0, err
	}

	embedded := 0
	for _, p := range products {
		if _, ok := existing[p.ID]; ok {
			continue
		}
		vector, err := s.embedder.Embed(ctx, embedText(p))
		if err != nil {
			return embedded, fmt.Errorf("embed product %d: %w", p.ID, err)
		}
		if err := s.db.SetProductEmbedding(p.ID, vector); err != nil {
			return embedded, err
		}
		embedded++
	}
	return embedded, nil
}

func embedText(p internal.CatalogProduct) string {
	text := p.Name
	if p.Brand != nil && *p.Brand != "" {
		text = *p.Brand + " " + text
	}
	if p.SKU != "" {
		text += " " + p.SKU
	}
	return text
}
