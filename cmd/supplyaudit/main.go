package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"supplyaudit/internal/catalog"
	"supplyaudit/internal/config"
	"supplyaudit/internal/embed"
	"supplyaudit/internal/ingest"
	"supplyaudit/internal/matching"
	"supplyaudit/internal/orchestrator"
	"supplyaudit/internal/report"
	"supplyaudit/internal/savings"
	"supplyaudit/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	logger, err := zap.NewProduction()
	must(err)
	defer func() { _ = logger.Sync() }()

	cmd := os.Args[1]
	switch cmd {
	case "catalog:load":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "master catalog csv/xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		products, err := catalog.LoadFile(*file)
		must(err)
		must(db.UpsertProducts(products))
		fmt.Printf("catalog loaded: %d products\n", len(products))
	case "catalog:embed":
		must(cfg.Require("EMBED_API_TOKEN", cfg.EmbedAPIToken))
		svc := newService(db, cfg, nil, logger)
		count, err := svc.EmbedCatalog(context.Background())
		must(err)
		fmt.Printf("catalog embeddings filled: %d products\n", count)
	case "job:submit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "customer usage/invoice file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		// Stage a copy under the upload dir so the worker can read it
		// after the original moves.
		staged, err := stageUpload(cfg.UploadDir, *file)
		must(err)
		svc := newService(db, cfg, nil, logger)
		job, err := svc.SubmitJob(filepath.Base(*file), staged)
		must(err)
		fmt.Printf("job submitted id=%s file=%s\n", job.ID, job.FileName)
	case "job:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.String("id", "", "job id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*jobID) == "" {
			must(fmt.Errorf("--id is required"))
		}
		svc := newService(db, cfg, nil, logger)
		job, err := svc.RunJob(context.Background(), *jobID)
		must(err)
		fmt.Printf("job done id=%s status=%s artifact=%s\n", job.ID, job.Status, derefString(job.ArtifactRef))
	case "job:status":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.String("id", "", "job id")
		_ = fs.Parse(os.Args[2:])
		job, err := db.GetJob(*jobID)
		must(err)
		if job == nil {
			must(fmt.Errorf("job not found: %s", *jobID))
		}
		fmt.Printf("id=%s status=%s progress=%d%% step=%s chunk=%d items=%d artifact=%s error=%s\n",
			job.ID, job.Status, job.Progress, job.CurrentStep, job.ChunkCursor,
			job.TotalItems, derefString(job.ArtifactRef), derefString(job.Error))
	case "job:cancel":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.String("id", "", "job id")
		_ = fs.Parse(os.Args[2:])
		svc := newService(db, cfg, nil, logger)
		must(svc.CancelJob(*jobID))
		fmt.Printf("job canceled id=%s\n", *jobID)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		jobID := fs.String("id", "", "job id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*jobID) == "" {
			must(fmt.Errorf("--id is required"))
		}
		svc := newService(db, cfg, nil, logger)
		artifact, err := svc.ExportJob(*jobID)
		must(err)
		fmt.Printf("exported job %s to %s\n", *jobID, artifact)
	case "run":
		// One-shot: file in, workbook out, no job record.
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "customer usage/invoice file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		raw, err := os.ReadFile(*file)
		must(err)
		items, _, err := ingest.Parse(raw, filepath.Base(*file))
		must(err)

		products, err := db.ListProducts()
		must(err)
		if len(products) == 0 {
			must(fmt.Errorf("catalog is empty; run catalog:load first"))
		}
		idx := catalog.BuildIndex(products)
		embeddings, err := db.LoadEmbeddings()
		must(err)
		for id, vector := range embeddings {
			idx.SetEmbedding(id, vector)
		}

		var embedder embed.Provider
		if cfg.EmbedAPIToken != "" {
			embedder = embed.NewClient(cfg)
		}
		matcher := matching.NewMatcher(cfg, idx, embedder, nil)
		results := matcher.MatchBatch(context.Background(), items, cfg.MatchBatchSize)

		optimizer := savings.NewOptimizer(cfg, idx)
		outcomes := make([]savings.ItemOutcome, 0, len(results))
		for _, result := range results {
			outcomes = append(outcomes, savings.ItemOutcome{Match: result, Recommendation: optimizer.Optimize(result)})
		}
		summary := savings.Summarize(outcomes)

		renderer := report.NewXLSXRenderer(cfg.OutputDir)
		artifact, err := renderer.Render(filepath.Base(*file), report.BuildRows(outcomes), summary)
		must(err)
		fmt.Printf("run complete items=%d matched=%d savings=%.2f artifact=%s\n",
			summary.TotalItems, summary.MatchedItems, summary.TotalSavings, artifact)
	default:
		usage()
		os.Exit(1)
	}
}

func newService(db *storage.DB, cfg config.Config, sched orchestrator.Scheduler, logger *zap.Logger) *orchestrator.Service {
	var embedder embed.Provider
	if cfg.EmbedAPIToken != "" {
		embedder = embed.NewClient(cfg)
	}
	var extractor matching.Extractor
	if cfg.AIMatchEnabled && cfg.AIAPIToken != "" {
		extractor = matching.NewAIClient(cfg)
	}
	renderer := report.NewXLSXRenderer(cfg.OutputDir)
	return orchestrator.NewService(db, cfg, renderer, embedder, extractor, sched, logger)
}

func usage() {
	fmt.Println(`usage: supplyaudit <command> [flags]

commands:
  catalog:load   --file <path>   load the master product catalog (csv/xlsx)
  catalog:embed                  fill missing product embeddings
  job:submit     --file <path>   register a customer file as a pending job
  job:run        --id <jobId>    run a job to completion
  job:status     --id <jobId>    show job state
  job:cancel     --id <jobId>    cancel a job
  export:xlsx    --id <jobId>    re-render the report for a finished job
  run            --file <path>   one-shot file in, workbook out, no job record`)
}

func stageUpload(uploadDir, file string) (string, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", err
	}
	staged := filepath.Join(uploadDir, filepath.Base(file))
	if err := os.WriteFile(staged, raw, 0o644); err != nil {
		return "", err
	}
	return staged, nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
