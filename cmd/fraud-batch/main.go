package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/fraud-scorer/internal/async"
	"github.com/joseph-ayodele/fraud-scorer/internal/common"
	"github.com/joseph-ayodele/fraud-scorer/internal/export"
	"github.com/joseph-ayodele/fraud-scorer/internal/ingest"
	"github.com/joseph-ayodele/fraud-scorer/internal/materialize"
	"github.com/joseph-ayodele/fraud-scorer/internal/model"
	"github.com/joseph-ayodele/fraud-scorer/internal/pipeline"
	repo "github.com/joseph-ayodele/fraud-scorer/internal/repository"
	"github.com/joseph-ayodele/fraud-scorer/internal/scoring"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in       = flag.String("in", "", "single CSV file to score")
		dir      = flag.String("dir", "", "directory of CSV files to score")
		watch    = flag.Bool("watch", false, "keep watching --dir and score new CSV files")
		xlsx     = flag.Bool("xlsx", false, "also write the Excel report for every scored file")
		out      = flag.String("out", "", "directory for Excel reports (defaults to PROCESSED_DIR)")
		inmem    = flag.Bool("inmem", false, "record runs in an in-memory SQLite database")
		noRecord = flag.Bool("no-record", false, "do not record runs")
	)
	flag.Parse()

	if (*in == "") == (*dir == "") {
		printError("Error: exactly one of --in or --dir is required\n")
		os.Exit(1)
	}
	if *watch && *dir == "" {
		printError("Error: --watch requires --dir\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	if *out == "" {
		*out = cfg.Storage.ProcessedDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := model.Load(cfg.Models.Dir, logger)
	if err != nil {
		logger.Error("failed to load models", "dir", cfg.Models.Dir, "error", err)
		os.Exit(1)
	}

	var runs repo.RunRepository
	if !*noRecord {
		dsn := cfg.Database.DSN
		if *inmem {
			dsn = ":memory:"
		}
		db, err := repo.Open(ctx, repo.Config{DSN: dsn, MaxConns: 2, DialTimeout: 3 * time.Second}, logger)
		if err != nil {
			logger.Error("failed to open run database", "error", err)
			os.Exit(1)
		}
		defer repo.Close(db, logger)
		if err := repo.Migrate(ctx, db); err != nil {
			logger.Error("failed to migrate run database", "error", err)
			os.Exit(1)
		}
		runs = repo.NewRunRepository(db, logger)
	}

	proc := pipeline.NewProcessor(logger,
		scoring.NewScorer(reg, cfg.Scoring.ChunkSize, logger),
		materialize.New(cfg.Storage.ProcessedDir, cfg.Storage.PublicDir, materialize.WithLogger(logger)),
		runs, nil, nil)
	uc := ingest.NewUsecase(proc, logger)

	var reporter *export.Service
	if *xlsx {
		reporter = export.NewService(logger)
	}
	writeReport := func(r ingest.FileResult) {
		if reporter == nil || r.Err != nil {
			return
		}
		if err := writeXLSX(ctx, reporter, r.Result, *out); err != nil {
			logger.Error("failed to write excel report", "file", r.Result.FileName, "error", err)
		}
	}

	switch {
	case *in != "":
		r := uc.IngestPath(ctx, *in)
		writeReport(r)
		renderSummary(os.Stdout, []ingest.FileResult{r})
		if r.Err != nil {
			os.Exit(1)
		}
	case *watch:
		runWatch(ctx, logger, uc, *dir, writeReport)
	default:
		results, stats, err := uc.IngestDirectory(ctx, *dir, true)
		for _, r := range results {
			writeReport(r)
		}
		renderSummary(os.Stdout, results)
		fmt.Printf("scanned=%d matched=%d succeeded=%d failed=%d\n", stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)
		if err != nil {
			logger.Error("directory scoring stopped", "error", err)
			os.Exit(1)
		}
		if stats.Failed > 0 {
			os.Exit(1)
		}
	}
}

func runWatch(ctx context.Context, logger *slog.Logger, uc *ingest.Usecase, dir string, after func(ingest.FileResult)) {
	var mu sync.Mutex
	q := async.NewProcessorQueue(uc, logger,
		async.WithWorkers(1),
		async.WithProcessTimeout(15*time.Minute),
		async.WithResultHook(func(_ async.Job, r ingest.FileResult) {
			after(r)
			mu.Lock()
			renderSummary(os.Stdout, []ingest.FileResult{r})
			mu.Unlock()
		}),
	)

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("watching for transaction files", "dir", dir)

	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			if err := q.Enqueue(ctx, async.Job{Path: p, TraceID: filepath.Base(p)}); err != nil {
				logger.Warn("failed to queue file", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher reported an error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	q.Shutdown(shutdownCtx)
}

func writeXLSX(ctx context.Context, svc *export.Service, res *pipeline.Result, outDir string) error {
	data, err := svc.ExportXLSX(ctx, res.ProcessedPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	path := filepath.Join(outDir, export.ReportName(res.FileName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("excel report written", "path", path)
	return nil
}

func renderSummary(w io.Writer, results []ingest.FileResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Input", "Output", "Rows", "Fraudulent", "Fraud %", "Status"})
	for _, r := range results {
		if r.Err != nil {
			table.Append([]string{filepath.Base(r.Path), "-", "-", "-", "-", r.Message()})
			continue
		}
		rate := 0.0
		if r.Result.Rows > 0 {
			rate = float64(r.Result.FraudCount) / float64(r.Result.Rows) * 100
		}
		table.Append([]string{
			filepath.Base(r.Path),
			r.Result.FileName,
			strconv.Itoa(r.Result.Rows),
			strconv.Itoa(r.Result.FraudCount),
			fmt.Sprintf("%.2f", rate),
			"ok",
		})
	}
	table.Render()
}
