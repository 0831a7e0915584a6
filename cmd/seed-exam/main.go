package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pragati/exam-engine/internal/catalog"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/database"
	"github.com/pragati/exam-engine/internal/logger"
	"github.com/pragati/exam-engine/internal/repository"
)

func main() {
	var (
		file   string
		dryRun bool
	)
	flag.StringVar(&file, "file", "", "Path to the exam definition JSON file")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing to the database")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if file == "" {
		fmt.Println("Usage: seed-exam -file exams.json [-dry-run]")
		os.Exit(2)
	}

	// ─── Load & Validate ───────────────────────────────────────────────
	entries, err := catalog.LoadFile(file)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				log.Error().Str("field", field).Msg(msg)
			}
		}
		log.Fatal().Err(err).Str("file", file).Msg("Exam definitions rejected")
	}

	fmt.Printf("=== %d exam(s) in %s ===\n", len(entries), file)
	for _, e := range entries {
		fmt.Printf("  #%d %-40s %3d question(s) %4d min active=%t\n",
			e.Exam.ID, e.Exam.Title, len(e.Questions), e.Exam.DurationMinutes, e.Exam.IsActive)
	}
	if dryRun {
		fmt.Println("Dry run: nothing written.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// ─── Connect ───────────────────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable: cached papers expire on their own")
	}
	var cache *repository.PaperCache
	if rdb != nil {
		defer rdb.Close()
		cache = repository.NewPaperCache(rdb, cfg.PaperCacheTTL)
	}

	// ─── Import ────────────────────────────────────────────────────────
	importer := repository.NewCatalogImporter(pool)
	successCount := 0
	for _, e := range entries {
		exam := e.Exam
		if err := importer.ImportExam(ctx, &exam, e.Questions); err != nil {
			log.Error().Err(err).Int64("exam_id", exam.ID).Msg("Import failed")
			continue
		}
		if cache != nil {
			if err := cache.DeletePaper(ctx, exam.ID); err != nil {
				log.Warn().Err(err).Int64("exam_id", exam.ID).Msg("Failed to invalidate cached paper")
			}
		}
		successCount++
	}

	fmt.Printf("\nSeed completed! Imported %d/%d exam(s).\n", successCount, len(entries))
	if successCount != len(entries) {
		os.Exit(1)
	}
}
