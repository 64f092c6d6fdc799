package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainwatch/pumpwatch/internal/anomaly"
	"github.com/chainwatch/pumpwatch/internal/config"
	"github.com/chainwatch/pumpwatch/internal/detect"
	"github.com/chainwatch/pumpwatch/internal/ingest"
	"github.com/chainwatch/pumpwatch/internal/model"
	"github.com/chainwatch/pumpwatch/internal/report"
	"github.com/chainwatch/pumpwatch/internal/store"
)

const topSenderCount = 10

func main() {
	var configPath, inputPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file (optional)")
	flag.StringVar(&inputPath, "input", "", "Path to JSONL transaction dump")
	flag.Parse()

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pumpwatch -input <transactions.jsonl> [-config config.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().
		Str("input", inputPath).
		Str("lookback_mode", cfg.Detector.LookbackMode).
		Msg("Starting pumpwatch analysis")

	if err := run(cfg, inputPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("Analysis failed")
	}
}

// run executes one batch analysis: ingest, detect, enrich, report, and
// optionally persist. Single pass, no partial results on failure.
func run(cfg *config.Config, inputPath string, logger zerolog.Logger) error {
	normalizer := ingest.NewNormalizer(ingest.NewTokenClassifier(cfg.Ingest.TokenClassifier))
	reader := ingest.NewReader(normalizer, cfg.Ingest.OnMalformed == "skip", logger)

	txs, _, err := reader.ReadFile(inputPath)
	if err != nil {
		return err
	}

	detector := detect.NewDetector(cfg.Detector, logger)
	aggregates := detector.Aggregate(txs)
	events := detector.Detect(aggregates)

	evidence := make(map[int][]model.Transaction, len(events))
	for i, event := range events {
		evidence[i] = detector.Evidence(event, txs)
	}

	enricher := anomaly.NewEnricher(anomaly.ZScoreScorer{}, cfg.Anomaly.Contamination, logger)
	annotations, err := enricher.Enrich(txs)
	if err != nil {
		return err
	}

	result := &report.Report{
		Aggregates:  aggregates,
		Events:      events,
		Evidence:    evidence,
		Annotations: annotations,
		TopSenders:  detect.TopSenders(txs, topSenderCount),
	}
	if err := report.Write(os.Stdout, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Database.URL != "" {
		if err := persist(cfg.Database.URL, result, logger); err != nil {
			return err
		}
	}

	logger.Info().
		Int("events", len(events)).
		Msg("Analysis complete")
	return nil
}

func persist(url string, result *report.Report, logger zerolog.Logger) error {
	ctx := context.Background()

	db, err := store.Open(ctx, url, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	for i, event := range result.Events {
		if _, err := db.InsertEvent(ctx, event, result.Evidence[i]); err != nil {
			return err
		}
	}
	return db.InsertAnnotations(ctx, result.Annotations)
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
		}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
