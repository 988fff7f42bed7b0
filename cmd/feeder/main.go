package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/resilience"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "path to config file (kafka and postgres settings)")
	input := flag.String("input", "", "JSON file of documents or video records; - for stdin")
	mode := flag.String("mode", "http", "delivery: http, kafka or postgres")
	baseURL := flag.String("url", "http://localhost:8080", "searcher base URL for http mode")
	batchSize := flag.Int("batch", 500, "documents per batch")
	reset := flag.Bool("reset", false, "reset the collection before sending (http mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, *mode, *baseURL, *batchSize, *reset); err != nil {
		slog.Error("feed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input, mode, baseURL string, batchSize int, reset bool) error {
	if input == "" {
		return fmt.Errorf("-input is required")
	}
	f := os.Stdin
	if input != "-" {
		var err error
		if f, err = os.Open(input); err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
	}
	docs, err := ingestion.ReadDocuments(f)
	if err != nil {
		return err
	}

	var pub publisher.Publisher
	switch mode {
	case "http":
		hp := publisher.NewHTTP(baseURL, nil)
		if reset {
			if err := hp.Reset(ctx); err != nil {
				return fmt.Errorf("resetting collection: %w", err)
			}
			slog.Info("collection reset", "url", baseURL)
		}
		pub = hp
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Documents)
		defer producer.Close()
		pub = publisher.NewKafka(producer, "feeder")
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{MaxAttempts: 3})
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		pub = publisher.NewPostgres(db)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	start := time.Now()
	prefix := "feed-" + uuid.NewString()[:8]
	sent, err := publisher.Send(ctx, pub, docs, batchSize, prefix)
	slog.Info("feed finished",
		"mode", mode,
		"documents", len(docs),
		"sent", sent,
		"duration", time.Since(start),
	)
	return err
}
