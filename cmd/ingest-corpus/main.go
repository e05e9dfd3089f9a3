package main

import (
	"context"
	"flag"
	"log"
	"time"

	"regintel-backend/chunker"
	"regintel-backend/config"
	"regintel-backend/ecfr"
	"regintel-backend/embedding"
	"regintel-backend/service"
	"regintel-backend/storage"
	"regintel-backend/vectorstore"

	"go.uber.org/zap"
)

// ingest-corpus fetches a regulatory part from the eCFR, chunks and embeds it,
// and populates the vector index. Safe to re-run: unchanged chunks are
// deduplicated by content hash.
func main() {
	var (
		title = flag.Int("title", 0, "CFR title number (default from ECFR_TITLE)")
		part  = flag.String("part", "", "CFR part (default from ECFR_PART)")
		date  = flag.String("date", "", "point-in-time date YYYY-MM-DD (default from ECFR_DATE)")
		clear = flag.Bool("clear", false, "clear the index before ingesting")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	loc := ecfr.Locator{Title: cfg.ECFRTitle, Part: cfg.ECFRPart, Date: cfg.ECFRDate}
	if *title != 0 {
		loc.Title = *title
	}
	if *part != "" {
		loc.Part = *part
	}
	if *date != "" {
		loc.Date = *date
	}

	store, err := initVectorStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()

	if *clear {
		if err := store.Clear(ctx); err != nil {
			logger.Fatal("Failed to clear index", zap.Error(err))
		}
		logger.Info("Cleared vector index")
	}

	snapshotCache, err := storage.New(storage.Config{
		Type:         storage.Type(cfg.StorageType),
		LocalPath:    cfg.StorageLocalPath,
		S3Bucket:     cfg.S3Bucket,
		S3Region:     cfg.S3Region,
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
	})
	if err != nil {
		logger.Fatal("Failed to initialize snapshot cache", zap.Error(err))
	}

	ingestService := service.NewIngestService(
		service.IngestWithFetcher(ecfr.NewClient(cfg.ECFRBaseURL, 60*time.Second)),
		service.IngestWithChunker(chunker.New(cfg.ChunkWindowSize, cfg.ChunkOverlap)),
		service.IngestWithEmbedder(embedding.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)),
		service.IngestWithStore(store),
		service.IngestWithCache(snapshotCache),
		service.IngestWithLogger(logger),
	)

	logger.Info("Ingesting regulatory corpus", zap.String("locator", loc.String()))

	start := time.Now()
	result, err := ingestService.Refresh(ctx, loc)
	if err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}

	logger.Info("Ingestion complete",
		zap.Int("sections", result.Sections),
		zap.Int("chunks", result.Chunks),
		zap.Int("indexed", result.Indexed),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func initVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case config.VectorStorePostgres:
		return vectorstore.NewPostgresStore(context.Background(), cfg.DatabaseURL, cfg.EmbeddingDimension)
	default:
		return vectorstore.NewSQLiteStore(cfg.VectorDBPath)
	}
}
