package main

import (
	"context"
	"log"
	"time"

	"regintel-backend/chunker"
	"regintel-backend/config"
	"regintel-backend/ecfr"
	"regintel-backend/embedding"
	"regintel-backend/handlers"
	"regintel-backend/llm"
	"regintel-backend/service"
	"regintel-backend/storage"
	"regintel-backend/vectorstore"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize vector store
	store, err := initVectorStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Vector store initialized", zap.String("backend", string(cfg.VectorStore)))

	// Initialize corpus snapshot cache
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

	// Initialize Gemini clients
	embedder := embedding.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)

	generator, err := llm.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GenerationModel, cfg.GeminiTier, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}
	defer generator.Close()

	ecfrClient := ecfr.NewClient(cfg.ECFRBaseURL, 60*time.Second)
	locator := ecfr.Locator{Title: cfg.ECFRTitle, Part: cfg.ECFRPart, Date: cfg.ECFRDate}

	// Initialize services
	auditService := service.NewAuditService(
		service.AuditWithStore(store),
		service.AuditWithEmbedder(embedder),
		service.AuditWithGenerator(generator),
		service.AuditWithTopK(cfg.TopK),
		service.AuditWithLogger(logger),
	)

	ingestService := service.NewIngestService(
		service.IngestWithFetcher(ecfrClient),
		service.IngestWithChunker(chunker.New(cfg.ChunkWindowSize, cfg.ChunkOverlap)),
		service.IngestWithEmbedder(embedder),
		service.IngestWithStore(store),
		service.IngestWithCache(snapshotCache),
		service.IngestWithLogger(logger),
	)

	// Initialize handlers
	auditHandler := handlers.NewAuditHandler(auditService, ingestService, locator, logger)
	protocolHandler := handlers.NewProtocolHandler(logger)

	// Setup Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		count, err := store.Count(c.Request.Context())
		if err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"status":         "ok",
			"indexed_chunks": count,
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.POST("/audits", auditHandler.RunAudit)
		api.POST("/corpus/refresh", auditHandler.RefreshCorpus)
		api.POST("/protocols/extract", protocolHandler.ExtractText)
	}

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func initVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case config.VectorStorePostgres:
		return vectorstore.NewPostgresStore(context.Background(), cfg.DatabaseURL, cfg.EmbeddingDimension)
	default:
		return vectorstore.NewSQLiteStore(cfg.VectorDBPath)
	}
}
