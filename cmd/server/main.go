package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gwi.com/product-recommender/internal/api"
	"gwi.com/product-recommender/internal/config"
	"gwi.com/product-recommender/internal/core"
	"gwi.com/product-recommender/internal/logger"
	"gwi.com/product-recommender/internal/session"
	"gwi.com/product-recommender/internal/store"
)

// Gemini embedding quota is 1500 requests per minute.
const ingestInterval = 40 * time.Millisecond

func main() {
	ingestDataFlag := flag.Bool("ingest", false, "Embed the product table and exit")
	dataFile := flag.String("data", "products.md", "Markdown table of products used by -ingest")
	flag.Parse()

	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(cfg.LogLevel, cfg.LogFilePath)
	defer log.Sync()

	if err := run(cfg, log, *ingestDataFlag, *dataFile); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, ingest bool, dataFile string) error {
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, log.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	llmService, err := core.NewLLMService(context.Background(), core.LLMOptions{
		APIKey:         cfg.GeminiAPIKey,
		ChatModel:      cfg.RAGModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    float32(cfg.RAGTemperature),
		Timeout:        cfg.ModelTimeout,
	}, log.Named("llm"))
	if err != nil {
		return err
	}
	defer llmService.Close()

	if ingest {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("starting product ingestion", zap.String("file", dataFile))
		n, err := dbStore.IngestProductsFromFile(ctx, dataFile, llmService.Embed, ingestInterval)
		if err != nil {
			return fmt.Errorf("product ingestion failed: %w", err)
		}
		log.Info("product ingestion complete", zap.Int("chunks", n))
		return nil
	}

	ragService, err := core.NewRAGService(dbStore, llmService, float32(cfg.SimilarityThreshold), log.Named("retriever"))
	if err != nil {
		return fmt.Errorf("failed to initialize retriever: %w", err)
	}

	sessions := session.NewMemoryStore(cfg.SessionTTL)
	chain := core.NewChain(llmService, ragService, sessions, cfg.RetrievalK, log.Named("chain"))
	chatService := core.NewChatService(dbStore, chain, sessions)

	apiHandler := api.NewAPIHandler(chatService, log.Named("api"))
	router := api.NewRouter(apiHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * cfg.ModelTimeout, // a turn makes up to three sequential model calls
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
	case <-quit:
	}
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited gracefully", zap.Int("sessions", sessions.Sessions()))
	return nil
}
