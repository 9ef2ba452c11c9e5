package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synapse-rag/synapse/internal/config"
	"github.com/synapse-rag/synapse/internal/embed"
	"github.com/synapse-rag/synapse/internal/ingest"
	"github.com/synapse-rag/synapse/internal/llm"
	"github.com/synapse-rag/synapse/internal/rag"
	"github.com/synapse-rag/synapse/internal/server"
	"github.com/synapse-rag/synapse/internal/session"
	"github.com/synapse-rag/synapse/internal/store"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Synapse HTTP API. Sessions, document uploads, and
streaming question answering are served until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	lock := store.NewDirLock(cfg.Storage.DataDir)
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	meta, err := store.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, "synapse.db"))
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer meta.Close()

	keyword, err := store.NewKeywordIndex(cfg.Storage.KeywordBackend, cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open keyword index: %w", err)
	}
	defer keyword.Close()

	// NewHNSWIndex places its graphs under <dataDir>/vectors itself.
	vectors, err := store.NewHNSWIndex(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer vectors.Close()

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer embedder.Close()

	generator, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer generator.Close()

	reranker, err := rag.NewReranker(ctx, cfg.Reranker.Variant, cfg.Reranker.Endpoint,
		cfg.Reranker.APIKey, cfg.Reranker.Model, cfg.Reranker.Timeout)
	if err != nil {
		return fmt.Errorf("failed to initialize reranker: %w", err)
	}
	defer reranker.Close()

	registry := session.NewRegistry(meta, keyword, vectors, cfg.Sessions.TTL)
	registry.StartSweeper(ctx, cfg.Sessions.SweepInterval)
	defer registry.Stop()

	ingestor := ingest.NewService(meta, keyword, vectors, embedder, cfg.Ingest)

	retriever := rag.NewRetriever(meta, keyword, vectors, embedder, reranker, rag.RetrieverConfig{
		Weights: rag.Weights{
			Vector:  cfg.Search.VectorWeight,
			Keyword: cfg.Search.KeywordWeight,
		},
		RRFConstant:   cfg.Search.RRFConstant,
		RetrievalTopK: cfg.Search.RetrievalTopK,
		RerankTopK:    cfg.Search.RerankTopK,
	})

	chain := rag.NewChain(retriever, rag.NewContextualizer(generator), generator, meta, rag.ChainConfig{
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Language:     cfg.LLM.Language,
		HistoryTurns: cfg.Search.HistoryTurns,
	})

	srv := server.New(registry, meta, ingestor, chain)

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", slog.String("addr", cfg.Server.Addr))
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
	}

	slog.Info("server_stopping")

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Warn("shutdown_incomplete", slog.String("error", err.Error()))
	}

	// Persist vector graphs before the deferred Close
	if err := vectors.Save(); err != nil {
		slog.Warn("vector_save_failed", slog.String("error", err.Error()))
	}
	return nil
}
