package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeflow/guidance/internal/api"
	"github.com/lifeflow/guidance/internal/cache"
	"github.com/lifeflow/guidance/internal/classify"
	"github.com/lifeflow/guidance/internal/clarify"
	"github.com/lifeflow/guidance/internal/confidence"
	"github.com/lifeflow/guidance/internal/guidance"
	"github.com/lifeflow/guidance/internal/knowledge"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/retrieve"
	"github.com/lifeflow/guidance/internal/situation"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guidance HTTP API",
	Long: `Start the LifeFlow HTTP API.

The server loads the knowledge index from disk, opens the situation store,
and exposes intake, clarification, guidance, and feedback endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		return fmt.Errorf("no API key configured for provider %s", cfg.LLM.Provider)
	}

	session, store, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	server := api.New(session, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		if verbose {
			fmt.Fprintf(os.Stderr, "Listening on %s\n", cfg.Server.Addr)
		}
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		if verbose {
			fmt.Fprintf(os.Stderr, "Received %v, shutting down\n", sig)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// buildSession wires the full pipeline from configuration. The caller owns
// closing the returned store.
func buildSession(cfg *model.Config) (*situation.Session, situation.Store, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, nil, err
	}

	embedder, err := llm.NewEmbedder(llm.EmbedConfigFromModel(cfg.Embedding))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Cache.Enabled {
		embedCache := cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
		embedder = llm.NewCachingEmbedder(embedder, embedCache, cfg.Cache.TTL)
	}

	index, err := knowledge.LoadIndex(cfg.Retrieval.IndexPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load knowledge index: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Knowledge index: %d chunks\n", index.Len())
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	classifier := classify.NewClassifier(provider, time.Duration(cfg.LLM.ClassifyTimeout)*time.Second)
	clarifier := clarify.NewEngine(provider, cfg.Clarify.SkipThreshold, cfg.Clarify.MaxQuestions,
		time.Duration(cfg.LLM.ClassifyTimeout)*time.Second)
	retriever := retrieve.New(embedder, index, cfg.Retrieval)
	engine := guidance.NewEngine(provider, retriever, confidence.New(cfg.Confidence), store,
		time.Duration(cfg.LLM.GenerateTimeout)*time.Second)

	return situation.NewSession(store, classifier, clarifier, engine), store, nil
}

func openStore(cfg model.StoreConfig) (situation.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return situation.NewSQLiteStore(cfg.Path)
	case "memory":
		return situation.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: sqlite, memory)", cfg.Driver)
	}
}
