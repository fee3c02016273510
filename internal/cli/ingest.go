package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lifeflow/guidance/internal/cache"
	"github.com/lifeflow/guidance/internal/knowledge"
	"github.com/lifeflow/guidance/internal/llm"
)

var (
	ingestSourcesFile string
	ingestNoCache     bool
)

// ingestCmd builds the knowledge index from a sources file
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch sources and build the knowledge index",
	Long: `Fetch the documents listed in a sources file, extract and chunk their
text, embed the chunks, and write the knowledge index to disk.

The sources file is YAML:

  - url: https://www.irdai.gov.in/claims-procedure
    domain: Insurance
    title: IRDAI claims procedure
  - url: https://uidai.gov.in/my-aadhaar/update-aadhaar.html
    domain: Identity Documents

Fetches honor robots.txt and are rate-limited per host. Fetched pages are
cached so re-running ingest only downloads changed sources.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSourcesFile, "sources", "s", "sources.yaml", "sources file")
	ingestCmd.Flags().BoolVar(&ingestNoCache, "no-cache", false, "bypass the fetch cache")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(ingestSourcesFile)
	if err != nil {
		return fmt.Errorf("read sources file: %w", err)
	}
	var sources []knowledge.Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return fmt.Errorf("parse sources file: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources in %s", ingestSourcesFile)
	}

	embedder, err := llm.NewEmbedder(llm.EmbedConfigFromModel(cfg.Embedding))
	if err != nil {
		return err
	}

	var fetchCache cache.Cache
	if cfg.Cache.Enabled && !ingestNoCache {
		fetchCache = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
	}
	fetcher := knowledge.NewFetcher(cfg.HTTP.UserAgent, cfg.HTTP.RatePerHost, fetchCache)
	chunker := knowledge.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, cfg.Ingest.MinChunkSize)

	index, err := knowledge.LoadIndex(cfg.Retrieval.IndexPath)
	if err != nil {
		return fmt.Errorf("load knowledge index: %w", err)
	}

	ingestor := knowledge.NewIngestor(fetcher, chunker, embedder, index, cfg.Concurrency.EmbedWorkers)

	if verbose {
		fmt.Fprintf(os.Stderr, "Ingesting %d sources with %d workers\n", len(sources), cfg.Concurrency.EmbedWorkers)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := ingestor.Ingest(ctx, sources)
	if err != nil {
		return err
	}

	if err := index.Save(cfg.Retrieval.IndexPath); err != nil {
		return fmt.Errorf("save knowledge index: %w", err)
	}

	fmt.Printf("Ingested %d documents (%d chunks) in %s\n", report.Documents, report.Chunks, report.Elapsed.Round(time.Second))
	if len(report.Failed) > 0 {
		fmt.Printf("Failed sources:\n")
		for _, f := range report.Failed {
			fmt.Printf("  %s\n", f)
		}
	}
	fmt.Printf("Index now holds %d chunks at %s\n", index.Len(), cfg.Retrieval.IndexPath)

	return nil
}
