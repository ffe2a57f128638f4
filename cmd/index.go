package cmd

import (
	"fmt"
	"time"

	"meetindex/internal/index"

	"github.com/spf13/cobra"
)

var (
	flagWorkers      int
	flagBatchSize    int
	flagChunkSize    int
	flagChunkOverlap int
	flagLenient      bool
	flagForce        bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the search index from the meeting corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagChunkSize > 0 {
			cfg.Chunker.Size = flagChunkSize
		}
		if cmd.Flags().Changed("chunk-overlap") {
			cfg.Chunker.Overlap = flagChunkOverlap
		}
		if flagWorkers > 0 {
			cfg.Index.Workers = flagWorkers
		}
		if flagBatchSize > 0 {
			cfg.Index.BatchSize = flagBatchSize
		}
		if flagLenient {
			cfg.Index.Lenient = true
		}

		provider, closeProvider, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		defer closeProvider()

		fmt.Printf("Indexing %s and %s...\n", cfg.Corpus.TranscriptsDir, cfg.Corpus.SummariesDir)
		start := time.Now()

		if flagForce {
			built, err := index.Build(cmd.Context(), provider, indexConfig(cfg))
			if err != nil {
				return err
			}
			if err := index.Persist(built, provider.Model(), indexConfig(cfg), cfg.Index.Dir); err != nil {
				return err
			}
			printStats(built.Stats, time.Since(start))
			return nil
		}

		loaded, err := index.BuildOrLoad(cmd.Context(), provider, indexConfig(cfg), cfg.Index.Dir)
		if err != nil {
			return err
		}
		defer loaded.Close()

		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Chunks:     %d\n", loaded.Index.Count())
		fmt.Printf("  Dimension:  %d\n", loaded.Index.Dimension())
		fmt.Printf("  Model:      %s\n", loaded.Manifest.Model)
		return nil
	},
}

func printStats(stats index.Stats, elapsed time.Duration) {
	fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Documents:  %d\n", stats.Documents)
	fmt.Printf("  Chunks:     %d\n", stats.Chunks)
	if stats.Skipped > 0 {
		fmt.Printf("  Skipped:    %d\n", stats.Skipped)
	}
	fmt.Printf("  Dimension:  %d\n", stats.Dimension)
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel embedding workers (default NumCPU)")
	indexCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "chunks per embedding request")
	indexCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "chunk size in characters")
	indexCmd.Flags().IntVar(&flagChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters")
	indexCmd.Flags().BoolVar(&flagLenient, "lenient", false, "drop chunks whose embedding keeps failing instead of aborting")
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild even if a persisted index exists")
	rootCmd.AddCommand(indexCmd)
}
