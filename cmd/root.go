package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetindex/internal/config"
	"meetindex/internal/embed"
	"meetindex/internal/index"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig      string
	flagTranscripts string
	flagSummaries   string
	flagIndexDir    string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "meetindex",
	Short: "Semantic search over meeting transcripts and summaries",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func Execute() {
	// Environment overrides (API keys mostly) may live in a .env file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./meetindex.yaml, then ~/.config/meetindex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagTranscripts, "transcripts", "", "transcripts directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSummaries, "summaries", "", "summaries directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagIndexDir, "index-dir", "", "index artifact directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagTranscripts != "" {
		cfg.Corpus.TranscriptsDir = flagTranscripts
	}
	if flagSummaries != "" {
		cfg.Corpus.SummariesDir = flagSummaries
	}
	if flagIndexDir != "" {
		cfg.Index.Dir = flagIndexDir
	}
	return cfg, nil
}

// buildProvider constructs the configured embedding provider, wrapped in
// the on-disk cache when one is configured. The returned closer releases
// the cache database; it is a no-op for uncached providers.
func buildProvider(cfg *config.AppConfig) (embed.Provider, func() error, error) {
	var provider embed.Provider
	switch cfg.Embedder.Type {
	case "ollama":
		o := cfg.Embedder.Ollama
		provider = embed.NewOllama(o.BaseURL, o.Model, time.Duration(o.TimeoutSecs)*time.Second)
	case "openai":
		o := cfg.Embedder.OpenAI
		key := os.Getenv(o.APIKeyEnv)
		if key == "" {
			return nil, nil, fmt.Errorf("embedder %q needs %s set", cfg.Embedder.Type, o.APIKeyEnv)
		}
		provider = embed.NewOpenAI(key, o.BaseURL, o.Model)
	default:
		return nil, nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}

	if cfg.Embedder.CacheDir == "" {
		return provider, func() error { return nil }, nil
	}
	cache, err := embed.NewCache(provider, cfg.Embedder.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return cache, cache.Close, nil
}

// indexConfig translates the app config into build parameters.
func indexConfig(cfg *config.AppConfig) index.Config {
	return index.Config{
		TranscriptsDir: cfg.Corpus.TranscriptsDir,
		SummariesDir:   cfg.Corpus.SummariesDir,
		ChunkSize:      cfg.Chunker.Size,
		ChunkOverlap:   cfg.Chunker.Overlap,
		BatchSize:      cfg.Index.BatchSize,
		Workers:        cfg.Index.Workers,
		Retries:        cfg.Index.Retries,
		Lenient:        cfg.Index.Lenient,
	}
}
