package cmd

import (
	"context"
	"fmt"

	"meetindex/internal/index"
	"meetindex/internal/queryparse"
	"meetindex/internal/search"
	"meetindex/internal/tui"
)

func runTUI(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	provider, closeProvider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	loaded, err := index.BuildOrLoad(ctx, provider, indexConfig(cfg), cfg.Index.Dir)
	if err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}
	defer loaded.Close()

	parser, err := queryparse.New()
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{
		Service: search.New(provider, parser, loaded),
		K:       cfg.Search.DefaultK,
	})
}
