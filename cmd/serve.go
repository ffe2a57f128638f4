package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"meetindex/internal/httpapi"
	"meetindex/internal/index"
	"meetindex/internal/queryparse"
	"meetindex/internal/search"

	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}

		provider, closeProvider, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		defer closeProvider()

		loaded, err := index.BuildOrLoad(cmd.Context(), provider, indexConfig(cfg), cfg.Index.Dir)
		if err != nil {
			return err
		}
		defer loaded.Close()

		parser, err := queryparse.New()
		if err != nil {
			return err
		}
		svc := search.New(provider, parser, loaded)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpapi.New(svc),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("serving search", "addr", cfg.Server.Addr, "chunks", loaded.Index.Count())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
