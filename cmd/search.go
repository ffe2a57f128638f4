package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"meetindex/internal/index"
	"meetindex/internal/queryparse"
	"meetindex/internal/search"

	"github.com/spf13/cobra"
)

var (
	flagK    int
	flagJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed meetings with a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, closeProvider, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		defer closeProvider()

		loaded, err := index.Load(cfg.Index.Dir)
		if err != nil {
			return fmt.Errorf("load index (run 'meetindex index' first): %w", err)
		}
		defer loaded.Close()

		parser, err := queryparse.New()
		if err != nil {
			return err
		}

		k := flagK
		if k <= 0 {
			k = cfg.Search.DefaultK
		}
		svc := search.New(provider, parser, loaded)
		resp, err := svc.Search(cmd.Context(), query, k)
		if err != nil {
			return err
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		printResults(resp)
		return nil
	},
}

func printResults(resp *search.Response) {
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return
	}
	if resp.DateFiltered {
		for _, r := range resp.Query.DateRanges {
			fmt.Printf("Filtered to %s .. %s\n",
				r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
		}
		fmt.Println()
	}
	for i, r := range resp.Results {
		fmt.Printf("%d. %s [%s, chunk %d] score=%.3f\n",
			i+1, r.SourcePath, r.Kind, r.ChunkIndex, r.Score)
		fmt.Printf("   %s\n\n", snippet(r.Text, 200))
	}
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(searchCmd)
}
