package cmd

import (
	"context"
	"fmt"
	"strings"

	"meetindex/internal/index"
	"meetindex/internal/queryparse"
	"meetindex/internal/search"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing meeting search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
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
	svc := search.New(provider, parser, loaded)

	s := mcpserver.NewMCPServer("meetindex", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchMeetingsTool(), makeSearchHandler(svc))
	s.AddTool(indexStatusTool(), makeStatusHandler(svc))
	s.AddTool(listSourcesTool(), makeListSourcesHandler(svc))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchMeetingsTool() mcp.Tool {
	return mcp.NewTool("search_meetings",
		mcp.WithDescription("Semantically search indexed meeting transcripts and summaries. Date expressions in the query (\"last week\", \"March 1 to March 5\") filter results to those dates."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query, optionally with dates"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 5)"),
		),
	)
}

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report the size, embedding model, and build time of the loaded index."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listSourcesTool() mcp.Tool {
	return mcp.NewTool("list_sources",
		mcp.WithDescription("List every indexed source document with its kind and chunk count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("kind",
			mcp.Description("Optional filter: 'transcript' or 'summary'"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", search.DefaultK)

		resp, err := svc.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(resp)), nil
	}
}

func makeStatusHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap := svc.Snapshot()
		m := snap.Manifest
		return mcp.NewToolResultText(fmt.Sprintf(
			"## Index status\n\n**Chunks:** %d  \n**Dimension:** %d  \n**Model:** %s  \n**Built:** %s  \n**Chunking:** %d/%d",
			snap.Index.Count(), snap.Index.Dimension(), m.Model,
			m.CreatedAt.Format("2006-01-02 15:04 MST"), m.ChunkSize, m.ChunkOverlap)), nil
	}
}

func makeListSourcesHandler(svc *search.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kindFilter := strings.ToLower(req.GetString("kind", ""))

		sources, err := svc.Snapshot().Store.ListSources()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list sources failed: %v", err)), nil
		}

		var sb strings.Builder
		n := 0
		for _, src := range sources {
			if kindFilter != "" && strings.ToLower(src.Kind) != kindFilter {
				continue
			}
			fmt.Fprintf(&sb, "- **%s** (%s, %d chunks)\n", src.SourcePath, src.Kind, src.Chunks)
			n++
		}
		header := fmt.Sprintf("## Indexed sources (%d)\n\n", n)
		return mcp.NewToolResultText(header + sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for query: %q", resp.Query.Raw)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", resp.Query.Raw, len(resp.Results))
	if resp.DateFiltered {
		for _, r := range resp.Query.DateRanges {
			fmt.Fprintf(&sb, "_Filtered to %s .. %s_\n\n",
				r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
		}
	}

	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, r.SourcePath)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Chunk:** %d  \n**Date:** %s  \n**Score:** %.3f\n\n",
			r.Kind, r.ChunkIndex, r.Timestamp.Format("2006-01-02"), r.Score)
		fmt.Fprintf(&sb, "%s\n\n", r.Text)
	}
	return sb.String()
}
