package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fsearchd/fsearchd/internal/keywords"
	"github.com/fsearchd/fsearchd/internal/response"
	"github.com/fsearchd/fsearchd/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		path       string
		limit      int
		offset     int
		highlight  bool
		useAI      bool
		asJSON     bool
		keywordCnt int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single query against an already-built index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = "."
			}

			cs, err := buildCoreStack(path)
			if err != nil {
				return err
			}
			defer cs.Close()

			engine := search.New(cs.store, keywords.New())

			req := search.DefaultRequest(args[0])
			req.Limit = limit
			req.Offset = offset
			req.Highlight = highlight
			req.UseAI = useAI
			if keywordCnt > 0 {
				req.KeywordCount = keywordCnt
			}

			resp, err := engine.Search(req)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				return printJSON(resp)
			}
			printResults(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "indexed project root (default: current directory)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of matching results to skip")
	cmd.Flags().BoolVar(&highlight, "highlight", true, "include a truncated body snippet per result")
	cmd.Flags().BoolVar(&useAI, "ai", true, "expand long queries with AI-ranked keywords")
	cmd.Flags().IntVar(&keywordCnt, "keywords", 0, "override the number of expansion keywords (0: use default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw SearchResponse as JSON")

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResults(resp *response.SearchResponse) {
	fmt.Printf("%d results (%d total, %dms)\n", len(resp.Results), resp.Total, resp.TookMs)
	for i, r := range resp.Results {
		fmt.Printf("%3d. %s  (score %.3f)\n", i+1+resp.Pagination.Offset, r.Path, r.Score)
		if len(r.Tags) > 0 {
			fmt.Printf("     tags: %v\n", r.Tags)
		}
		for _, h := range r.Highlights {
			fmt.Printf("     %s: %s\n", h.Field, h.Text)
		}
	}
}
