package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
)

var (
	searchQuery string
	searchMode  string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the knowledge base",
	Long: `Search indexed content with a free-text query. Text mode searches
embedded text, visual mode searches images by description, both mode
merges the two rankings.

Examples:
  minds search -q "tax receipt 2025"
  minds search -q "sunset over the bay" --mode visual
  minds search -q "database migration notes" --top-k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "both", "search mode: text, visual, or both")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	searcher, err := newSearcher(cfg, st)
	if err != nil {
		return err
	}

	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := searcher.Search(context.Background(), searchQuery, topK, domain.SearchMode(searchMode))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), searchQuery)
	for i, r := range results {
		switch r.Kind {
		case domain.ResultVisual:
			fmt.Printf("--- [%d] image %s (score: %.2f) ---\n", i+1, r.Path, r.Score)
			if r.Text != "" {
				fmt.Printf("OCR: %s\n", truncateForDisplay(r.Text, 200))
			}
		default:
			fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, r.Source, r.Score)
			fmt.Println(truncateForDisplay(r.Text, 500))
		}
		fmt.Println()
	}

	return nil
}

func truncateForDisplay(text string, max int) string {
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
