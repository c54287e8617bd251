package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// snippetLength bounds how much chunk text a result row shows.
const snippetLength = 160

var (
	searchLimit       int
	searchProviderRef string
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs semantic search across all indexed documents. The query is
embedded and matched against stored chunks by vector similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchProviderRef, "provider", "p", "", "restrict to one provider, as type or type/name")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit: searchLimit,
	}
	if searchProviderRef != "" {
		providerType, name, err := parseProviderFilter(searchProviderRef)
		if err != nil {
			return err
		}
		opts.ProviderType = providerType
		opts.ProviderName = name
	}

	results, err := searchService.Search(context.Background(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

// parseProviderFilter accepts "type" or "type/name"; the name part is
// optional for search filters.
func parseProviderFilter(ref string) (domain.ProviderType, string, error) {
	if !strings.Contains(ref, "/") {
		providerType := domain.ProviderType(ref)
		if !providerType.IsValid() {
			return "", "", fmt.Errorf("unknown provider type %q (one of: %s)", ref, providerTypeList())
		}
		return providerType, "", nil
	}
	return parseProviderRef(ref)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, res := range results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, res.Chunk.Filename, res.Score)
		cmd.Printf("      %s/%s, chunk %d\n", res.Chunk.ProviderType, res.Chunk.ProviderName, res.Chunk.Position)
		if snippet := makeSnippet(res.Chunk.Text); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
}

// makeSnippet collapses whitespace and truncates on a rune boundary.
func makeSnippet(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= snippetLength {
		return collapsed
	}
	return string(runes[:snippetLength]) + "..."
}
