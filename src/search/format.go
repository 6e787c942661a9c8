package search

import (
	"fmt"
	"strings"

	"github.com/semsearch/gateway/src/types"
)

// FormatResponse renders search results as the assistant text pushed to the
// client: results grouped by sentiment when the classifier labeled them,
// otherwise a flat top list.
func FormatResponse(query string, results []types.SearchResult) string {
	var positive, negative []types.SearchResult
	for _, r := range results {
		switch r.Sentiment.Label {
		case "POSITIVE":
			positive = append(positive, r)
		case "NEGATIVE":
			negative = append(negative, r)
		}
	}

	parts := []string{fmt.Sprintf("Found %d results for %q\n", len(results), query)}

	if len(positive) > 0 {
		parts = append(parts, "**Positive Sentiment Results:**")
		parts = append(parts, formatGroup(positive, 3)...)
	}
	if len(negative) > 0 {
		parts = append(parts, "**Negative Sentiment Results:**")
		parts = append(parts, formatGroup(negative, 3)...)
	}
	if len(positive) == 0 && len(negative) == 0 {
		parts = append(parts, "**Top Results:**")
		parts = append(parts, formatGroup(results, 5)...)
	}

	return strings.Join(parts, "\n")
}

func formatGroup(results []types.SearchResult, limit int) []string {
	if len(results) > limit {
		results = results[:limit]
	}
	var lines []string
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("%d. **%s**", i+1, r.Title))
		lines = append(lines, fmt.Sprintf("   %s", r.Summary))
		lines = append(lines, fmt.Sprintf("   Score: %.3f | Sentiment: %.3f\n", r.Score, r.Sentiment.Score))
	}
	return lines
}

// FormatSnippets renders results as plain-text snippets for an LLM prompt.
func FormatSnippets(results []types.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Snippet %d (Sentiment: %s):\nTitle: %s\nSummary: %s\nContent: %s\n\n",
			i+1, r.Sentiment.Label, r.Title, r.Summary, r.Content)
	}
	return b.String()
}
