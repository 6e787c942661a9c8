package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/semsearch/gateway/src/types"
)

const summaryFallbackLen = 200

// Pipeline is the delegated-work collaborator behind a message frame. It
// embeds the query, searches the index, reranks by vector similarity when
// embeddings are available, and formats the hits.
type Pipeline struct {
	index    *Index
	embedder Embedder // nil disables semantic reranking
	k        int
	logger   zerolog.Logger
}

// NewPipeline creates a search pipeline. embedder may be nil, in which case
// results are ranked by full-text relevance only.
func NewPipeline(index *Index, embedder Embedder, k int, logger zerolog.Logger) *Pipeline {
	if k <= 0 {
		k = 10
	}
	return &Pipeline{
		index:    index,
		embedder: embedder,
		k:        k,
		logger:   logger.With().Str("component", "search-pipeline").Logger(),
	}
}

// IndexDocument embeds and indexes a document, assigning an id when the
// caller did not provide one. Returns the document id.
func (p *Pipeline) IndexDocument(ctx context.Context, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	var vector []float64
	if p.embedder != nil {
		text := strings.TrimSpace(doc.Title + " " + doc.Content)
		vec, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return "", fmt.Errorf("embed document: %w", err)
		}
		vector = vec
	}

	if err := p.index.Add(doc, vector); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// DocCount returns the number of indexed documents.
func (p *Pipeline) DocCount() (uint64, error) {
	return p.index.DocCount()
}

// Process runs the full search workflow for a query and returns formatted
// results. An empty slice with a nil error means no matches.
func (p *Pipeline) Process(ctx context.Context, query string) ([]types.SearchResult, error) {
	var qvec []float64
	if p.embedder != nil {
		vec, err := p.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		qvec = vec
	}

	hits, err := p.index.Search(ctx, query, p.k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	if qvec != nil {
		rerank(hits, qvec)
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, formatHit(h))
	}

	p.logger.Debug().Str("query", query).Int("results", len(results)).Msg("search complete")
	return results, nil
}

// rerank replaces full-text scores with cosine similarity for hits that have
// a stored vector, then re-sorts. Hits without vectors keep their original
// score and tend to sort below reranked ones.
func rerank(hits []Hit, qvec []float64) {
	for i := range hits {
		if hits[i].Vector != nil {
			hits[i].Score = cosineSimilarity(qvec, hits[i].Vector)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func formatHit(h Hit) types.SearchResult {
	title := h.Doc.Title
	if title == "" {
		title = "Untitled"
	}
	summary := h.Doc.Summary
	if summary == "" {
		content := h.Doc.Content
		if len(content) > summaryFallbackLen {
			content = content[:summaryFallbackLen]
		}
		summary = content + "..."
	}
	label := h.Doc.SentimentLabel
	if label == "" {
		label = "Unknown"
	}
	category := h.Doc.Category
	if category == "" {
		category = "Unknown"
	}
	return types.SearchResult{
		Title:   title,
		Summary: summary,
		Content: h.Doc.Content,
		Score:   h.Score,
		Sentiment: types.Sentiment{
			Label: label,
			Score: h.Doc.SentimentScore,
		},
		Category: category,
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
