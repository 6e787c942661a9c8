// Package search implements the delegated work behind a message frame:
// embedding, index search, reranking, result formatting, and optional LLM
// synthesis.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Document is one indexed item: an article with a precomputed sentiment
// classification.
type Document struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	Content        string  `json:"content"`
	SentimentLabel string  `json:"sentiment_label"`
	SentimentScore float64 `json:"sentiment_score"`
	Category       string  `json:"category"`
}

// Hit is a raw index match before formatting.
type Hit struct {
	Doc    Document
	Score  float64
	Vector []float64
}

// Index wraps a bleve full-text index plus a sidecar of document embedding
// vectors used for semantic reranking.
type Index struct {
	mu      sync.RWMutex
	idx     bleve.Index
	vectors map[string][]float64
	vecPath string // empty for memory-only indexes
}

// OpenIndex opens the index at path, creating it if absent. Embedding
// vectors persist in a sidecar JSON file next to the index.
func OpenIndex(path string) (*Index, error) {
	var idx bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
	}

	ix := &Index{
		idx:     idx,
		vectors: make(map[string][]float64),
		vecPath: path + ".vectors.json",
	}
	if err := ix.loadVectors(); err != nil && !os.IsNotExist(err) {
		idx.Close()
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	return ix, nil
}

// NewMemoryIndex creates an in-memory index for standalone and test use.
func NewMemoryIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{idx: idx, vectors: make(map[string][]float64)}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	numericFieldMapping := bleve.NewNumericFieldMapping()

	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("summary", textFieldMapping)
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("sentiment_label", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("sentiment_score", numericFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Add indexes a document, overwriting any previous version. A nil vector is
// allowed; such documents keep their BM25 score during reranking.
func (ix *Index) Add(doc Document, vector []float64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.idx.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	if vector != nil {
		ix.vectors[doc.ID] = vector
		if err := ix.saveVectors(); err != nil {
			return fmt.Errorf("save vectors: %w", err)
		}
	}
	return nil
}

// Search runs a full-text match query and returns up to k hits with their
// stored vectors attached.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	req.Fields = []string{"title", "summary", "content", "sentiment_label", "sentiment_score", "category"}

	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			Doc: Document{
				ID:             h.ID,
				Title:          fieldString(h.Fields, "title"),
				Summary:        fieldString(h.Fields, "summary"),
				Content:        fieldString(h.Fields, "content"),
				SentimentLabel: fieldString(h.Fields, "sentiment_label"),
				SentimentScore: fieldFloat(h.Fields, "sentiment_score"),
				Category:       fieldString(h.Fields, "category"),
			},
			Score:  h.Score,
			Vector: ix.vectors[h.ID],
		})
	}
	return hits, nil
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() (uint64, error) {
	return ix.idx.DocCount()
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	return ix.idx.Close()
}

func (ix *Index) loadVectors() error {
	if ix.vecPath == "" {
		return nil
	}
	data, err := os.ReadFile(ix.vecPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &ix.vectors)
}

// saveVectors is called with ix.mu held.
func (ix *Index) saveVectors() error {
	if ix.vecPath == "" {
		return nil
	}
	data, err := json.Marshal(ix.vectors)
	if err != nil {
		return err
	}
	return os.WriteFile(ix.vecPath, data, 0o644)
}

func fieldString(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}

func fieldFloat(fields map[string]any, name string) float64 {
	if f, ok := fields[name].(float64); ok {
		return f
	}
	return 0
}
