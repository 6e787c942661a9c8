// Package config holds the gateway's environment-driven configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds gateway configuration. All values are opaque settings with no
// validation beyond presence; redis settings live with the packages that use
// them.
type Config struct {
	ListenAddr     string        // HTTP/WebSocket listen address
	IndexPath      string        // bleve index directory
	IndexName      string        // logical index name, reported by /health
	EmbedModel     string        // embeddings model id
	LLMModel       string        // synthesis model id
	OpenAIAPIKey   string        // enables embeddings and synthesis when set
	OpenAIBaseURL  string        // optional OpenAI-compatible endpoint
	ProcessTimeout time.Duration // upper bound for one delegated search
	SearchK        int           // result count per search
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		IndexPath:      "data/search.bleve",
		IndexName:      "semantic-search-index",
		EmbedModel:     "text-embedding-3-small",
		LLMModel:       "gpt-4o-mini",
		ProcessTimeout: 30 * time.Second,
		SearchK:        10,
	}
}

// FromEnv loads configuration from environment variables, falling back to
// defaults for any missing values.
func FromEnv() *Config {
	cfg := Default()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if path := os.Getenv("INDEX_PATH"); path != "" {
		cfg.IndexPath = path
	}
	if name := os.Getenv("INDEX_NAME"); name != "" {
		cfg.IndexName = name
	}
	if model := os.Getenv("MODEL_ID"); model != "" {
		cfg.EmbedModel = model
	}
	if model := os.Getenv("LLM_MODEL_ID"); model != "" {
		cfg.LLMModel = model
	}
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")

	if secs := os.Getenv("PROCESS_TIMEOUT_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			cfg.ProcessTimeout = time.Duration(n) * time.Second
		}
	}
	if kStr := os.Getenv("SEARCH_K"); kStr != "" {
		if k, err := strconv.Atoi(kStr); err == nil && k > 0 {
			cfg.SearchK = k
		}
	}
	return cfg
}
