package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/semsearch/gateway/src/search"
)

type searchRequest struct {
	Query        string `json:"query"`
	ConnectionID string `json:"connection_id"`
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	docs, _ := s.pipeline.DocCount()
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "semantic-search-gateway",
		"configuration": fiber.Map{
			"index_name":           s.cfg.IndexName,
			"embed_model":          s.cfg.EmbedModel,
			"llm_model":            s.cfg.LLMModel,
			"synthesis_configured": s.synth != nil,
			"documents":            docs,
		},
	})
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  "/ws",
		"clients":   s.gw.ClientCount(),
	})
}

// handleConnections is the administrative registry scan. It is unbounded in
// cost and never part of the message path.
func (s *Server) handleConnections(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	records, err := s.reg.Scan(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"connections": records,
		"count":       len(records),
	})
}

// handleSearch is the synchronous path: the caller gets results in the HTTP
// response, and when it names a connection id the results are additionally
// pushed over the socket, best-effort.
func (s *Server) handleSearch(c fiber.Ctx) error {
	var req searchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing query in request body."})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	results, err := s.pipeline.Process(ctx, req.Query)
	if err != nil {
		s.logger.Error().Str("query", req.Query).Err(err).Msg("search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Search failed: " + err.Error()})
	}

	if req.ConnectionID != "" {
		s.svc.PushResults(ctx, req.ConnectionID, req.Query, results)
	}

	return c.JSON(fiber.Map{
		"query":         req.Query,
		"results":       results,
		"total_results": len(results),
	})
}

// handleProcessSearch starts an asynchronous search whose outcome arrives
// over the socket, exactly as a sendmessage frame would.
func (s *Server) handleProcessSearch(c fiber.Ctx) error {
	var req searchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Query == "" || req.ConnectionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing query or connection_id in request body."})
	}

	go s.svc.ProcessSearch(context.Background(), req.ConnectionID, req.Query, "")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":       "Semantic search processing started. Results will be sent via WebSocket.",
		"query":         req.Query,
		"connection_id": req.ConnectionID,
	})
}

func (s *Server) handleSummarize(c fiber.Ctx) error {
	if s.synth == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "LLM synthesis not configured."})
	}

	var req searchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing query in request body."})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	results, err := s.pipeline.Process(ctx, req.Query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Search failed: " + err.Error()})
	}

	answer, err := s.synth.Summarize(ctx, req.Query, results)
	if err != nil {
		s.logger.Error().Str("query", req.Query).Err(err).Msg("synthesis failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Synthesis failed: " + err.Error()})
	}

	return c.JSON(fiber.Map{"llm_synthesis": answer})
}

func (s *Server) handleIndexDocument(c fiber.Ctx) error {
	var doc search.Document
	if err := json.Unmarshal(c.Body(), &doc); err != nil || (doc.Title == "" && doc.Content == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing document in request body."})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	id, err := s.pipeline.IndexDocument(ctx, doc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Indexing failed: " + err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"indexed": true, "id": id})
}
