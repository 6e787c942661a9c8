// Package server exposes the HTTP surface: the WebSocket upgrade endpoint
// and the synchronous request/response collaborator that bypasses the
// connection registry.
package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/semsearch/gateway/config"
	"github.com/semsearch/gateway/src/gateway"
	"github.com/semsearch/gateway/src/registry"
	"github.com/semsearch/gateway/src/search"
	"github.com/semsearch/gateway/src/service"
)

// Server assembles the fiber app and the raw fasthttp WebSocket handler.
type Server struct {
	app      *fiber.App
	gw       *gateway.Gateway
	svc      *service.Service
	reg      registry.Registry
	pipeline *search.Pipeline
	synth    *search.Synthesizer // nil when synthesis is not configured
	cfg      *config.Config
	logger   zerolog.Logger
}

// New creates the server and registers all routes.
func New(gw *gateway.Gateway, svc *service.Service, reg registry.Registry, pipeline *search.Pipeline, synth *search.Synthesizer, cfg *config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		app:      fiber.New(),
		gw:       gw,
		svc:      svc,
		reg:      reg,
		pipeline: pipeline,
		synth:    synth,
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ws/info", s.handleInfo)
	s.app.Get("/connections", s.handleConnections)
	s.app.Post("/search", s.handleSearch)
	s.app.Post("/process-search", s.handleProcessSearch)
	s.app.Post("/summarize", s.handleSummarize)
	s.app.Post("/documents", s.handleIndexDocument)

	return s
}

// Handler returns the root fasthttp handler. The WebSocket upgrade is served
// at the fasthttp level since fiber v3 does not expose *fasthttp.RequestCtx.
func (s *Server) Handler() fasthttp.RequestHandler {
	wsHandler := s.webSocketHandler()
	appHandler := s.app.Handler()

	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/ws" {
			wsHandler(ctx)
			return
		}
		appHandler(ctx)
	}
}
