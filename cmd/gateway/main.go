// Command gateway runs the semantic-search chat gateway: a WebSocket
// endpoint with a durable connection registry, the search pipeline behind
// sendmessage frames, and the synchronous HTTP search surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/semsearch/gateway/config"
	"github.com/semsearch/gateway/server"
	"github.com/semsearch/gateway/src/gateway"
	"github.com/semsearch/gateway/src/registry"
	"github.com/semsearch/gateway/src/search"
	"github.com/semsearch/gateway/src/service"
	"github.com/semsearch/gateway/src/types"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.FromEnv()

	reg, regCleanup := buildRegistry(logger)
	defer regCleanup()

	index, err := search.OpenIndex(cfg.IndexPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.IndexPath).Msg("cannot open search index")
	}
	defer index.Close()

	var embedder search.Embedder
	var synth *search.Synthesizer
	if cfg.OpenAIAPIKey != "" {
		embedder = search.NewOpenAIEmbedder(search.EmbedderConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbedModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		synth, err = search.NewSynthesizer(search.SynthesizerConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("synthesis unavailable")
		}
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, running full-text search only")
	}

	pipeline := search.NewPipeline(index, embedder, cfg.SearchK, logger)

	gw := gateway.New(logger)
	go gw.Run()
	defer gw.Stop()

	svc := service.New(reg, gw, pipeline, cfg.ProcessTimeout, logger)

	// Cross-instance push relay; standalone mode if redis is unreachable.
	relay := gateway.NewRedisRelay(gateway.RelayConfigFromEnv(), gw, logger)
	if err := relay.Start(); err != nil {
		logger.Warn().Err(err).Msg("push relay unavailable, running standalone")
	} else {
		svc.SetRelay(relay)
		defer relay.Stop()
	}

	gw.OnConnect(svc.HandleConnect)
	gw.OnDisconnect(svc.HandleDisconnect)
	gw.RegisterHandler(types.ActionSendMessage, svc.HandleMessage)
	gw.SetDefaultHandler(svc.HandleUnknown)

	srv := server.New(gw, svc, reg, pipeline, synth, cfg, logger)
	httpServer := &fasthttp.Server{
		Handler: srv.Handler(),
		Name:    "semantic-search-gateway",
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		if err := httpServer.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

// buildRegistry prefers the durable redis registry and falls back to the
// in-memory one when redis is unreachable.
func buildRegistry(logger zerolog.Logger) (registry.Registry, func()) {
	redisReg := registry.NewRedis(registry.RedisConfigFromEnv(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisReg.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory registry")
		redisReg.Close()
		return registry.NewMemory(), func() {}
	}

	logger.Info().Msg("redis registry connected")
	return redisReg, func() { redisReg.Close() }
}
