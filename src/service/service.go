// Package service implements the connection lifecycle and message handlers:
// registry bookkeeping on connect/disconnect, and the at-most-once push-back
// protocol around the delegated search work.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/semsearch/gateway/src/gateway"
	"github.com/semsearch/gateway/src/registry"
	"github.com/semsearch/gateway/src/search"
	"github.com/semsearch/gateway/src/types"
)

// Pusher delivers a frame to a specific connection. Implemented by the
// gateway; returns gateway.ErrGone for unknown targets.
type Pusher interface {
	Push(ctx context.Context, connectionID string, frame types.ResponseFrame) error
}

// Processor is the delegated-work black box behind a message frame.
type Processor interface {
	Process(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Service wires the registry, the push primitive, and the search pipeline
// into the three request handlers.
type Service struct {
	registry  registry.Registry
	pusher    Pusher
	relay     gateway.PushRelay // nil in standalone mode
	processor Processor
	timeout   time.Duration
	logger    zerolog.Logger
}

// New creates a Service. timeout bounds one delegated process call; zero
// selects the 30s default.
func New(reg registry.Registry, pusher Pusher, processor Processor, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		registry:  reg,
		pusher:    pusher,
		processor: processor,
		timeout:   timeout,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// SetRelay attaches a cross-instance push relay. When set, pushes for
// connections not terminated locally are forwarded to other instances as
// long as the registry still holds a record for them.
func (s *Service) SetRelay(r gateway.PushRelay) {
	s.relay = r
}

// HandleConnect registers a new connection. A registry failure is returned
// to the gateway, which refuses the connection.
func (s *Service) HandleConnect(ctx context.Context, connectionID, userAgent string) error {
	rec := types.ConnectionRecord{
		ConnectionID: connectionID,
		ConnectedAt:  time.Now(),
		UserAgent:    userAgent,
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		return fmt.Errorf("register connection: %w", err)
	}

	// First push tells the client its own id, so it can use the
	// synchronous HTTP path with the same session. Goes straight to the
	// local pusher: reconciliation must not undo the Put above.
	if err := s.pusher.Push(ctx, connectionID, types.ResponseFrame{ConnectionID: connectionID}); err != nil {
		s.logger.Warn().Str("connection_id", connectionID).Err(err).Msg("connect ack push failed")
	}
	return nil
}

// HandleDisconnect removes the registry record. The connection is gone
// either way, so a missing record is not a failure.
func (s *Service) HandleDisconnect(ctx context.Context, connectionID string) {
	if err := s.registry.Delete(ctx, connectionID); err != nil {
		s.logger.Error().Str("connection_id", connectionID).Err(err).Msg("deregister failed")
	}
}

// HandleMessage processes a sendmessage frame. Malformed payloads are
// answered with an error frame and still count as a successful invocation.
func (s *Service) HandleMessage(ctx context.Context, connectionID string, raw []byte) error {
	var frame types.RequestFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.pushError(ctx, connectionID, "Invalid message payload.", "")
		return nil
	}
	if frame.Message == "" {
		s.pushError(ctx, connectionID, "Missing message in request.", frame.RequestID)
		return nil
	}

	s.ProcessSearch(ctx, connectionID, frame.Message, frame.RequestID)
	return nil
}

// HandleUnknown answers frames whose action has no registered handler.
func (s *Service) HandleUnknown(ctx context.Context, connectionID string, raw []byte) error {
	var frame types.RequestFrame
	_ = json.Unmarshal(raw, &frame)
	s.pushError(ctx, connectionID, fmt.Sprintf("Unsupported action %q.", frame.Action), frame.RequestID)
	return nil
}

// ProcessSearch runs the delegated search for a query and pushes the outcome
// to the connection: an interim processing marker, then exactly one of a
// results frame, a no-results frame, or an error frame. Delivery is
// at-most-once; a gone target aborts without retry.
func (s *Service) ProcessSearch(ctx context.Context, connectionID, query, requestID string) {
	interim := types.ResponseFrame{
		Status:    types.StatusProcessing,
		Message:   fmt.Sprintf("Processing semantic search for: %s", query),
		RequestID: requestID,
	}
	if err := s.push(ctx, connectionID, interim); errors.Is(err, gateway.ErrGone) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	results, err := s.processor.Process(cctx, query)
	if err != nil {
		s.logger.Error().Str("connection_id", connectionID).Str("query", query).Err(err).Msg("search failed")
		final := types.ResponseFrame{
			Status:    types.StatusSearchError,
			Message:   fmt.Sprintf("Sorry, I encountered an error while searching: %s", err),
			Query:     query,
			RequestID: requestID,
		}
		if perr := s.push(ctx, connectionID, final); perr != nil {
			s.logger.Warn().Str("connection_id", connectionID).Err(perr).Msg("error frame undeliverable")
		}
		return
	}

	var final types.ResponseFrame
	if len(results) == 0 {
		final = types.ResponseFrame{
			Status:    types.StatusNoResults,
			Message:   fmt.Sprintf("No results found for %q. Try rephrasing your query.", query),
			Query:     query,
			RequestID: requestID,
		}
	} else {
		final = types.ResponseFrame{
			Status:       types.StatusSearchComplete,
			Message:      search.FormatResponse(query, results),
			Results:      results,
			Query:        query,
			TotalResults: len(results),
			RequestID:    requestID,
		}
	}
	if err := s.push(ctx, connectionID, final); err != nil {
		s.logger.Warn().Str("connection_id", connectionID).Err(err).Msg("result push failed")
	}
}

// PushResults delivers a synchronous search's results over the socket as a
// best-effort side channel.
func (s *Service) PushResults(ctx context.Context, connectionID, query string, results []types.SearchResult) {
	frame := types.ResponseFrame{
		Message:      fmt.Sprintf("Search results for: %s", query),
		Results:      results,
		Query:        query,
		TotalResults: len(results),
	}
	if err := s.push(ctx, connectionID, frame); err != nil {
		s.logger.Warn().Str("connection_id", connectionID).Err(err).Msg("side-channel push failed")
	}
}

func (s *Service) pushError(ctx context.Context, connectionID, message, requestID string) {
	frame := types.ResponseFrame{
		Status:    types.StatusError,
		Message:   message,
		RequestID: requestID,
	}
	if err := s.push(ctx, connectionID, frame); err != nil {
		s.logger.Warn().Str("connection_id", connectionID).Err(err).Msg("error frame undeliverable")
	}
}

// push delivers a frame locally, falling back to the relay for connections
// terminated on other instances. A target unknown both locally and in the
// registry is gone: the stale record, if any, is deleted and ErrGone is
// returned. Pushes are never retried.
func (s *Service) push(ctx context.Context, connectionID string, frame types.ResponseFrame) error {
	err := s.pusher.Push(ctx, connectionID, frame)
	if err == nil || !errors.Is(err, gateway.ErrGone) {
		return err
	}

	if s.relay != nil && s.relay.Available() {
		if _, gerr := s.registry.Get(ctx, connectionID); gerr == nil {
			return s.relay.Publish(connectionID, frame)
		}
	}

	// Reconcile: the registry may still hold a record for a connection
	// whose disconnect notification was lost.
	if derr := s.registry.Delete(ctx, connectionID); derr != nil {
		s.logger.Error().Str("connection_id", connectionID).Err(derr).Msg("stale record cleanup failed")
	}
	s.logger.Info().Str("connection_id", connectionID).Msg("push target gone")
	return gateway.ErrGone
}
