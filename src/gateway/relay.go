package gateway

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/semsearch/gateway/src/types"
)

// PushRelay forwards directed pushes to other gateway instances for
// connections that are not terminated locally.
type PushRelay interface {
	Publish(connectionID string, frame types.ResponseFrame) error
	Available() bool
}

// LocalDeliverer receives relayed frames for locally connected clients.
// Implemented by the Gateway.
type LocalDeliverer interface {
	Deliver(connectionID string, frame types.ResponseFrame) bool
}

// relayEnvelope wraps a pushed frame with the originating instance id so a
// node can skip its own published messages.
type relayEnvelope struct {
	InstanceID   string              `json:"instance_id"`
	ConnectionID string              `json:"connection_id"`
	Frame        types.ResponseFrame `json:"frame"`
}

// RelayConfig holds connection settings for the redis push relay.
type RelayConfig struct {
	Addr     string // Redis address, default "localhost:6379"
	Password string // Redis password, default ""
	DB       int    // Redis database number, default 0
	Channel  string // Pub/sub channel, default "gateway:push"
}

// DefaultRelayConfig returns a RelayConfig with sensible defaults.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Addr:    "localhost:6379",
		Channel: "gateway:push",
	}
}

// RelayConfigFromEnv loads relay configuration from environment variables.
func RelayConfigFromEnv() *RelayConfig {
	cfg := DefaultRelayConfig()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if ch := os.Getenv("PUSH_CHANNEL"); ch != "" {
		cfg.Channel = ch
	}
	return cfg
}

// RedisRelay relays directed pushes between gateway instances via redis
// pub/sub. Every instance subscribes to one channel and delivers frames
// addressed to its local clients.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	target     LocalDeliverer
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisRelay creates a relay that uses redis pub/sub for cross-instance
// push delivery.
func NewRedisRelay(cfg *RelayConfig, target LocalDeliverer, logger zerolog.Logger) *RedisRelay {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisRelay{
		client:     client,
		channel:    cfg.Channel,
		instanceID: uuid.New().String(),
		target:     target,
		logger:     logger.With().Str("component", "push-relay").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the relay channel and begins delivering frames.
func (r *RedisRelay) Start() error {
	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return err
	}

	sub := r.client.Subscribe(r.ctx, r.channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(r.ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.active = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.listen(sub)

	r.logger.Info().
		Str("instance_id", r.instanceID).
		Str("channel", r.channel).
		Msg("push relay started")
	return nil
}

// Publish forwards a directed push to all other instances.
func (r *RedisRelay) Publish(connectionID string, frame types.ResponseFrame) error {
	env := relayEnvelope{
		InstanceID:   r.instanceID,
		ConnectionID: connectionID,
		Frame:        frame,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, r.channel, data).Err()
}

// Stop unsubscribes and closes the redis connection.
func (r *RedisRelay) Stop() error {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}

// Available reports whether the relay is connected.
func (r *RedisRelay) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *RedisRelay) listen(sub *redis.PubSub) {
	defer r.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleRelayMessage(msg)
		case <-r.ctx.Done():
			return
		}
	}
}

// handleRelayMessage decodes an envelope and delivers non-self frames to the
// local gateway. Frames for connections hosted on other instances are
// dropped here; the instance that owns them delivers its own copy.
func (r *RedisRelay) handleRelayMessage(msg *redis.Message) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode relay message")
		return
	}

	if env.InstanceID == r.instanceID {
		return
	}

	if r.target.Deliver(env.ConnectionID, env.Frame) {
		r.logger.Debug().
			Str("from_instance", env.InstanceID).
			Str("connection_id", env.ConnectionID).
			Msg("delivered relayed push")
	}
}
