package gateway

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/gateway/src/types"
)

// mockDeliverer records frames delivered from the relay.
type mockDeliverer struct {
	delivered map[string][]types.ResponseFrame
}

func newMockDeliverer() *mockDeliverer {
	return &mockDeliverer{delivered: make(map[string][]types.ResponseFrame)}
}

func (m *mockDeliverer) Deliver(connectionID string, frame types.ResponseFrame) bool {
	m.delivered[connectionID] = append(m.delivered[connectionID], frame)
	return true
}

func TestRelayEnvelopeRoundTrip(t *testing.T) {
	env := relayEnvelope{
		InstanceID:   "node-1",
		ConnectionID: "abc123",
		Frame: types.ResponseFrame{
			Status:       types.StatusSearchComplete,
			Message:      "Found 1 results",
			Query:        "cats",
			TotalResults: 1,
			Results: []types.SearchResult{{
				Title:     "Cats 101",
				Summary:   "All about cats",
				Score:     0.92,
				Sentiment: types.Sentiment{Label: "POSITIVE", Score: 0.8},
				Category:  "Pets",
			}},
		},
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out relayEnvelope
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "node-1", out.InstanceID)
	assert.Equal(t, "abc123", out.ConnectionID)
	assert.Equal(t, types.StatusSearchComplete, out.Frame.Status)
	require.Len(t, out.Frame.Results, 1)
	assert.Equal(t, "Cats 101", out.Frame.Results[0].Title)
	assert.Equal(t, 0.92, out.Frame.Results[0].Score)
}

func TestDefaultRelayConfig(t *testing.T) {
	cfg := DefaultRelayConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "gateway:push", cfg.Channel)
}

func TestRelayConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PUSH_CHANNEL", "test:push")

	cfg := RelayConfigFromEnv()
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, "test:push", cfg.Channel)
}

func TestRelayAvailableFalseBeforeStart(t *testing.T) {
	r := NewRedisRelay(DefaultRelayConfig(), newMockDeliverer(), zerolog.Nop())
	assert.False(t, r.Available())
}

func TestRelaySkipsOwnMessages(t *testing.T) {
	target := newMockDeliverer()
	r := NewRedisRelay(DefaultRelayConfig(), target, zerolog.Nop())

	own, err := json.Marshal(relayEnvelope{InstanceID: r.instanceID, ConnectionID: "c1"})
	require.NoError(t, err)
	r.handleRelayMessage(&redis.Message{Payload: string(own)})
	assert.Empty(t, target.delivered)

	other, err := json.Marshal(relayEnvelope{
		InstanceID:   "other-node",
		ConnectionID: "c1",
		Frame:        types.ResponseFrame{Message: "hi"},
	})
	require.NoError(t, err)
	r.handleRelayMessage(&redis.Message{Payload: string(other)})
	require.Len(t, target.delivered["c1"], 1)
	assert.Equal(t, "hi", target.delivered["c1"][0].Message)
}

func TestRelayInstanceIDUnique(t *testing.T) {
	target := newMockDeliverer()
	r1 := NewRedisRelay(DefaultRelayConfig(), target, zerolog.Nop())
	r2 := NewRedisRelay(DefaultRelayConfig(), target, zerolog.Nop())
	assert.NotEqual(t, r1.instanceID, r2.instanceID)
}
