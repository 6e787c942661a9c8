package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/gateway/src/registry"
	"github.com/semsearch/gateway/src/types"
)

func catsResult() types.SearchResult {
	return types.SearchResult{
		Title:     "Cats 101",
		Summary:   "An introduction to cats",
		Score:     0.92,
		Sentiment: types.Sentiment{Label: "Unknown"},
		Category:  "Pets",
	}
}

func TestMessageProducesExactlyOneResultPush(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{results: []types.SearchResult{catsResult()}})

	_, conn := connect(t, gw, "abc123")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "cats"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusSearchComplete)) == 1
	}, time.Second, 10*time.Millisecond)

	// Interim marker precedes the single result frame.
	assert.Len(t, conn.framesWithStatus(types.StatusProcessing), 1)

	final := conn.framesWithStatus(types.StatusSearchComplete)[0]
	assert.Contains(t, final.Message, "Cats 101")
	assert.Contains(t, final.Message, "0.920")
	assert.Equal(t, "cats", final.Query)
	assert.Equal(t, 1, final.TotalResults)
	require.Len(t, final.Results, 1)
	assert.Equal(t, 0.92, final.Results[0].Score)

	// No duplicate deliveries afterwards.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, conn.framesWithStatus(types.StatusSearchComplete), 1)
}

func TestMessageNoResults(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "quantum"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusNoResults)) == 1
	}, time.Second, 10*time.Millisecond)

	frame := conn.framesWithStatus(types.StatusNoResults)[0]
	assert.Contains(t, frame.Message, `No results found for "quantum"`)
	assert.Empty(t, conn.framesWithStatus(types.StatusSearchComplete))
}

func TestMessageProcessorFailure(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{err: errors.New("search backend down")})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "cats"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusSearchError)) == 1
	}, time.Second, 10*time.Millisecond)

	frame := conn.framesWithStatus(types.StatusSearchError)[0]
	assert.Contains(t, frame.Message, "search backend down")
	assert.Equal(t, 1, gw.ClientCount(), "a failed search must not drop the connection")
}

func TestMessageProcessorTimeout(t *testing.T) {
	// Service timeout is 500ms in newTestStack; the processor takes longer.
	gw, _, _ := newTestStack(t, &fakeProcessor{delay: 2 * time.Second})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "slow"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusSearchError)) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMessageMissingPayloadField(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{results: []types.SearchResult{catsResult()}})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, RequestID: "r1"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusError)) == 1
	}, time.Second, 10*time.Millisecond)

	frame := conn.framesWithStatus(types.StatusError)[0]
	assert.Contains(t, frame.Message, "Missing message")
	assert.Equal(t, "r1", frame.RequestID)
	assert.Empty(t, conn.framesWithStatus(types.StatusProcessing))
	assert.Equal(t, 1, gw.ClientCount())
}

func TestRequestIDEchoedOnEveryPush(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{results: []types.SearchResult{catsResult()}})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "cats", RequestID: "req-42"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusSearchComplete)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "req-42", conn.framesWithStatus(types.StatusProcessing)[0].RequestID)
	assert.Equal(t, "req-42", conn.framesWithStatus(types.StatusSearchComplete)[0].RequestID)
}

func TestMessageToUnregisteredConnection(t *testing.T) {
	_, svc, reg := newTestStack(t, &fakeProcessor{results: []types.SearchResult{catsResult()}})
	ctx := context.Background()

	// Stale record for a connection that is no longer open.
	require.NoError(t, reg.Put(ctx, types.ConnectionRecord{ConnectionID: "ghost", ConnectedAt: time.Now()}))

	err := svc.HandleMessage(ctx, "ghost", []byte(`{"action":"sendmessage","message":"cats"}`))
	require.NoError(t, err, "a gone push target must not fail the invocation")

	// The failed push reconciles the registry.
	_, err = reg.Get(ctx, "ghost")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestConnectIsIdempotentAndDisconnectFinal(t *testing.T) {
	_, svc, reg := newTestStack(t, &fakeProcessor{})
	ctx := context.Background()

	require.NoError(t, svc.HandleConnect(ctx, "abc123", "agent-a"))
	require.NoError(t, svc.HandleConnect(ctx, "abc123", "agent-b"))

	all, err := reg.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "double connect must overwrite, not duplicate")
	assert.Equal(t, "agent-b", all[0].UserAgent)

	svc.HandleDisconnect(ctx, "abc123")

	all, err = reg.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDisconnectNeverConnectedSucceeds(t *testing.T) {
	_, svc, reg := newTestStack(t, &fakeProcessor{})
	ctx := context.Background()

	svc.HandleDisconnect(ctx, "never-seen")

	all, err := reg.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentMessagesOnOneConnection(t *testing.T) {
	gw, _, _ := newTestStack(t, &fakeProcessor{results: []types.SearchResult{catsResult()}, delay: 20 * time.Millisecond})

	_, conn := connect(t, gw, "c1")
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "cats", RequestID: "a"})
	conn.send(t, types.RequestFrame{Action: types.ActionSendMessage, Message: "dogs", RequestID: "b"})

	require.Eventually(t, func() bool {
		return len(conn.framesWithStatus(types.StatusSearchComplete)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Order is not guaranteed; correlation ids distinguish the replies.
	var ids []string
	for _, f := range conn.framesWithStatus(types.StatusSearchComplete) {
		ids = append(ids, f.RequestID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestPushResultsSideChannel(t *testing.T) {
	gw, svc, _ := newTestStack(t, &fakeProcessor{})

	_, conn := connect(t, gw, "c1")
	svc.PushResults(context.Background(), "c1", "cats", []types.SearchResult{catsResult()})

	require.Eventually(t, func() bool {
		for _, f := range conn.frames() {
			if f.Message == "Search results for: cats" && len(f.Results) == 1 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
