package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b_workflow/pkg/log"
)

const (
	testStream = "workflow:events"
	testGroup  = "relay"
)

func newTestRedis(t *testing.T) *rd.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type toggleSink struct {
	mu     sync.Mutex
	fail   bool
	events []Event
}

func (s *toggleSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *toggleSink) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func TestRelayForwardsStreamEvents(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	target := &toggleSink{}
	relay := NewRelay(rdb, target, testStream, testGroup, "c1", log.Discard())
	require.NoError(t, relay.ensureGroup(ctx))
	// 重复创建消费组应被忽略
	require.NoError(t, relay.ensureGroup(ctx))

	sink := NewStreamSink(rdb, testStream, 1000)
	first, second := sampleEvent(), sampleEvent()
	require.NoError(t, sink.Publish(ctx, first))
	require.NoError(t, sink.Publish(ctx, second))

	n, err := relay.pollOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, target.events, 2)
	assert.Equal(t, first.ID, target.events[0].ID)
	assert.Equal(t, second.ID, target.events[1].ID)

	length, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.Zero(t, length)

	n, err = relay.pollOnce(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayKeepsMessageOnFailure(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	target := &toggleSink{fail: true}
	relay := NewRelay(rdb, target, testStream, testGroup, "c1", log.Discard())
	require.NoError(t, relay.ensureGroup(ctx))

	e := sampleEvent()
	require.NoError(t, NewStreamSink(rdb, testStream, 0).Publish(ctx, e))

	_, err := relay.pollOnce(ctx, 0)
	require.Error(t, err)
	assert.Empty(t, target.events)

	pending, err := rdb.XPending(ctx, testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// 恢复后从 pending 重新投递
	target.setFail(false)
	n, err := relay.pollOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, target.events, 1)
	assert.Equal(t, e.ID, target.events[0].ID)
}

func TestRelayDiscardsMalformedMessage(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	target := &toggleSink{}
	relay := NewRelay(rdb, target, testStream, testGroup, "c1", log.Discard())
	require.NoError(t, relay.ensureGroup(ctx))

	require.NoError(t, rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"id": "x", "entity_kind": "order"},
	}).Err())

	n, err := relay.pollOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, target.events)

	length, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	rdb := newTestRedis(t)
	relay := NewRelay(rdb, &toggleSink{}, testStream, testGroup, "c1", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, relay.Run(ctx))
}
