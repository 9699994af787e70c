package game

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
)

func TestFeedPublishesWorldEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	var (
		mu  sync.Mutex
		got []*eventbus.Envelope
	)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	s := newTestServer(t)
	s.SetEventBus(bus)

	a := connect(t, s, "a")
	for i := 0; i < 20; i++ {
		s.Tick(tick)
	}
	a.push(&protocol.PlayerEvent{
		Seq:   1,
		Pos:   playerPos(t, s, a),
		Edits: []protocol.BlockEdit{{Pos: vec.Vec3{X: 1, Y: 9, Z: 0}, Mode: protocol.EditMine}},
	})
	s.Tick(tick)
	s.Tick(tick)
	require.True(t, s.Disconnect("a", "bye"))
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)

	assert.Equal(t, eventbus.TypeSessionJoined, got[0].EventType)
	var join SessionEvent
	require.NoError(t, got[0].Decode(&join))
	assert.Equal(t, "a", join.Session)
	assert.Equal(t, "fake:a", join.RemoteAddr)
	assert.Equal(t, eventbus.PriorityHigh, got[0].Priority)

	assert.Equal(t, eventbus.TypeBlockUpdates, got[1].EventType)
	var upd BlockUpdatesEvent
	require.NoError(t, got[1].Decode(&upd))
	assert.Equal(t, []FeedUpdate{{Index: 0, X: 1, Y: 9, Z: 0, Block: 0}}, upd.Updates)
	assert.Equal(t, eventbus.PriorityLow, got[1].Priority)

	assert.Equal(t, eventbus.TypeSessionLeft, got[2].EventType)
	var left SessionEvent
	require.NoError(t, got[2].Decode(&left))
	assert.Equal(t, "bye", left.Reason)
	assert.Equal(t, join.Entity, left.Entity)
	assert.Equal(t, eventbus.PriorityHigh, got[2].Priority)
}
