package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/entity"
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/block"
)

const tick = 10 * time.Millisecond

type fakeConn struct {
	id string

	mu      sync.Mutex
	in      []*protocol.PlayerEvent
	out     []*protocol.GameEvent
	pending int
	closed  bool
	done    chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, done: make(chan struct{})}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) RemoteAddr() string { return "fake:" + c.id }

func (c *fakeConn) Receive(max int) []*protocol.PlayerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.in)
	if max > 0 && max < n {
		n = max
	}
	out := c.in[:n]
	c.in = append([]*protocol.PlayerEvent(nil), c.in[n:]...)
	return out
}

func (c *fakeConn) Send(ev *protocol.GameEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.out = append(c.out, ev)
	return true
}

func (c *fakeConn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) push(ev *protocol.PlayerEvent) {
	c.mu.Lock()
	c.in = append(c.in, ev)
	c.mu.Unlock()
}

func (c *fakeConn) events() []*protocol.GameEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.GameEvent(nil), c.out...)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ViewRadius = 1
	cfg.MaxChunksPerSnapshot = 4
	cfg.CompressChunks = false
	cfg.SpawnRadius = 0
	cfg.Animals = 0
	return NewServer(world.NewWorld(world.NewFlatGenerator(10), nil), cfg, nil)
}

func connect(t *testing.T, s *Server, id string) *fakeConn {
	t.Helper()
	c := newFakeConn(id)
	s.Connect(c)
	s.Tick(tick)
	return c
}

func playerPos(t *testing.T, s *Server, c *fakeConn) fixed.Vec3 {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.ID()]
	require.True(t, ok)
	pc, ok := entity.Get[physics.PositionComponent](s.entities, sess.entity)
	require.True(t, ok)
	return pc.Position()
}

func chunkCounts(events []*protocol.GameEvent) map[vec.Vec3]int {
	counts := make(map[vec.Vec3]int)
	for _, ev := range events {
		for _, p := range ev.Chunks {
			counts[p.Pos]++
		}
	}
	return counts
}

func TestShellOrder(t *testing.T) {
	assert.Nil(t, ShellOrder(-1))
	assert.Equal(t, []vec.Vec3{{}}, ShellOrder(0))

	order := ShellOrder(1)
	require.Len(t, order, 27)
	assert.Equal(t, vec.Vec3{}, order[0])
	assert.Equal(t, vec.Vec3{X: -1, Y: -1, Z: -1}, order[1])
	assert.Equal(t, vec.Vec3{X: 0, Y: -1, Z: -1}, order[2])
	assert.Equal(t, vec.Vec3{X: 1, Y: 1, Z: 1}, order[26])

	big := ShellOrder(2)
	require.Len(t, big, 125)
	for i := 1; i < len(big); i++ {
		assert.LessOrEqual(t, big[i-1].Chebyshev(vec.Vec3{}), big[i].Chebyshev(vec.Vec3{}))
	}
}

func TestFirstSnapshotCarriesConstants(t *testing.T) {
	s := newTestServer(t)
	c := connect(t, s, "a")

	events := c.events()
	require.Len(t, events, 1)
	first := events[0]
	require.NotNil(t, first.Constants)
	assert.Equal(t, physics.DefaultConstants(), *first.Constants)
	assert.NotZero(t, first.You)
	require.Len(t, first.Chunks, 4)
	assert.Equal(t, vec.Vec3{}, first.Chunks[0].Pos)
	require.Len(t, first.Entities, 1)
	assert.Equal(t, first.You, first.Entities[0].ID)
	assert.Equal(t, fixed.FromFloats(0.5, 10, 0.5), first.Entities[0].Pos)

	s.Tick(tick)
	events = c.events()
	require.Len(t, events, 2)
	assert.Nil(t, events[1].Constants)
	assert.Empty(t, events[1].Entities)
}

func TestEveryChunkInViewSentOnce(t *testing.T) {
	s := newTestServer(t)
	c := connect(t, s, "a")

	for i := 0; i < 20; i++ {
		s.Tick(tick)
	}

	counts := chunkCounts(c.events())
	assert.Len(t, counts, 27)
	for _, off := range ShellOrder(1) {
		assert.Equal(t, 1, counts[off], "chunk %v", off)
	}

	for _, p := range c.events()[0].Chunks {
		ch := world.NewChunk(p.Pos)
		raw, err := p.Raw()
		require.NoError(t, err)
		require.NoError(t, ch.PasteChunkData(raw))
		assert.Equal(t, p.Hash, ch.ContentHash())
	}
}

func TestIdleConnectionGetsEmptySnapshots(t *testing.T) {
	s := newTestServer(t)
	c := connect(t, s, "a")
	for i := 0; i < 20; i++ {
		s.Tick(tick)
	}

	events := c.events()
	require.Len(t, events, 21)
	assert.True(t, events[20].IsEmpty())
	assert.Equal(t, s.CurrentTick(), events[20].Tick)
}

func TestBusyConnectionSkipsSnapshot(t *testing.T) {
	s := newTestServer(t)
	c := connect(t, s, "a")

	c.mu.Lock()
	c.pending = 1
	c.mu.Unlock()
	s.Tick(tick)
	s.Tick(tick)
	assert.Len(t, c.events(), 1)

	c.mu.Lock()
	c.pending = 0
	c.mu.Unlock()
	s.Tick(tick)
	assert.Len(t, c.events(), 2)
}

func TestBlockEditsReachEveryConnectionOnce(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	b := connect(t, s, "b")
	for i := 0; i < 20; i++ {
		s.Tick(tick)
	}

	a.push(&protocol.PlayerEvent{
		Seq: 1,
		Pos: playerPos(t, s, a),
		Edits: []protocol.BlockEdit{
			{Pos: vec.Vec3{X: 1, Y: 9, Z: 0}, Mode: protocol.EditMine},
			{Pos: vec.Vec3{X: 1, Y: 9, Z: 0}, Mode: protocol.EditMine},
			{Pos: vec.Vec3{X: 2, Y: 10, Z: 0}, Block: block.StoneBlockID, Mode: protocol.EditPlace},
		},
	})
	for i := 0; i < 5; i++ {
		s.Tick(tick)
	}

	for _, c := range []*fakeConn{a, b} {
		var updates []protocol.BlockUpdate
		for _, ev := range c.events() {
			updates = append(updates, ev.Updates...)
		}
		require.Len(t, updates, 2, "connection %s", c.ID())
		assert.Equal(t, protocol.BlockUpdate{Index: 0, Pos: vec.Vec3{X: 1, Y: 9, Z: 0}, Block: block.AirBlockID}, updates[0])
		assert.Equal(t, protocol.BlockUpdate{Index: 1, Pos: vec.Vec3{X: 2, Y: 10, Z: 0}, Block: block.StoneBlockID}, updates[1])

		for pos, n := range chunkCounts(c.events()) {
			assert.Equal(t, 1, n, "chunk %v resent to %s", pos, c.ID())
		}
	}

	assert.Equal(t, block.AirBlockID, s.World().Block(1, 9, 0))
	assert.Equal(t, block.StoneBlockID, s.World().Block(2, 10, 0))
}

func TestEditsOutOfReachIgnored(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")

	a.push(&protocol.PlayerEvent{
		Pos:   playerPos(t, s, a),
		Edits: []protocol.BlockEdit{{Pos: vec.Vec3{X: 40, Y: 9, Z: 0}, Mode: protocol.EditMine}},
	})
	s.Tick(tick)

	assert.Equal(t, 0, s.Stats().BlockUpdates)
}

func TestActionsResolvedByRay(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	for i := 0; i < 20; i++ {
		s.Tick(tick)
	}

	down := vec.Vec3Float{Y: -1}
	a.push(&protocol.PlayerEvent{
		Pos: playerPos(t, s, a),
		Actions: []protocol.Action{
			{Origin: fixed.FromFloats(3.5, 11.5, 0.5), Dir: down, Mode: protocol.EditMine},
			{Origin: fixed.FromFloats(-2.5, 11.5, 0.5), Dir: down, Mode: protocol.EditPlace, Block: block.WoodBlockID},
			// Под ногами игрока ставить нельзя
			{Origin: fixed.FromFloats(0.5, 11.5, 0.5), Dir: down, Mode: protocol.EditPlace, Block: block.StoneBlockID},
		},
	})
	s.Tick(tick)

	w := s.World()
	assert.Equal(t, block.AirBlockID, w.Block(3, 9, 0))
	assert.Equal(t, block.WoodBlockID, w.Block(-3, 10, 0))
	assert.Equal(t, block.AirBlockID, w.Block(0, 10, 0))
	assert.Equal(t, 2, s.Stats().BlockUpdates)
}

func TestReportedPositionWithinToleranceNotCorrected(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	s.Tick(tick)

	start := playerPos(t, s, a)
	before := len(a.events())
	a.push(&protocol.PlayerEvent{Seq: 1, Pos: start.Add(fixed.Vec3{X: fixed.Half})})
	s.Tick(tick)

	// Позицию определяет сервер, но поправка клиенту не нужна
	assert.Equal(t, start, playerPos(t, s, a))
	events := a.events()[before:]
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Entities)
}

func TestReportedPositionFarAwayCorrected(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	s.Tick(tick)

	start := playerPos(t, s, a)
	before := len(a.events())
	a.push(&protocol.PlayerEvent{Seq: 1, Pos: start.Add(fixed.Vec3{X: fixed.FromBlock(100)})})
	s.Tick(tick)

	assert.Equal(t, start, playerPos(t, s, a))
	events := a.events()[before:]
	require.Len(t, events, 1)
	require.Len(t, events[0].Entities, 1)
	assert.Equal(t, events[0].You, events[0].Entities[0].ID)
}

func TestReportedPositionCannotPassWalls(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	s.Tick(tick)

	s.mu.Lock()
	s.world.GetChunk(vec.Vec3{})
	for y := int64(10); y < 14; y++ {
		require.True(t, s.world.SetBlock(1, y, 0, block.StoneBlockID))
	}
	s.mu.Unlock()

	start := playerPos(t, s, a)
	right := protocol.InputBits(physics.Input{Right: true})
	beyond := fixed.FromFloats(2.5, start.Y.Float(), start.Z.Float())

	corrections := 0
	for i := 0; i < 50; i++ {
		before := len(a.events())
		a.push(&protocol.PlayerEvent{Seq: uint64(i + 1), Pos: beyond, Input: right})
		s.Tick(tick)
		for _, ev := range a.events()[before:] {
			if len(ev.Entities) > 0 {
				corrections++
			}
		}
	}

	pos := playerPos(t, s, a)
	r := fixed.FromFloat(physics.DefaultConstants().Radius)
	assert.Equal(t, fixed.FromBlock(1)-r, pos.X, "стена останавливает игрока")
	assert.Equal(t, start.Y, pos.Y)
	assert.Positive(t, corrections)
}

func TestReportedPositionCannotHover(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	s.Tick(tick)

	floor := playerPos(t, s, a).Y
	for i := 0; i < 50; i++ {
		pos := playerPos(t, s, a)
		a.push(&protocol.PlayerEvent{Seq: uint64(i + 1), Pos: pos.Add(fixed.Vec3{Y: fixed.FromBlock(3)})})
		s.Tick(tick)
	}

	assert.Equal(t, floor, playerPos(t, s, a).Y)
}

func TestReportedPositionInsideBlockCorrected(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	s.Tick(tick)

	s.mu.Lock()
	s.world.GetChunk(vec.Vec3{})
	require.True(t, s.world.SetBlock(1, 11, 0, block.StoneBlockID))
	s.mu.Unlock()

	// Рядом с сервером, ноги свободны, но хитбокс задевает блок на уровне головы
	start := playerPos(t, s, a)
	report := fixed.FromFloats(0.9, start.Y.Float(), start.Z.Float())
	before := len(a.events())
	a.push(&protocol.PlayerEvent{Seq: 1, Pos: report})
	s.Tick(tick)

	events := a.events()[before:]
	require.Len(t, events, 1)
	require.Len(t, events[0].Entities, 1)
	assert.Equal(t, start, playerPos(t, s, a))
}

func TestDisconnectSendsFinalEvent(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	b := connect(t, s, "b")
	require.Equal(t, 2, s.Stats().Entities)

	assert.True(t, s.Disconnect(a.ID(), "kicked"))
	assert.False(t, s.Disconnect(a.ID(), "again"))

	events := a.events()
	last := events[len(events)-1]
	assert.True(t, last.Disconnect)
	assert.Equal(t, "kicked", last.Reason)
	assert.True(t, a.closed)

	st := s.Stats()
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 1, st.Entities)

	// Оставшийся клиент больше не видит отключившегося
	s.Tick(tick)
	bev := b.events()
	assert.Empty(t, bev[len(bev)-1].Entities)
}

func TestLostConnectionIsReaped(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	sent := len(a.events())

	close(a.done)
	s.Tick(tick)

	assert.Equal(t, 0, s.Stats().Sessions)
	assert.Equal(t, 0, s.Stats().Entities)
	assert.Len(t, a.events(), sent)
}

func TestOtherEntitiesVisible(t *testing.T) {
	s := newTestServer(t)
	a := connect(t, s, "a")
	connect(t, s, "b")
	s.SpawnAnimals(2)
	s.Tick(tick)

	events := a.events()
	last := events[len(events)-1]
	require.Len(t, last.Entities, 3)

	types := map[uint16]int{}
	for _, e := range last.Entities {
		assert.NotEqual(t, last.You, e.ID)
		types[e.Type]++
	}
	assert.Equal(t, 1, types[uint16(entity.EntityTypePlayer)])
	assert.Equal(t, 2, types[uint16(entity.EntityTypeAnimal)])
}

func TestAnimalsStayOnTerrain(t *testing.T) {
	s := newTestServer(t)
	s.SpawnAnimals(3)

	homes := map[entity.ID]vec.Vec2Float{}
	entity.Each(s.entities, func(id entity.ID, ai *entity.AI) { homes[id] = ai.Home })
	require.Len(t, homes, 3)

	// За 3 секунды со скоростью ходьбы нельзя уйти дальше 13 блоков
	for i := 0; i < 300; i++ {
		s.Tick(tick)
	}

	for id, home := range homes {
		pc, ok := entity.Get[physics.PositionComponent](s.entities, id)
		require.True(t, ok)
		pos := pc.Position()
		assert.Greater(t, pos.Y.Float(), 9.9, "animal %d fell through the floor", id)
		d := vec.Vec2Float{X: pos.X.Float(), Y: pos.Z.Float()}.DistanceTo(home)
		assert.LessOrEqual(t, d, 13.0, "animal %d", id)
	}
}

func TestRunStopsAndDisconnectsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.ViewRadius = 0
	cfg.SpawnRadius = 0
	s := NewServer(world.NewWorld(world.NewFlatGenerator(10), nil), cfg, nil)

	a := newFakeConn("a")
	s.Connect(a)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	events := a.events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Disconnect)
	assert.Equal(t, "server shutting down", last.Reason)
	assert.Greater(t, s.CurrentTick(), uint64(1))

	late := newFakeConn("late")
	s.Connect(late)
	assert.True(t, late.closed, "connection after shutdown must be closed")
}
