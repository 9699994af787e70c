// Package client держит зеркало мира на стороне игрока и обменивается
// событиями с сервером.
package client

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/network"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/syncutil"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
)

// ErrConnectionLost: соединение разорвано без события отключения
var ErrConnectionLost = errors.New("connection lost")

// Conn описывает клиентскую сторону канала
type Conn interface {
	Receive(max int) []*protocol.GameEvent
	Send(ev *protocol.PlayerEvent) bool
	Incoming() <-chan struct{}
	Done() <-chan struct{}
	Close() error
}

// Client — сессия игрока. Сетевая горутина применяет снимки под обычной
// блокировкой, а отображение читает состояние через приоритетную.
type Client struct {
	conn   Conn
	logger *logging.Logger

	mu       syncutil.PriorityMutex
	world    *world.World
	mover    *physics.Mover
	self     *physics.PositionComponent
	you      uint64
	entities map[uint64]protocol.EntitySnapshot
	tick     uint64
	seq      uint64

	chunksApplied int
	chunksDropped int
	disconnected  bool
	reason        string
}

// Dial подключается к серверу и создаёт клиента
func Dial(ctx context.Context, transport, addr string) (*Client, error) {
	ch, err := network.Dial(ctx, transport, addr, nil)
	if err != nil {
		return nil, err
	}
	return New(ch), nil
}

// New создаёт клиента поверх установленного канала
func New(conn Conn) *Client {
	return &Client{
		conn:     conn,
		logger:   logging.GetClientLogger(),
		world:    world.NewWorld(nil, nil),
		entities: make(map[uint64]protocol.EntitySnapshot),
	}
}

// Run применяет входящие снимки до отмены ctx или разрыва соединения.
// Возвращает nil, если сервер прислал событие отключения.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.conn.Close()
			return ctx.Err()
		case <-c.conn.Incoming():
			if c.drain() {
				c.conn.Close()
				return nil
			}
		case <-c.conn.Done():
			if c.drain() {
				return nil
			}
			c.mu.Lock()
			c.disconnected = true
			if c.reason == "" {
				c.reason = ErrConnectionLost.Error()
			}
			c.mu.Unlock()
			return ErrConnectionLost
		}
	}
}

// drain применяет все накопленные события; true — пришло отключение
func (c *Client) drain() bool {
	for _, ev := range c.conn.Receive(0) {
		c.Apply(ev)
		if ev.Disconnect {
			return true
		}
	}
	return false
}

// Apply применяет один снимок сервера к зеркалу мира
func (c *Client) Apply(ev *protocol.GameEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick = ev.Tick
	c.you = ev.You

	if ev.Constants != nil {
		c.mover = physics.NewMover(c.world, *ev.Constants, 0, int64(ev.You))
	}

	// Сначала чанки, затем журнал: журнал всегда новее содержимого чанков
	for _, p := range ev.Chunks {
		c.applyChunk(p)
	}
	for _, u := range ev.Updates {
		c.world.SetBlock(u.Pos.X, u.Pos.Y, u.Pos.Z, u.Block)
	}

	others := make(map[uint64]protocol.EntitySnapshot, len(ev.Entities))
	for _, e := range ev.Entities {
		if e.ID == ev.You {
			c.placeSelf(e)
			continue
		}
		others[e.ID] = e
	}
	c.entities = others

	if ev.Disconnect {
		c.disconnected = true
		c.reason = ev.Reason
		c.logger.Info("Disconnected by server: %s", ev.Reason)
	}
}

func (c *Client) applyChunk(p protocol.ChunkPayload) {
	raw, err := p.Raw()
	if err == nil {
		ch := c.world.GetChunk(p.Pos)
		if err = ch.PasteChunkData(raw); err == nil {
			ch.MarkCreated()
			c.chunksApplied++
			if ch.ContentHash() != p.Hash {
				c.logger.Warn("Chunk %v hash mismatch: got %x, server %x", p.Pos, ch.ContentHash(), p.Hash)
			}
			return
		}
	}

	c.chunksDropped++
	c.logger.Error("Dropping chunk %v: %v", p.Pos, err)
}

func (c *Client) placeSelf(e protocol.EntitySnapshot) {
	if c.self == nil {
		c.self = physics.NewPositionComponent(e.Pos)
	} else {
		c.self.Teleport(e.Pos)
	}
	c.self.Placement.Yaw = e.Yaw
	c.self.Placement.Pitch = e.Pitch
}

// Step предсказывает собственное движение и отправляет его серверу вместе с правками.
// Возвращает false, пока позиция игрока неизвестна или канал закрыт.
func (c *Client) Step(input physics.Input, pitch float64, dt time.Duration, edits []protocol.BlockEdit, actions []protocol.Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.self == nil || c.mover == nil || c.disconnected {
		return false
	}

	c.mover.Step(c.self, input, dt)
	c.self.Placement.Pitch = pitch
	c.seq++

	return c.conn.Send(&protocol.PlayerEvent{
		Seq:     c.seq,
		Pos:     c.self.Position(),
		Yaw:     input.Yaw,
		Pitch:   pitch,
		Input:   protocol.InputBits(input),
		Edits:   edits,
		Actions: actions,
	})
}

// Eye возвращает точку глаз игрока и направление взгляда
func (c *Client) Eye() (fixed.Vec3, vec.Vec3Float, bool) {
	c.mu.PriorityLock()
	defer c.mu.PriorityUnlock()
	return c.eyeLocked()
}

func (c *Client) eyeLocked() (fixed.Vec3, vec.Vec3Float, bool) {
	if c.self == nil || c.mover == nil {
		return fixed.Vec3{}, vec.Vec3Float{}, false
	}
	eye := c.self.Position()
	eye.Y += fixed.FromFloat(c.mover.Constants.Height * 0.9)
	return eye, c.self.Placement.Look(), true
}

// Target ищет блок, на который смотрит игрок
func (c *Client) Target(maxDist float64) (*physics.RayHit, bool) {
	c.mu.PriorityLock()
	defer c.mu.PriorityUnlock()

	origin, dir, ok := c.eyeLocked()
	if !ok {
		return nil, false
	}
	return physics.CastRay(physics.SolidFunc(c.world.IsTargetable), origin, dir, maxDist)
}

// Block возвращает блок из зеркала мира; ok=false, если чанк ещё не получен
func (c *Client) Block(x, y, z int64) (uint16, bool) {
	c.mu.PriorityLock()
	defer c.mu.PriorityUnlock()
	return c.world.PeekBlock(x, y, z)
}

// State содержит снимок клиентского состояния для отображения
type State struct {
	Tick          uint64
	You           uint64
	Position      fixed.Vec3
	Known         bool
	Falling       bool
	Entities      []protocol.EntitySnapshot
	Chunks        int
	ChunksDropped int
	Disconnected  bool
	Reason        string
}

// State возвращает копию состояния, забирая блокировку вне очереди
func (c *Client) State() State {
	c.mu.PriorityLock()
	defer c.mu.PriorityUnlock()

	st := State{
		Tick:          c.tick,
		You:           c.you,
		Chunks:        c.chunksApplied,
		ChunksDropped: c.chunksDropped,
		Disconnected:  c.disconnected,
		Reason:        c.reason,
	}
	if c.self != nil {
		st.Known = true
		st.Position = c.self.Placement.Pos
		st.Falling = c.self.IsFalling
	}

	st.Entities = make([]protocol.EntitySnapshot, 0, len(c.entities))
	for _, e := range c.entities {
		st.Entities = append(st.Entities, e)
	}
	sort.Slice(st.Entities, func(i, j int) bool { return st.Entities[i].ID < st.Entities[j].ID })
	return st
}

// Close закрывает соединение
func (c *Client) Close() error {
	return c.conn.Close()
}
