// Package game связывает мир, сущности и сетевые сессии в цикл тиков сервера.
package game

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/blockverse/internal/entity"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/syncutil"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
)

// Config содержит параметры симуляции
type Config struct {
	TickInterval         time.Duration
	ViewRadius           int
	MaxChunksPerSnapshot int
	// MaxEventsPerTick ограничивает число входящих событий сессии за тик
	MaxEventsPerTick int
	CompressChunks   bool
	SpawnRadius      int64
	Animals          int
	ReachDistance    float64
	// MaxCorrection задаёт допустимое расхождение предсказания клиента с позицией сервера
	// (в блоках); при большем расхождении клиент получает поправку
	MaxCorrection float64
	Seed          int64
	Constants     physics.Constants
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		TickInterval:         10 * time.Millisecond,
		ViewRadius:           2,
		MaxChunksPerSnapshot: 4,
		MaxEventsPerTick:     64,
		CompressChunks:       true,
		SpawnRadius:          16,
		Animals:              8,
		ReachDistance:        8,
		MaxCorrection:        1,
		Constants:            physics.DefaultConstants(),
	}
}

// Server владеет миром, сущностями и сессиями. Всё состояние симуляции
// защищено одним мьютексом, который держит поток тиков.
type Server struct {
	cfg      Config
	world    *world.World
	entities *entity.Store
	mover    *physics.Mover
	shell    []vec.Vec3

	mu       deadlock.Mutex
	sessions map[string]*Session
	updates  []protocol.BlockUpdate
	tick     uint64
	rng      *rand.Rand

	// bus получает ленту событий мира; feedSent — длина уже опубликованного журнала
	bus      eventbus.EventBus
	feedSent int

	joins   *syncutil.Queue[Conn]
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewServer создаёт сервер поверх мира w
func NewServer(w *world.World, cfg Config, m *metrics.Metrics) *Server {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MaxChunksPerSnapshot <= 0 {
		cfg.MaxChunksPerSnapshot = def.MaxChunksPerSnapshot
	}
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = def.MaxEventsPerTick
	}
	if cfg.ReachDistance <= 0 {
		cfg.ReachDistance = def.ReachDistance
	}
	if cfg.MaxCorrection <= 0 {
		cfg.MaxCorrection = def.MaxCorrection
	}
	if cfg.Constants == (physics.Constants{}) {
		cfg.Constants = def.Constants
	}

	return &Server{
		cfg:      cfg,
		world:    w,
		entities: entity.NewStore(),
		mover:    physics.NewMover(w, cfg.Constants, cfg.SpawnRadius, cfg.Seed),
		shell:    ShellOrder(cfg.ViewRadius),
		sessions: make(map[string]*Session),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		joins:    syncutil.NewQueue[Conn](),
		logger:   logging.GetGameLogger(),
		metrics:  m,
		tracer:   otel.Tracer("github.com/annel0/blockverse/internal/game"),
	}
}

// World возвращает мир сервера
func (s *Server) World() *world.World { return s.world }

// Connect ставит новое соединение в очередь; сессия создаётся в начале следующего тика
func (s *Server) Connect(conn Conn) {
	if !s.joins.Push(conn) {
		conn.Close()
	}
}

// Disconnect отправляет клиенту финальное событие и удаляет его сессию и сущность
func (s *Server) Disconnect(id, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectLocked(id, reason)
}

func (s *Server) disconnectLocked(id, reason string) bool {
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}

	sess.conn.Send(&protocol.GameEvent{Tick: s.tick, You: uint64(sess.entity), Disconnect: true, Reason: reason})
	sess.conn.Close()
	s.removeLocked(sess, reason)
	s.logger.Info("Client disconnected: id=%s reason=%s", id, reason)
	return true
}

func (s *Server) removeLocked(sess *Session, reason string) {
	s.entities.Remove(sess.entity)
	delete(s.sessions, sess.ID())
	s.metrics.SetSessions(len(s.sessions))
	s.publishLocked(eventbus.TypeSessionLeft, eventbus.PriorityHigh, SessionEvent{Session: sess.ID(), Entity: uint64(sess.entity), Reason: reason})
}

// SpawnAnimals создаёт n животных в радиусе появления
func (s *Server) SpawnAnimals(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < n; i++ {
		id := s.entities.Create()
		pc := physics.NewPositionComponent(fixed.Vec3{})
		s.mover.Respawn(pc)

		pos := pc.Position()
		home := vec.Vec2Float{X: pos.X.Float(), Y: pos.Z.Float()}
		entity.Set(s.entities, id, &entity.Kind{Type: entity.EntityTypeAnimal})
		entity.Set(s.entities, id, pc)
		entity.Set(s.entities, id, &entity.Controller{})
		entity.Set(s.entities, id, entity.NewAI(s.rng.Int63(), home))
	}
	s.logger.Info("Spawned %d animals", n)
}

// Run крутит цикл тиков с фиксированным интервалом до отмены ctx.
// После тика спит остаток интервала; опоздавшие тики не догоняются.
func (s *Server) Run(ctx context.Context) error {
	interval := s.cfg.TickInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	last := time.Now()
	for {
		start := time.Now()
		dt := start.Sub(last)
		if limit := 5 * interval; dt > limit {
			dt = limit
		}
		last = start

		s.tickTraced(ctx, dt)

		elapsed := time.Since(start)
		s.metrics.ObserveTick(elapsed, interval)

		wait := interval - elapsed
		if wait <= 0 {
			select {
			case <-ctx.Done():
				s.Shutdown("server shutting down")
				return nil
			default:
				continue
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			s.Shutdown("server shutting down")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Server) tickTraced(ctx context.Context, dt time.Duration) {
	_, span := s.tracer.Start(ctx, "game.tick")
	defer span.End()

	s.Tick(dt)
	span.SetAttributes(
		attribute.Int64("tick", int64(s.CurrentTick())),
		attribute.Int64("dt_us", dt.Microseconds()),
	)
}

// Shutdown отключает все сессии
func (s *Server) Shutdown(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.sessionIDsLocked() {
		s.disconnectLocked(id, reason)
	}
	s.joins.Close()
	for _, conn := range s.joins.Drain(0) {
		conn.Close()
	}
}

// CurrentTick возвращает номер последнего тика
func (s *Server) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

func (s *Server) sessionIDsLocked() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats содержит сводку состояния сервера
type Stats struct {
	Tick         uint64 `json:"tick"`
	Sessions     int    `json:"sessions"`
	Entities     int    `json:"entities"`
	LoadedChunks int    `json:"loaded_chunks"`
	BlockUpdates int    `json:"block_updates"`
}

// Stats возвращает сводку состояния
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Tick:         s.tick,
		Sessions:     len(s.sessions),
		Entities:     s.entities.Count(),
		LoadedChunks: s.world.ChunkCount(),
		BlockUpdates: len(s.updates),
	}
}

// Sessions возвращает сведения о подключённых клиентах
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionInfo, 0, len(s.sessions))
	for _, id := range s.sessionIDsLocked() {
		out = append(out, s.sessions[id].info())
	}
	return out
}

// ChunkInfo содержит сведения о чанке для REST API
type ChunkInfo struct {
	Pos       vec.Vec3 `json:"pos"`
	Hash      uint64   `json:"hash"`
	Version   uint64   `json:"version"`
	Created   bool     `json:"created"`
	Allocated bool     `json:"allocated"`
	Size      int      `json:"encoded_size"`
}

// ChunkInfo возвращает сведения о загруженном чанке, не вызывая генерацию
func (s *Server) ChunkInfo(pos vec.Vec3) (ChunkInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.world.PeekChunk(pos)
	if c == nil {
		return ChunkInfo{}, false
	}
	return ChunkInfo{
		Pos:       pos,
		Hash:      c.ContentHash(),
		Version:   c.Version(),
		Created:   c.IsCreated(),
		Allocated: c.IsAllocated(),
		Size:      len(c.GetChunkData()),
	}, true
}
