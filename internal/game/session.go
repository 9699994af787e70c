package game

import (
	"time"

	"github.com/annel0/blockverse/internal/entity"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
)

// Conn описывает сетевой канал одного клиента с точки зрения симуляции.
// Все методы неблокирующие.
type Conn interface {
	ID() string
	RemoteAddr() string
	Receive(max int) []*protocol.PlayerEvent
	Send(ev *protocol.GameEvent) bool
	Pending() int
	Done() <-chan struct{}
	Close() error
}

// Session хранит состояние синхронизации одного соединения
type Session struct {
	conn   Conn
	entity entity.ID

	// sentChunks хранит хеш содержимого, с которым чанк был отправлен
	sentChunks    map[vec.Vec3]uint64
	updatesSent   int
	constantsSent bool

	// клиент прислал неприемлемую позицию, в следующем снимке
	// он получит свою серверную позицию
	corrected bool

	lastSeq     uint64
	connectedAt time.Time
}

func newSession(conn Conn, id entity.ID) *Session {
	return &Session{
		conn:        conn,
		entity:      id,
		sentChunks:  make(map[vec.Vec3]uint64),
		connectedAt: time.Now(),
	}
}

// ID возвращает идентификатор соединения
func (s *Session) ID() string { return s.conn.ID() }

// Entity возвращает сущность игрока
func (s *Session) Entity() entity.ID { return s.entity }

// SessionInfo — сведения о сессии для REST API
type SessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Entity      uint64    `json:"entity"`
	ChunksSent  int       `json:"chunks_sent"`
	UpdatesSent int       `json:"updates_sent"`
	LastSeq     uint64    `json:"last_seq"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:          s.conn.ID(),
		RemoteAddr:  s.conn.RemoteAddr(),
		Entity:      uint64(s.entity),
		ChunksSent:  len(s.sentChunks),
		UpdatesSent: s.updatesSent,
		LastSeq:     s.lastSeq,
		ConnectedAt: s.connectedAt,
	}
}
