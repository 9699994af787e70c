package game

import (
	"context"
	"time"

	"github.com/annel0/blockverse/internal/eventbus"
)

const feedSource = "blockverse-game"

// feedWait ограничивает ожидание места в шине для важных событий, чтобы не задерживать тик
const feedWait = 50 * time.Millisecond

// FeedUpdate описывает изменение блока в ленте событий мира
type FeedUpdate struct {
	Index uint64 `json:"index"`
	X     int64  `json:"x"`
	Y     int64  `json:"y"`
	Z     int64  `json:"z"`
	Block uint16 `json:"block"`
}

// BlockUpdatesEvent собирает изменения блоков за один тик
type BlockUpdatesEvent struct {
	Updates []FeedUpdate `json:"updates"`
}

// SessionEvent — подключение или отключение клиента
type SessionEvent struct {
	Session    string `json:"session"`
	Entity     uint64 `json:"entity"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SetEventBus подключает ленту событий мира; nil отключает публикацию
func (s *Server) SetEventBus(bus eventbus.EventBus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus = bus
	s.feedSent = len(s.updates)
}

// publishLocked публикует событие в ленту. Подключения и отключения идут с
// PriorityHigh: при переполненной шине их ждут, а изменения блоков отбрасываются.
func (s *Server) publishLocked(eventType string, priority int, payload interface{}) {
	if s.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(feedSource, eventType, s.tick, payload)
	if err == nil {
		ev.Priority = priority
		ctx, cancel := context.WithTimeout(context.Background(), feedWait)
		err = s.bus.Publish(ctx, ev)
		cancel()
	}
	if err != nil {
		s.logger.Debug("Event %s not published: %v", eventType, err)
	}
}

// publishUpdatesLocked отправляет в ленту записи журнала, появившиеся за тик
func (s *Server) publishUpdatesLocked() {
	if s.bus == nil || s.feedSent >= len(s.updates) {
		return
	}

	fresh := s.updates[s.feedSent:]
	out := BlockUpdatesEvent{Updates: make([]FeedUpdate, len(fresh))}
	for i, u := range fresh {
		out.Updates[i] = FeedUpdate{Index: u.Index, X: u.Pos.X, Y: u.Pos.Y, Z: u.Pos.Z, Block: u.Block}
	}
	s.feedSent = len(s.updates)
	s.publishLocked(eventbus.TypeBlockUpdates, eventbus.PriorityLow, out)
}
