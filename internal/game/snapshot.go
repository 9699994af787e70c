package game

import (
	"github.com/annel0/blockverse/internal/entity"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
)

// snapshotLocked собирает очередной снимок для сессии: чужие сущности,
// новые записи журнала и ещё не отправленные чанки в радиусе обзора.
// Пустой снимок тоже отправляется и служит подтверждением живости.
func (s *Server) snapshotLocked(sess *Session) *protocol.GameEvent {
	ev := &protocol.GameEvent{Tick: s.tick, You: uint64(sess.entity)}

	// Своя позиция приходит только в первом снимке и после отклонённой позиции клиента
	withSelf := sess.corrected || !sess.constantsSent
	if !sess.constantsSent {
		c := s.cfg.Constants
		ev.Constants = &c
		sess.constantsSent = true
	}

	entity.Each(s.entities, func(id entity.ID, pc *physics.PositionComponent) {
		if id == sess.entity && !withSelf {
			return
		}
		var typ uint16
		if kind, ok := entity.Get[entity.Kind](s.entities, id); ok {
			typ = uint16(kind.Type)
		}
		ev.Entities = append(ev.Entities, protocol.EntitySnapshot{
			ID:      uint64(id),
			Type:    typ,
			Pos:     pc.Placement.Pos,
			Yaw:     pc.Placement.Yaw,
			Pitch:   pc.Placement.Pitch,
			Falling: pc.IsFalling,
		})
	})
	sess.corrected = false

	if sess.updatesSent < len(s.updates) {
		ev.Updates = append([]protocol.BlockUpdate(nil), s.updates[sess.updatesSent:]...)
		sess.updatesSent = len(s.updates)
	}

	ev.Chunks = s.chunksLocked(sess)
	return ev
}

// chunksLocked выбирает до MaxChunksPerSnapshot чанков, которых у клиента нет
// или которые изменились мимо журнала. Обход идёт оболочками от чанка игрока.
func (s *Server) chunksLocked(sess *Session) []protocol.ChunkPayload {
	pc, ok := entity.Get[physics.PositionComponent](s.entities, sess.entity)
	if !ok {
		return nil
	}
	center := pc.Position().ChunkPos()

	var out []protocol.ChunkPayload
	for _, off := range s.shell {
		if len(out) >= s.cfg.MaxChunksPerSnapshot {
			break
		}

		pos := center.Add(off)
		if sent, ok := sess.sentChunks[pos]; ok {
			if c := s.world.PeekChunk(pos); c == nil || c.ContentHash() == sent {
				continue
			}
		}

		c := s.world.GetChunk(pos)
		if !c.IsCreated() {
			continue
		}

		data := c.GetChunkData()
		payload, err := protocol.NewChunkPayload(pos, c.ContentHash(), data, s.cfg.CompressChunks)
		if err != nil {
			s.logger.Error("Chunk %v encode failed: %v", pos, err)
			continue
		}
		out = append(out, payload)
		sess.sentChunks[pos] = c.ContentHash()
		logging.LogChunkData(s.logger, sess.ID(), int(pos.X), int(pos.Y), int(pos.Z), len(payload.Data))
	}

	s.metrics.AddChunksSent(len(out))
	return out
}
