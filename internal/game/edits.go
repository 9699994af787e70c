package game

import (
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/block"
)

// applyEditLocked применяет прямую правку блока в пределах досягаемости
func (s *Server) applyEditLocked(pc *physics.PositionComponent, edit protocol.BlockEdit) {
	if pc != nil && !s.inReach(pc, edit.Pos) {
		return
	}

	switch edit.Mode {
	case protocol.EditMine:
		s.mineLocked(edit.Pos)
	case protocol.EditPlace:
		s.placeLocked(pc, edit.Pos, edit.Block)
	}
}

// applyActionLocked находит блок лучом и применяет к нему действие
func (s *Server) applyActionLocked(pc *physics.PositionComponent, act protocol.Action) {
	targetable := physics.SolidFunc(s.world.IsTargetable)
	hit, ok := physics.CastRay(targetable, act.Origin, act.Dir, s.cfg.ReachDistance)
	if !ok {
		return
	}

	switch act.Mode {
	case protocol.EditMine:
		s.mineLocked(hit.Block)
	case protocol.EditPlace:
		if hit.Normal.IsZero() {
			return
		}
		s.placeLocked(pc, hit.Block.Add(hit.Normal), act.Block)
	}
}

func (s *Server) inReach(pc *physics.PositionComponent, pos vec.Vec3) bool {
	return pc.Position().Distance(fixed.BlockCenter(pos)) <= s.cfg.ReachDistance+1
}

func (s *Server) mineLocked(pos vec.Vec3) {
	id, ok := s.world.PeekBlock(pos.X, pos.Y, pos.Z)
	if !ok || id == block.AirBlockID || id == block.BedrockBlockID {
		return
	}
	s.setBlockLocked(pos, block.AirBlockID)
}

func (s *Server) placeLocked(pc *physics.PositionComponent, pos vec.Vec3, id uint16) {
	if id == block.AirBlockID || !block.IsValidBlockID(id) {
		return
	}
	cur, ok := s.world.PeekBlock(pos.X, pos.Y, pos.Z)
	if !ok || cur != block.AirBlockID {
		return
	}
	if pc != nil && block.IsSolid(id) && s.occupies(pc, pos) {
		return
	}
	s.setBlockLocked(pos, id)
}

// occupies проверяет, не окажется ли блок внутри тела сущности
func (s *Server) occupies(pc *physics.PositionComponent, pos vec.Vec3) bool {
	feet := pc.Position().BlockPos()
	head := fixed.FromFloat(s.cfg.Constants.Height).Block()
	return pos.X == feet.X && pos.Z == feet.Z && pos.Y >= feet.Y && pos.Y <= feet.Y+head
}

// setBlockLocked меняет блок, дописывает журнал изменений и переносит
// новый хеш чанка в сессии, которым изменение придёт через журнал
func (s *Server) setBlockLocked(pos vec.Vec3, id uint16) {
	cpos := pos.Shr(world.ChunkBits)
	c := s.world.PeekChunk(cpos)
	if c == nil {
		return
	}
	before, version := c.ContentHash(), c.Version()

	s.world.SetBlock(pos.X, pos.Y, pos.Z, id)
	if c.Version() == version {
		return
	}
	after := c.ContentHash()

	s.updates = append(s.updates, protocol.BlockUpdate{Index: uint64(len(s.updates)), Pos: pos, Block: id})
	s.metrics.AddBlockUpdates(1)

	for _, sess := range s.sessions {
		if h, ok := sess.sentChunks[cpos]; ok && h == before {
			sess.sentChunks[cpos] = after
		}
	}
}
