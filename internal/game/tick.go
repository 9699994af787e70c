package game

import (
	"time"

	"github.com/annel0/blockverse/internal/entity"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
)

// Tick выполняет один шаг симуляции:
// входящие события, ИИ и движение, затем снимки для клиентов
func (s *Server) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.acceptJoinsLocked()
	s.reapLocked()

	ids := s.sessionIDsLocked()
	for _, id := range ids {
		s.applyInboundLocked(s.sessions[id])
	}

	s.simulateLocked(dt)
	s.publishUpdatesLocked()

	for _, id := range ids {
		sess, ok := s.sessions[id]
		if !ok || sess.conn.Pending() > 0 {
			continue
		}
		sess.conn.Send(s.snapshotLocked(sess))
	}

	s.metrics.SetLoadedChunks(s.world.ChunkCount())
}

// acceptJoinsLocked создаёт сессии для соединений, подключившихся с прошлого тика
func (s *Server) acceptJoinsLocked() {
	for _, conn := range s.joins.Drain(0) {
		id := s.entities.Create()
		pc := physics.NewPositionComponent(fixed.Vec3{})
		s.mover.Respawn(pc)

		entity.Set(s.entities, id, &entity.Kind{Type: entity.EntityTypePlayer})
		entity.Set(s.entities, id, &entity.Player{SessionID: conn.ID()})
		entity.Set(s.entities, id, pc)
		entity.Set(s.entities, id, &entity.Controller{})

		s.sessions[conn.ID()] = newSession(conn, id)
		s.metrics.SetSessions(len(s.sessions))
		s.publishLocked(eventbus.TypeSessionJoined, eventbus.PriorityHigh, SessionEvent{Session: conn.ID(), Entity: uint64(id), RemoteAddr: conn.RemoteAddr()})
		s.logger.Info("Client connected: id=%s addr=%s entity=%d", conn.ID(), conn.RemoteAddr(), id)
	}
}

// reapLocked убирает сессии, чьи соединения уже разорваны
func (s *Server) reapLocked() {
	for _, id := range s.sessionIDsLocked() {
		sess := s.sessions[id]
		select {
		case <-sess.conn.Done():
			s.removeLocked(sess, "connection lost")
			s.logger.Info("Client connection lost: id=%s", id)
		default:
		}
	}
}

// applyInboundLocked применяет накопленные события клиента к его сущности и миру
func (s *Server) applyInboundLocked(sess *Session) {
	events := sess.conn.Receive(s.cfg.MaxEventsPerTick)
	if len(events) == 0 {
		return
	}

	pc, _ := entity.Get[physics.PositionComponent](s.entities, sess.entity)
	ctrl, _ := entity.Get[entity.Controller](s.entities, sess.entity)

	jump := false
	for _, ev := range events {
		sess.lastSeq = ev.Seq
		input := ev.Movement()
		jump = jump || input.Jump
		if ctrl != nil {
			ctrl.Input = input
		}
		if pc != nil {
			s.applyReportedLocked(pc, ctrl, ev)
		}

		for _, edit := range ev.Edits {
			s.applyEditLocked(pc, edit)
		}
		for _, act := range ev.Actions {
			s.applyActionLocked(pc, act)
		}
	}
	if ctrl != nil {
		ctrl.Input.Jump = jump
	}
}

// applyReportedLocked запоминает позицию клиента; она сверяется после шага движения
func (s *Server) applyReportedLocked(pc *physics.PositionComponent, ctrl *entity.Controller, ev *protocol.PlayerEvent) {
	pc.Placement.Yaw = ev.Yaw
	pc.Placement.Pitch = ev.Pitch
	if ctrl != nil {
		ctrl.Report = ev.Pos
		ctrl.HasReport = true
	}
}

// reconcileLocked сравнивает сообщённую клиентом позицию с серверной.
// Позиция сервера не меняется; при расхождении больше MaxCorrection или если
// хитбокс клиента пересекает твёрдые блоки, следующий снимок содержит
// собственную сущность клиента.
func (s *Server) reconcileLocked(id entity.ID, pc *physics.PositionComponent, ctrl *entity.Controller) {
	report := ctrl.Report
	ctrl.HasReport = false

	if report == pc.Position() {
		return
	}
	if report.Distance(pc.Position()) <= s.cfg.MaxCorrection && s.mover.Fits(report) {
		return
	}

	player, ok := entity.Get[entity.Player](s.entities, id)
	if !ok {
		return
	}
	if sess, ok := s.sessions[player.SessionID]; ok {
		sess.corrected = true
		s.logger.Debug("Correcting %s: reported %v, server %v", sess.ID(), report.Floats(), pc.Position().Floats())
	}
}

// simulateLocked обновляет ИИ, затем двигает все сущности с позицией
func (s *Server) simulateLocked(dt time.Duration) {
	entity.Each(s.entities, func(id entity.ID, ai *entity.AI) {
		pc, ok := entity.Get[physics.PositionComponent](s.entities, id)
		if !ok {
			return
		}
		ctrl, ok := entity.Get[entity.Controller](s.entities, id)
		if !ok {
			return
		}
		pos := pc.Position()
		ctrl.Input = ai.Update(vec.Vec2Float{X: pos.X.Float(), Y: pos.Z.Float()}, pc.IsFalling, dt)
	})

	entity.Each(s.entities, func(id entity.ID, pc *physics.PositionComponent) {
		ctrl, ok := entity.Get[entity.Controller](s.entities, id)
		if !ok {
			s.mover.Step(pc, physics.Input{Yaw: pc.Placement.Yaw}, dt)
			return
		}

		s.mover.Step(pc, ctrl.Input, dt)
		ctrl.Input.Jump = false
		if ctrl.HasReport {
			s.reconcileLocked(id, pc, ctrl)
		}
	})
}
