// Package protocol описывает сетевой протокол: рукопожатие, кадры и
// сообщения клиент→сервер (PlayerEvent) и сервер→клиент (GameEvent).
package protocol

import (
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/vec"
)

// Биты состояния управления
const (
	InputForward uint32 = 1 << iota
	InputBack
	InputLeft
	InputRight
	InputJump
)

// EditMode определяет вид изменения блока
type EditMode uint8

const (
	EditPlace EditMode = iota + 1
	EditMine
)

// BlockEdit описывает запрос на изменение блока по координатам
type BlockEdit struct {
	Pos   vec.Vec3
	Block uint16
	Mode  EditMode
}

// Action запрашивает изменение блока, на который смотрит игрок.
// Сервер сам находит блок лучом из Origin вдоль Dir.
type Action struct {
	Origin fixed.Vec3
	Dir    vec.Vec3Float
	Mode   EditMode
	Block  uint16
}

// PlayerEvent содержит позицию клиента, его управление и правки мира
type PlayerEvent struct {
	Seq     uint64
	Pos     fixed.Vec3
	Yaw     float64
	Pitch   float64
	Input   uint32
	Edits   []BlockEdit
	Actions []Action
}

// InputBits упаковывает управление в битовую маску
func InputBits(in physics.Input) uint32 {
	var bits uint32
	if in.Forward {
		bits |= InputForward
	}
	if in.Back {
		bits |= InputBack
	}
	if in.Left {
		bits |= InputLeft
	}
	if in.Right {
		bits |= InputRight
	}
	if in.Jump {
		bits |= InputJump
	}
	return bits
}

// Movement восстанавливает управление из сообщения
func (e *PlayerEvent) Movement() physics.Input {
	return physics.Input{
		Forward: e.Input&InputForward != 0,
		Back:    e.Input&InputBack != 0,
		Left:    e.Input&InputLeft != 0,
		Right:   e.Input&InputRight != 0,
		Jump:    e.Input&InputJump != 0,
		Yaw:     e.Yaw,
	}
}

// EntitySnapshot описывает положение сущности в снимке
type EntitySnapshot struct {
	ID      uint64
	Type    uint16
	Pos     fixed.Vec3
	Yaw     float64
	Pitch   float64
	Falling bool
}

// ChunkPayload содержит полное содержимое чанка в формате RLE
type ChunkPayload struct {
	Pos        vec.Vec3
	Hash       uint64
	Data       []byte
	Compressed bool
}

// BlockUpdate представляет запись глобального журнала изменений блоков
type BlockUpdate struct {
	Index uint64
	Pos   vec.Vec3
	Block uint16
}

// GameEvent представляет снимок состояния для одного клиента
type GameEvent struct {
	Tick       uint64
	You        uint64
	Entities   []EntitySnapshot
	Chunks     []ChunkPayload
	Updates    []BlockUpdate
	Constants  *physics.Constants
	Disconnect bool
	Reason     string
}

// IsEmpty сообщает, что снимок не несёт данных (подтверждение живости)
func (e *GameEvent) IsEmpty() bool {
	return len(e.Entities) == 0 && len(e.Chunks) == 0 && len(e.Updates) == 0 &&
		e.Constants == nil && !e.Disconnect
}
