package entity

import (
	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/physics"
)

// EntityType определяет тип сущности для клиента
type EntityType uint16

const (
	EntityTypePlayer EntityType = iota + 1
	EntityTypeAnimal
)

// Kind хранит тип сущности
type Kind struct {
	Type EntityType
}

// Player помечает сущность, управляемую сетевым соединением
type Player struct {
	SessionID string
	Name      string
}

// Controller хранит последнее запрошенное движение для Mover и
// позицию, которую клиент сообщил после своего шага (HasReport).
// Сервер двигает сущность сам; сообщённая позиция только сверяется с его результатом.
type Controller struct {
	Input     physics.Input
	Report    fixed.Vec3
	HasReport bool
}
