// Package physics реализует движение сущностей по блочному миру:
// развёртку по осям с коллизиями, гравитацию, ступени и трассировку лучей.
package physics

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/vec"
)

// InvariantViolation сообщает о нарушении внутреннего инварианта алгоритма.
// Паникует, а не возвращается как ошибка.
type InvariantViolation struct {
	Msg string
}

func (e InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

// Solidity отвечает на вопрос, твёрд ли блок мира
type Solidity interface {
	IsSolidAt(x, y, z int64) bool
}

// SolidFunc позволяет использовать функцию как Solidity
type SolidFunc func(x, y, z int64) bool

func (f SolidFunc) IsSolidAt(x, y, z int64) bool { return f(x, y, z) }

// Terrain позволяет искать точку возрождения
type Terrain interface {
	Solidity
	SurfaceHeight(x, z int64) int64
}

// Constants — глобальные физические константы, общие для клиента и сервера
type Constants struct {
	Gravity        float64 // блоков/с²
	TerminalHeight float64 // высота падения, после которой сущность возрождается
	WalkSpeed      float64 // блоков/с
	JumpSpeed      float64 // блоков/с
	Radius         float64 // полуширина хитбокса
	Height         float64 // высота хитбокса
}

// DefaultConstants возвращает константы по умолчанию
func DefaultConstants() Constants {
	return Constants{
		Gravity:        20,
		TerminalHeight: 24,
		WalkSpeed:      4.3,
		JumpSpeed:      7.2,
		Radius:         0.3,
		Height:         1.75,
	}
}

// TerminalSpeed возвращает скорость падения с высоты TerminalHeight
func (c Constants) TerminalSpeed() float64 {
	return math.Sqrt(2 * c.Gravity * c.TerminalHeight)
}

// PositionComponent хранит положение и скорость сущности.
// Placement видим снаружи; при стоянии на земле его высота сглажена
// относительно внутренней позиции, по которой считаются коллизии.
type PositionComponent struct {
	Placement fixed.Placement
	Velocity  vec.Vec3Float
	IsFalling bool

	internal fixed.Vec3
}

// NewPositionComponent создаёт падающую сущность в указанной точке
func NewPositionComponent(pos fixed.Vec3) *PositionComponent {
	return &PositionComponent{
		Placement: fixed.Placement{Pos: pos},
		IsFalling: true,
		internal:  pos,
	}
}

// Position возвращает позицию, по которой считаются коллизии
func (pc *PositionComponent) Position() fixed.Vec3 {
	return pc.internal
}

// Teleport переносит сущность без проверки коллизий
func (pc *PositionComponent) Teleport(pos fixed.Vec3) {
	pc.internal = pos
	pc.Placement.Pos = pos
	pc.Velocity = vec.Vec3Float{}
	pc.IsFalling = true
}

// Correct принимает позицию, посчитанную клиентом; скорость и состояние падения сохраняются
func (pc *PositionComponent) Correct(pos fixed.Vec3) {
	pc.internal = pos
	pc.Placement.Pos = pos
}

// Input описывает запрошенное движение на один тик
type Input struct {
	Forward, Back bool
	Left, Right   bool
	Jump          bool
	Yaw           float64
}

// Direction возвращает горизонтальное направление движения в мировых осях (Y — ось Z).
// При нажатии двух перпендикулярных направлений каждое масштабируется на 1/√2.
func (in Input) Direction() vec.Vec2Float {
	var f, s float64
	if in.Forward {
		f++
	}
	if in.Back {
		f--
	}
	if in.Right {
		s++
	}
	if in.Left {
		s--
	}
	if f != 0 && s != 0 {
		f *= math.Sqrt2 / 2
		s *= math.Sqrt2 / 2
	}

	sin, cos := math.Sincos(in.Yaw)
	forward := vec.Vec2Float{X: -sin, Y: -cos}
	right := vec.Vec2Float{X: cos, Y: -sin}
	return forward.Mul(f).Add(right.Mul(s))
}

// MoveInternal сдвигает координату start вдоль одной оси на disp.
// radius — полутолщина тела в направлении движения. passable проверяет клетку оси.
// Возвращает новую координату и признак столкновения.
//
// Если край тела уже заходит в непроходимую клетку меньше чем на полблока,
// результат отодвигает тело назад к границе этой клетки.
func MoveInternal(start, radius, disp fixed.Coord, passable func(c int64) bool) (fixed.Coord, bool) {
	sign := disp.Sign()
	if sign == 0 {
		return start, false
	}

	edge := start + sign*radius
	from := (edge + sign*fixed.Half).Block()
	to := (edge + disp).Block()

	for c := from; (sign > 0 && c <= to) || (sign < 0 && c >= to); c += int64(sign) {
		if passable(c) {
			continue
		}

		boundary := fixed.FromBlock(c)
		if sign < 0 {
			boundary = fixed.FromBlock(c + 1)
		}
		pos := boundary - sign*radius
		if (pos-start)*sign > disp*sign {
			panic(InvariantViolation{Msg: fmt.Sprintf("boundary %d past displacement %d from %d", pos, disp, start)})
		}
		return pos, true
	}

	return start + disp, false
}

// span возвращает диапазон клеток, которые занимает отрезок [center-r, center+r)
func span(center, r fixed.Coord) (int64, int64) {
	lo := (center - r).Block()
	hi := (center + r - 1).Block()
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Mover двигает сущности по миру
type Mover struct {
	World       Terrain
	Constants   Constants
	SpawnRadius int64

	rng *rand.Rand
}

// NewMover создаёт Mover
func NewMover(w Terrain, c Constants, spawnRadius int64, seed int64) *Mover {
	return &Mover{
		World:       w,
		Constants:   c,
		SpawnRadius: spawnRadius,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (m *Mover) radius() fixed.Coord     { return fixed.FromFloat(m.Constants.Radius) }
func (m *Mover) halfHeight() fixed.Coord { return fixed.FromFloat(m.Constants.Height / 2) }
func (m *Mover) height() fixed.Coord     { return fixed.FromFloat(m.Constants.Height) }

// passX проверяет клетку cx для тела в позиции pos
func (m *Mover) passX(pos fixed.Vec3) func(int64) bool {
	ylo, yhi := span(pos.Y+m.halfHeight(), m.halfHeight())
	zlo, zhi := span(pos.Z, m.radius())
	return func(cx int64) bool {
		for y := ylo; y <= yhi; y++ {
			for z := zlo; z <= zhi; z++ {
				if m.World.IsSolidAt(cx, y, z) {
					return false
				}
			}
		}
		return true
	}
}

// passZ проверяет клетку cz для тела в позиции pos
func (m *Mover) passZ(pos fixed.Vec3) func(int64) bool {
	ylo, yhi := span(pos.Y+m.halfHeight(), m.halfHeight())
	xlo, xhi := span(pos.X, m.radius())
	return func(cz int64) bool {
		for y := ylo; y <= yhi; y++ {
			for x := xlo; x <= xhi; x++ {
				if m.World.IsSolidAt(x, y, cz) {
					return false
				}
			}
		}
		return true
	}
}

// passY проверяет слой cy под (над) телом в позиции pos
func (m *Mover) passY(pos fixed.Vec3) func(int64) bool {
	xlo, xhi := span(pos.X, m.radius())
	zlo, zhi := span(pos.Z, m.radius())
	return func(cy int64) bool {
		for x := xlo; x <= xhi; x++ {
			for z := zlo; z <= zhi; z++ {
				if m.World.IsSolidAt(x, cy, z) {
					return false
				}
			}
		}
		return true
	}
}

// moveY сдвигает тело по вертикали; развёртка идёт от центра тела
func (m *Mover) moveY(pos *fixed.Vec3, dy fixed.Coord) bool {
	h := m.halfHeight()
	center, hit := MoveInternal(pos.Y+h, h, dy, m.passY(*pos))
	pos.Y = center - h
	return hit
}

func (m *Mover) moveX(pos *fixed.Vec3, dx fixed.Coord) bool {
	x, hit := MoveInternal(pos.X, m.radius(), dx, m.passX(*pos))
	pos.X = x
	return hit
}

func (m *Mover) moveZ(pos *fixed.Vec3, dz fixed.Coord) bool {
	z, hit := MoveInternal(pos.Z, m.radius(), dz, m.passZ(*pos))
	pos.Z = z
	return hit
}

// sweepHorizontal сначала сдвигает тело по оси с большим по модулю смещением;
// при равенстве первой идёт X
func (m *Mover) sweepHorizontal(pos *fixed.Vec3, dx, dz fixed.Coord) {
	if abs(dx) >= abs(dz) {
		m.moveX(pos, dx)
		m.moveZ(pos, dz)
		return
	}
	m.moveZ(pos, dz)
	m.moveX(pos, dx)
}

// Fits сообщает, свободны ли все клетки, которые занимает хитбокс в позиции pos
func (m *Mover) Fits(pos fixed.Vec3) bool {
	xlo, xhi := span(pos.X, m.radius())
	ylo, yhi := span(pos.Y+m.halfHeight(), m.halfHeight())
	zlo, zhi := span(pos.Z, m.radius())
	for x := xlo; x <= xhi; x++ {
		for y := ylo; y <= yhi; y++ {
			for z := zlo; z <= zhi; z++ {
				if m.World.IsSolidAt(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}

// Step продвигает сущность на dt с учётом запрошенного движения
func (m *Mover) Step(pc *PositionComponent, input Input, dt time.Duration) {
	sec := dt.Seconds()
	g := m.Constants.Gravity
	pos := pc.internal

	if input.Jump && !pc.IsFalling {
		pc.Velocity.Y = m.Constants.JumpSpeed
	}

	// Вертикаль: половина гравитации до развёртки, половина после
	pc.Velocity.Y -= 0.5 * g * sec
	dy := fixed.FromFloat(pc.Velocity.Y * sec)
	switch {
	case dy == 0:
		// Смещение меньше разрешения координат: состояние падения не меняется
		if pc.IsFalling || pc.Velocity.Y > 0 {
			pc.Velocity.Y -= 0.5 * g * sec
		} else {
			pc.Velocity.Y = 0
		}
	case m.moveY(&pos, dy):
		if dy < 0 {
			if -pc.Velocity.Y > m.Constants.TerminalSpeed() {
				m.Respawn(pc)
				return
			}
			pc.IsFalling = false
		}
		pc.Velocity.Y = 0
	default:
		pc.Velocity.Y -= 0.5 * g * sec
		pc.IsFalling = true
	}

	// Горизонталь
	dir := input.Direction().Mul(m.Constants.WalkSpeed)
	pc.Velocity.X, pc.Velocity.Z = dir.X, dir.Y
	dx := fixed.FromFloat(dir.X * sec)
	dz := fixed.FromFloat(dir.Y * sec)

	if dx != 0 || dz != 0 {
		grounded := !pc.IsFalling

		var climbed fixed.Coord
		if grounded && m.World.IsSolidAt(pos.X.Block(), pos.Y.Block()-1, pos.Z.Block()) {
			before := pos.Y
			m.moveY(&pos, fixed.One)
			climbed = pos.Y - before
		}

		m.sweepHorizontal(&pos, dx, dz)

		if grounded && !m.moveY(&pos, -climbed) {
			below := pos
			if m.moveY(&below, -fixed.One) {
				pos = below
			} else {
				pc.IsFalling = true
			}
		}
	}

	pc.internal = pos
	pc.Placement.Yaw = input.Yaw
	pc.Placement.Pos = pos
	if !pc.IsFalling {
		pc.Placement.Pos.Y = FloorHeight(m.World, pos)
	}
}

// Respawn переносит сущность в случайную точку поверхности в радиусе SpawnRadius от начала координат
func (m *Mover) Respawn(pc *PositionComponent) {
	r := m.SpawnRadius
	var x, z int64
	if r > 0 {
		x = m.rng.Int63n(2*r+1) - r
		z = m.rng.Int63n(2*r+1) - r
	}
	y := m.World.SurfaceHeight(x, z)
	pc.Teleport(fixed.BlockCenter(vec.Vec3{X: x, Y: y, Z: z}))
}

// FloorHeight восстанавливает высоту пола билинейной интерполяцией
// по четырём колонкам вокруг позиции.
func FloorHeight(w Solidity, pos fixed.Vec3) fixed.Coord {
	sx := pos.X - fixed.Half
	sz := pos.Z - fixed.Half
	bx, bz := sx.Block(), sz.Block()
	fx, fz := sx.Frac().Float(), sz.Frac().Float()
	by := pos.Y.Block()

	column := func(x, z int64) float64 {
		switch {
		case w.IsSolidAt(x, by, z):
			return float64(by + 1)
		case w.IsSolidAt(x, by-1, z):
			return float64(by)
		default:
			return float64(by - 1)
		}
	}

	h0 := column(bx, bz)*(1-fx) + column(bx+1, bz)*fx
	h1 := column(bx, bz+1)*(1-fx) + column(bx+1, bz+1)*fx
	return fixed.FromFloat(h0*(1-fz) + h1*fz)
}

func abs(c fixed.Coord) fixed.Coord {
	if c < 0 {
		return -c
	}
	return c
}
