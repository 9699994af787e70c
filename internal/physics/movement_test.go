package physics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/fixed"
)

const tick = 10 * time.Millisecond

// testTerrain — мир из функции твёрдости с фиксированной поверхностью
type testTerrain struct {
	solid   func(x, y, z int64) bool
	surface int64
}

func (t testTerrain) IsSolidAt(x, y, z int64) bool   { return t.solid(x, y, z) }
func (t testTerrain) SurfaceHeight(x, z int64) int64 { return t.surface }

func flatFloor() testTerrain {
	return testTerrain{solid: func(x, y, z int64) bool { return y < 0 }}
}

func settle(t *testing.T, m *Mover, pc *PositionComponent) {
	t.Helper()
	for i := 0; i < 1000 && pc.IsFalling; i++ {
		m.Step(pc, Input{}, tick)
	}
	require.False(t, pc.IsFalling, "сущность должна приземлиться")
}

func wall(c int64) func(int64) bool {
	return func(x int64) bool { return x != c }
}

func TestMoveInternalFree(t *testing.T) {
	pos, hit := MoveInternal(0, 0, fixed.FromFloat(2.5), func(int64) bool { return true })
	assert.False(t, hit)
	assert.Equal(t, fixed.FromFloat(2.5), pos)

	pos, hit = MoveInternal(fixed.One, fixed.Half, 0, func(int64) bool { return false })
	assert.False(t, hit)
	assert.Equal(t, fixed.One, pos)
}

func TestMoveInternalStopsAtWall(t *testing.T) {
	r := fixed.FromFloat(0.3)

	pos, hit := MoveInternal(fixed.FromFloat(0.5), r, fixed.FromBlock(5), wall(3))
	assert.True(t, hit)
	assert.Equal(t, fixed.FromBlock(3)-r, pos)

	pos, hit = MoveInternal(fixed.FromFloat(0.5), r, -fixed.FromBlock(5), wall(-2))
	assert.True(t, hit)
	assert.Equal(t, fixed.FromBlock(-1)+r, pos)
}

func TestMoveInternalZeroRadiusOnBoundary(t *testing.T) {
	start := fixed.FromBlock(3)

	pos, hit := MoveInternal(start, 0, fixed.One, wall(3))
	assert.True(t, hit)
	assert.Equal(t, start, pos)

	pos, hit = MoveInternal(start, 0, -fixed.One, wall(2))
	assert.True(t, hit)
	assert.Equal(t, start, pos)

	// Стена позади не мешает
	pos, hit = MoveInternal(start, 0, fixed.One, wall(2))
	assert.False(t, hit)
	assert.Equal(t, start+fixed.One, pos)
}

func TestMoveInternalEmbeddedPushesBack(t *testing.T) {
	r := fixed.FromFloat(0.3)
	start := fixed.FromFloat(2.8)

	pos, hit := MoveInternal(start, r, fixed.FromFloat(0.1), wall(3))
	assert.True(t, hit)
	assert.Equal(t, fixed.FromBlock(3)-r, pos)
	assert.Less(t, pos, start)
}

func TestMoveInternalDeeplyEmbeddedIgnoresCell(t *testing.T) {
	r := fixed.FromFloat(0.3)
	start := fixed.FromFloat(3.3)
	disp := fixed.FromFloat(0.1)

	pos, hit := MoveInternal(start, r, disp, wall(3))
	assert.False(t, hit)
	assert.Equal(t, start+disp, pos)
}

func TestInputDiagonalNormalization(t *testing.T) {
	single := Input{Forward: true}.Direction()
	diagonal := Input{Forward: true, Left: true}.Direction()

	assert.InDelta(t, 1.0, single.Length(), 1e-9)
	assert.InDelta(t, single.Length(), diagonal.Length(), 1e-9)

	// Yaw 0 смотрит в -Z
	assert.InDelta(t, -1.0, single.Y, 1e-9)
	assert.InDelta(t, 0.0, single.X, 1e-9)
}

func TestStepFallsOntoFloor(t *testing.T) {
	m := NewMover(flatFloor(), DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 5, 0.5))

	for i := 0; i < 200; i++ {
		m.Step(pc, Input{}, tick)
		require.GreaterOrEqual(t, pc.Position().Y, fixed.Coord(0), "сущность не должна проваливаться в пол")
	}

	assert.False(t, pc.IsFalling)
	assert.Equal(t, fixed.Coord(0), pc.Position().Y)
	assert.Equal(t, fixed.Coord(0), pc.Placement.Pos.Y)
	assert.Equal(t, 0.0, pc.Velocity.Y)
}

func TestStepDiagonalSpeed(t *testing.T) {
	m := NewMover(flatFloor(), DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	m.Step(pc, Input{Forward: true, Left: true}, tick)
	speed := math.Hypot(pc.Velocity.X, pc.Velocity.Z)
	assert.InDelta(t, m.Constants.WalkSpeed, speed, 1e-9)
}

func TestStepJump(t *testing.T) {
	m := NewMover(flatFloor(), DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	m.Step(pc, Input{Jump: true}, tick)
	assert.True(t, pc.IsFalling)
	assert.Greater(t, pc.Position().Y, fixed.Coord(0))

	settle(t, m, pc)
	assert.Equal(t, fixed.Coord(0), pc.Position().Y)
}

func TestStepClimbsStair(t *testing.T) {
	terrain := testTerrain{solid: func(x, y, z int64) bool {
		return y < 0 || (x >= 2 && y == 0)
	}}
	m := NewMover(terrain, DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	for i := 0; i < 100; i++ {
		m.Step(pc, Input{Right: true}, tick)
	}

	assert.False(t, pc.IsFalling)
	assert.Greater(t, pc.Position().X, fixed.FromBlock(2))
	assert.Equal(t, fixed.FromBlock(1), pc.Position().Y)
}

func TestStepWallBlocks(t *testing.T) {
	terrain := testTerrain{solid: func(x, y, z int64) bool {
		return y < 0 || (x >= 2 && y <= 1)
	}}
	m := NewMover(terrain, DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	for i := 0; i < 100; i++ {
		m.Step(pc, Input{Right: true}, tick)
	}

	assert.Equal(t, fixed.FromBlock(2)-fixed.FromFloat(m.Constants.Radius), pc.Position().X)
	assert.Equal(t, fixed.Coord(0), pc.Position().Y)
	assert.False(t, pc.IsFalling)
}

func TestStepWalksOffLedge(t *testing.T) {
	terrain := testTerrain{solid: func(x, y, z int64) bool {
		return y < -10 || (x < 2 && y < 0)
	}}
	m := NewMover(terrain, DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	fell := false
	for i := 0; i < 300; i++ {
		m.Step(pc, Input{Right: true}, tick)
		if pc.IsFalling {
			fell = true
		}
	}

	assert.True(t, fell)
	assert.False(t, pc.IsFalling)
	assert.Equal(t, fixed.FromBlock(-10), pc.Position().Y)
}

func TestStepRespawnsAfterLongFall(t *testing.T) {
	terrain := flatFloor()
	terrain.surface = 0
	m := NewMover(terrain, DefaultConstants(), 16, 42)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 100, 0.5))

	for i := 0; i < 1000 && pc.Position().Y > 0; i++ {
		m.Step(pc, Input{}, tick)
	}

	pos := pc.Position()
	assert.Equal(t, fixed.Coord(0), pos.Y)
	assert.True(t, pc.IsFalling, "после возрождения сущность снова падает")
	assert.Equal(t, 0.0, pc.Velocity.Y)
	assert.Equal(t, fixed.Half, pos.X.Frac())
	assert.LessOrEqual(t, math.Abs(pos.X.Float()), 16.5)
	assert.LessOrEqual(t, math.Abs(pos.Z.Float()), 16.5)
}

func TestFloorHeightFlat(t *testing.T) {
	h := FloorHeight(flatFloor(), fixed.FromFloats(3.7, 0, -2.2))
	assert.Equal(t, fixed.Coord(0), h)
}

func TestFloorHeightNearStep(t *testing.T) {
	terrain := testTerrain{solid: func(x, y, z int64) bool {
		return y < 0 || (x >= 2 && y == 0)
	}}

	// Посередине между колонками x=1 и x=2 высота сглаживается до половины
	h := FloorHeight(terrain, fixed.FromFloats(2, 0, 0.5))
	assert.InDelta(t, 0.5, h.Float(), 1e-9)

	// В центре колонки — точная высота
	h = FloorHeight(terrain, fixed.FromFloats(1.5, 0, 0.5))
	assert.InDelta(t, 0.0, h.Float(), 1e-9)
}

// pillarTerrain — пол y<0 и столб высотой в два блока в клетке (1, 1)
func pillarTerrain() testTerrain {
	return testTerrain{solid: func(x, y, z int64) bool {
		return y < 0 || (x == 1 && z == 1 && y <= 1)
	}}
}

func TestHorizontalSweepLargerAxisFirst(t *testing.T) {
	m := NewMover(pillarTerrain(), DefaultConstants(), 0, 1)
	r := fixed.FromFloat(m.Constants.Radius)
	start := fixed.FromFloats(0.5, 0, 0.5)

	// |dx| > |dz|: X проходит мимо столба, Z упирается в него
	dx, dz := fixed.FromFloat(1.0), fixed.FromFloat(0.6)
	pos := start
	m.sweepHorizontal(&pos, dx, dz)
	assert.Equal(t, start.X+dx, pos.X)
	assert.Equal(t, fixed.FromBlock(1)-r, pos.Z)

	// |dz| > |dx|: порядок обратный, упирается X
	pos = start
	m.sweepHorizontal(&pos, dz, dx)
	assert.Equal(t, fixed.FromBlock(1)-r, pos.X)
	assert.Equal(t, start.Z+dx, pos.Z)
}

func TestHorizontalSweepTieGoesToX(t *testing.T) {
	m := NewMover(pillarTerrain(), DefaultConstants(), 0, 1)
	r := fixed.FromFloat(m.Constants.Radius)
	start := fixed.FromFloats(0.5, 0, 0.5)
	d := fixed.FromFloat(0.6)

	pos := start
	m.sweepHorizontal(&pos, d, d)
	assert.Equal(t, start.X+d, pos.X)
	assert.Equal(t, fixed.FromBlock(1)-r, pos.Z)

	// Отрицательные смещения с равным модулем тоже начинают с X
	terrain := testTerrain{solid: func(x, y, z int64) bool {
		return y < 0 || (x == -1 && z == -1 && y <= 1)
	}}
	m = NewMover(terrain, DefaultConstants(), 0, 1)
	pos = start
	m.sweepHorizontal(&pos, -d-fixed.Half, -d-fixed.Half)
	assert.Equal(t, start.X-d-fixed.Half, pos.X)
	assert.Equal(t, fixed.FromBlock(0)+r, pos.Z)
}

func TestStepTinyDtKeepsGrounded(t *testing.T) {
	m := NewMover(flatFloor(), DefaultConstants(), 0, 1)
	pc := NewPositionComponent(fixed.FromFloats(0.5, 0, 0.5))
	settle(t, m, pc)

	m.Step(pc, Input{}, time.Nanosecond)
	assert.False(t, pc.IsFalling)
	assert.Equal(t, 0.0, pc.Velocity.Y)
	assert.Equal(t, fixed.Coord(0), pc.Position().Y)

	air := NewPositionComponent(fixed.FromFloats(0.5, 5, 0.5))
	m.Step(air, Input{}, time.Nanosecond)
	assert.True(t, air.IsFalling)
	assert.Less(t, air.Velocity.Y, 0.0)
}

func TestFits(t *testing.T) {
	m := NewMover(pillarTerrain(), DefaultConstants(), 0, 1)

	assert.True(t, m.Fits(fixed.FromFloats(0.5, 0, 0.5)))
	// Клетка под центром свободна, но край хитбокса задевает столб
	assert.False(t, m.Fits(fixed.FromFloats(0.9, 0, 1.5)))
	assert.True(t, m.Fits(fixed.FromFloats(1.5, 2, 1.5)))

	ceiling := testTerrain{solid: func(x, y, z int64) bool { return y < 0 || y == 1 }}
	m = NewMover(ceiling, DefaultConstants(), 0, 1)
	// Голова упирается в потолок
	assert.False(t, m.Fits(fixed.FromFloats(0.5, 0, 0.5)))
}
