package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/vec"
)

func TestCastRayInsideSolid(t *testing.T) {
	origin := fixed.FromFloats(0.5, -0.5, 0.5)

	hit, ok := CastRay(flatFloor(), origin, vec.Vec3Float{X: 1, Y: 1}, 10)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 0, Y: -1, Z: 0}, hit.Block)
	assert.Equal(t, vec.Vec3{}, hit.Normal)
	assert.Equal(t, 0.0, hit.Distance)
	assert.Equal(t, origin, hit.Position)
}

func TestCastRayMiss(t *testing.T) {
	_, ok := CastRay(flatFloor(), fixed.FromFloats(0.5, 5, 0.5), vec.Vec3Float{Y: 1}, 50)
	assert.False(t, ok)

	_, ok = CastRay(flatFloor(), fixed.FromFloats(0.5, 5, 0.5), vec.Vec3Float{X: 1}, 50)
	assert.False(t, ok)
}

func TestCastRayZeroDirection(t *testing.T) {
	hit, ok := CastRay(flatFloor(), fixed.FromFloats(0.5, 5, 0.5), vec.Vec3Float{}, 50)
	assert.False(t, ok)
	assert.Nil(t, hit)
}

func TestCastRayHitsFloor(t *testing.T) {
	hit, ok := CastRay(flatFloor(), fixed.FromFloats(0.5, 5.5, 0.5), vec.Vec3Float{Y: -1}, 10)
	require.True(t, ok)

	assert.Equal(t, vec.Vec3{X: 0, Y: -1, Z: 0}, hit.Block)
	assert.Equal(t, vec.Vec3{Y: 1}, hit.Normal)
	assert.InDelta(t, 5.5, hit.Distance, 1e-9)
	assert.Equal(t, fixed.Coord(0), hit.Position.Y)
}

func TestCastRayHitsWall(t *testing.T) {
	w := SolidFunc(func(x, y, z int64) bool { return x <= -3 })

	hit, ok := CastRay(w, fixed.FromFloats(0.5, 0.5, 0.5), vec.Vec3Float{X: -2}, 10)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: -3, Y: 0, Z: 0}, hit.Block)
	assert.Equal(t, vec.Vec3{X: 1}, hit.Normal)
	assert.InDelta(t, 2.5, hit.Distance, 1e-9)
}

func TestCastRayDiagonal(t *testing.T) {
	w := SolidFunc(func(x, y, z int64) bool { return x == 3 && y == 3 && z == 0 })

	hit, ok := CastRay(w, fixed.FromFloats(0.5, 0.5, 0.5), vec.Vec3Float{X: 1, Y: 1}, 10)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 3, Y: 3, Z: 0}, hit.Block)
	assert.Equal(t, int64(0), hit.Normal.Z)
}

func TestCastRayRespectsMaxDistance(t *testing.T) {
	_, ok := CastRay(flatFloor(), fixed.FromFloats(0.5, 5.5, 0.5), vec.Vec3Float{Y: -1}, 5)
	assert.False(t, ok)
}
