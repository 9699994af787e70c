package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3ShrFloorsNegative(t *testing.T) {
	v := Vec3{X: -1, Y: 31, Z: -33}
	assert.Equal(t, Vec3{X: -1, Y: 0, Z: -2}, v.Shr(5))
	assert.Equal(t, Vec3{X: 31, Y: 31, Z: 31}, v.Mask(31))
}

func TestVec3Chebyshev(t *testing.T) {
	a := Vec3{X: 1, Y: -2, Z: 3}
	assert.Equal(t, int64(5), a.Chebyshev(Vec3{X: 0, Y: 3, Z: 0}))
	assert.Equal(t, int64(0), a.Chebyshev(a))
}

func TestVec2FloatNormalized(t *testing.T) {
	v := Vec2Float{X: 1, Y: 1}.Normalized()
	assert.InDelta(t, 1.0, v.Length(), 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, v.X, 1e-12)
	assert.Equal(t, Vec2Float{}, Vec2Float{}.Normalized())
}
