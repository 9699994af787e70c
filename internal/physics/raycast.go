package physics

import (
	"math"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/vec"
)

// RayHit описывает попадание луча в блок
type RayHit struct {
	Position fixed.Vec3 // точка входа луча в блок
	Block    vec.Vec3   // координаты блока
	Normal   vec.Vec3   // нормаль грани, через которую вошёл луч
	Distance float64    // пройденное расстояние в блоках
}

// CastRay ищет первый твёрдый блок вдоль луча (3-D DDA).
// Если начало луча внутри твёрдого блока, попадание возвращается сразу
// с нулевыми расстоянием и нормалью.
func CastRay(w Solidity, origin fixed.Vec3, dir vec.Vec3Float, maxDist float64) (*RayHit, bool) {
	if dir.X == 0 && dir.Y == 0 && dir.Z == 0 {
		return nil, false
	}
	d := dir.Normalized()
	o := origin.Floats()

	bp := origin.BlockPos()
	cell := [3]int64{bp.X, bp.Y, bp.Z}
	if w.IsSolidAt(cell[0], cell[1], cell[2]) {
		return &RayHit{Position: origin, Block: bp}, true
	}

	dirs := [3]float64{d.X, d.Y, d.Z}
	start := [3]float64{o.X, o.Y, o.Z}

	var step [3]int64
	var next, delta [3]float64
	for i := 0; i < 3; i++ {
		next[i], delta[i] = math.Inf(1), math.Inf(1)
		switch {
		case dirs[i] > 0:
			step[i] = 1
			next[i] = (float64(cell[i]+1) - start[i]) / dirs[i]
			delta[i] = 1 / dirs[i]
		case dirs[i] < 0:
			step[i] = -1
			next[i] = (float64(cell[i]) - start[i]) / dirs[i]
			delta[i] = -1 / dirs[i]
		}
	}

	for {
		axis := -1
		for i := 0; i < 3; i++ {
			if math.IsInf(next[i], 0) || math.IsNaN(next[i]) {
				continue
			}
			if axis < 0 || next[i] < next[axis] {
				axis = i
			}
		}
		if axis < 0 {
			panic(InvariantViolation{Msg: "ray has no finite next boundary"})
		}

		t := next[axis]
		if t >= maxDist {
			return nil, false
		}

		cell[axis] += step[axis]
		next[axis] += delta[axis]

		if w.IsSolidAt(cell[0], cell[1], cell[2]) {
			var n [3]int64
			n[axis] = -step[axis]
			return &RayHit{
				Position: fixed.FromFloats(start[0]+dirs[0]*t, start[1]+dirs[1]*t, start[2]+dirs[2]*t),
				Block:    vec.Vec3{X: cell[0], Y: cell[1], Z: cell[2]},
				Normal:   vec.Vec3{X: n[0], Y: n[1], Z: n[2]},
				Distance: t,
			}, true
		}
	}
}
