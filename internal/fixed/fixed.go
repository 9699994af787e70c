// Package fixed реализует координаты с фиксированной точкой 32.32,
// в которых хранятся позиции сущностей.
package fixed

import (
	"math"

	"github.com/annel0/blockverse/internal/vec"
)

const (
	// количество дробных бит
	FracBits = 32
	// log2 размера чанка в блоках
	ChunkBits = 5
	// ChunkSize — размер ребра чанка в блоках
	ChunkSize = 1 << ChunkBits
	// маска локальной координаты внутри чанка
	ChunkMask = ChunkSize - 1
)

// Coord — одна ось позиции с разрешением 1/2^32 блока
type Coord int64

const (
	// One соответствует одному блоку
	One Coord = 1 << FracBits
	// Half соответствует половине блока
	Half Coord = 1 << (FracBits - 1)
)

// FromFloat преобразует смещение в блоках в фиксированную точку (с отбрасыванием дробной части)
func FromFloat(f float64) Coord {
	return Coord(f * float64(One))
}

// FromBlock возвращает координату нижней границы блока
func FromBlock(b int64) Coord {
	return Coord(b << FracBits)
}

// Float возвращает значение в блоках
func (c Coord) Float() float64 {
	return float64(c) / float64(One)
}

// Block возвращает координату блока (арифметический сдвиг, округление вниз)
func (c Coord) Block() int64 {
	return int64(c) >> FracBits
}

// Chunk возвращает координату чанка
func (c Coord) Chunk() int64 {
	return int64(c) >> (FracBits + ChunkBits)
}

// Frac возвращает дробную часть (всегда неотрицательна)
func (c Coord) Frac() Coord {
	return c & (One - 1)
}

// Sign возвращает знак координаты: -1, 0 или 1
func (c Coord) Sign() Coord {
	switch {
	case c > 0:
		return 1
	case c < 0:
		return -1
	default:
		return 0
	}
}

// Vec3 задаёт позицию в фиксированной точке
type Vec3 struct {
	X, Y, Z Coord
}

// FromFloats создаёт позицию из координат в блоках
func FromFloats(x, y, z float64) Vec3 {
	return Vec3{X: FromFloat(x), Y: FromFloat(y), Z: FromFloat(z)}
}

// FromVecFloat создаёт позицию из вектора в блоках
func FromVecFloat(v vec.Vec3Float) Vec3 {
	return FromFloats(v.X, v.Y, v.Z)
}

// BlockCenter возвращает позицию центра нижней грани блока
func BlockCenter(b vec.Vec3) Vec3 {
	return Vec3{X: FromBlock(b.X) + Half, Y: FromBlock(b.Y), Z: FromBlock(b.Z) + Half}
}

// Add складывает позиции
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub вычитает позиции
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Floats возвращает позицию в блоках
func (v Vec3) Floats() vec.Vec3Float {
	return vec.Vec3Float{X: v.X.Float(), Y: v.Y.Float(), Z: v.Z.Float()}
}

// BlockPos возвращает координаты блока, содержащего позицию
func (v Vec3) BlockPos() vec.Vec3 {
	return vec.Vec3{X: v.X.Block(), Y: v.Y.Block(), Z: v.Z.Block()}
}

// ChunkPos возвращает координаты чанка, содержащего позицию
func (v Vec3) ChunkPos() vec.Vec3 {
	return vec.Vec3{X: v.X.Chunk(), Y: v.Y.Chunk(), Z: v.Z.Chunk()}
}

// Distance возвращает евклидово расстояние в блоках
func (v Vec3) Distance(o Vec3) float64 {
	d := v.Sub(o).Floats()
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Placement объединяет позицию сущности и её ориентацию
type Placement struct {
	Pos   Vec3
	Yaw   float64 // горизонтальная ориентация, радианы
	Pitch float64 // вертикальная ориентация, радианы
}

// Look возвращает единичный вектор направления взгляда
func (p Placement) Look() vec.Vec3Float {
	cp := math.Cos(p.Pitch)
	return vec.Vec3Float{
		X: -math.Sin(p.Yaw) * cp,
		Y: math.Sin(p.Pitch),
		Z: -math.Cos(p.Yaw) * cp,
	}
}
