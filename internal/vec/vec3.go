package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется для координат блоков и чанков.
type Vec3 struct {
	X int64
	Y int64
	Z int64
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Neg возвращает противоположный вектор
func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Shr сдвигает все компоненты вправо (деление с округлением вниз)
func (v Vec3) Shr(bits uint) Vec3 {
	return Vec3{X: v.X >> bits, Y: v.Y >> bits, Z: v.Z >> bits}
}

// Mask применяет битовую маску ко всем компонентам
func (v Vec3) Mask(mask int64) Vec3 {
	return Vec3{X: v.X & mask, Y: v.Y & mask, Z: v.Z & mask}
}

// Chebyshev возвращает расстояние Чебышёва до другого вектора
func (v Vec3) Chebyshev(other Vec3) int64 {
	d := abs64(v.X - other.X)
	if dy := abs64(v.Y - other.Y); dy > d {
		d = dy
	}
	if dz := abs64(v.Z - other.Z); dz > d {
		d = dz
	}
	return d
}

// IsZero проверяет, что все компоненты равны нулю
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ToFloat преобразует в вектор с плавающей точкой
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(scalar float64) Vec3Float {
	return Vec3Float{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized возвращает нормализованный вектор
func (v Vec3Float) Normalized() Vec3Float {
	length := v.Length()
	if length == 0 {
		return Vec3Float{}
	}
	return v.Mul(1 / length)
}

// Horizontal возвращает проекцию на плоскость XZ
func (v Vec3Float) Horizontal() Vec2Float {
	return Vec2Float{X: v.X, Y: v.Z}
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
