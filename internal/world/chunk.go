package world

import (
	"fmt"

	"github.com/annel0/blockverse/internal/fixed"
	"github.com/annel0/blockverse/internal/vec"
)

const (
	// log2 размера ребра чанка
	ChunkBits = fixed.ChunkBits
	// размер ребра чанка в блоках
	ChunkSize = fixed.ChunkSize
	// маска локальной координаты
	ChunkMask = fixed.ChunkMask
	// количество ячеек в чанке
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize
)

// OutOfRangeError описывает обращение к ячейке за пределами локального куба 0..31.
// Это ошибка программиста: вызывающий код обязан преобразовать координаты.
type OutOfRangeError struct {
	X, Y, Z int
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("локальные координаты вне чанка: (%d,%d,%d)", e.X, e.Y, e.Z)
}

// Chunk содержит участок мира 32x32x32 блоков.
// Массив данных выделяется только при первой ненулевой записи.
type Chunk struct {
	Pos vec.Vec3 // Координаты чанка в мире

	data    []uint16
	hash    uint64
	created bool
	version uint64
}

// NewChunk создаёт пустой (невыделенный) чанк
func NewChunk(pos vec.Vec3) *Chunk {
	return &Chunk{Pos: pos}
}

// HashTerm вычисляет вклад одной ячейки в хеш содержимого.
// Этот же хеш использует сетевой слой для обнаружения изменений.
func HashTerm(index int, value uint16) uint64 {
	return uint64(2*index+1) * uint64(value)
}

// cellIndex возвращает индекс ячейки в плоском массиве
func cellIndex(x, y, z int) int {
	if x < 0 || x >= ChunkSize || y < 0 || y >= ChunkSize || z < 0 || z >= ChunkSize {
		panic(OutOfRangeError{X: x, Y: y, Z: z})
	}
	return (y*ChunkSize+z)*ChunkSize + x
}

// Get возвращает ID блока по локальным координатам
func (c *Chunk) Get(x, y, z int) uint16 {
	i := cellIndex(x, y, z)
	if c.data == nil {
		return 0
	}
	return c.data[i]
}

// Set устанавливает ID блока по локальным координатам.
// Хеш содержимого обновляется инкрементально.
func (c *Chunk) Set(x, y, z int, value uint16) {
	i := cellIndex(x, y, z)
	if c.data == nil {
		if value == 0 {
			return
		}
		c.data = make([]uint16, ChunkVolume)
	}

	old := c.data[i]
	if old == value {
		return
	}

	c.hash -= HashTerm(i, old)
	c.hash += HashTerm(i, value)
	c.data[i] = value
	c.version++
}

// ContentHash возвращает хеш содержимого
func (c *Chunk) ContentHash() uint64 {
	return c.hash
}

// ComputeHash пересчитывает хеш полным проходом
func (c *Chunk) ComputeHash() uint64 {
	var h uint64
	for i, v := range c.data {
		if v != 0 {
			h += HashTerm(i, v)
		}
	}
	return h
}

// IsCreated сообщает, что содержимое чанка установлено (сгенерировано или загружено)
func (c *Chunk) IsCreated() bool {
	return c.created
}

// MarkCreated помечает чанк как сгенерированный
func (c *Chunk) MarkCreated() {
	c.created = true
}

// IsAllocated сообщает, выделен ли массив данных
func (c *Chunk) IsAllocated() bool {
	return c.data != nil
}

// Version растёт при каждом фактическом изменении содержимого
func (c *Chunk) Version() uint64 {
	return c.version
}

// Fill заполняет слой по высоте (локальная y) одним блоком
func (c *Chunk) Fill(y int, value uint16) {
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			c.Set(x, y, z, value)
		}
	}
}

// at возвращает значение по плоскому индексу без проверки границ
func (c *Chunk) at(i int) uint16 {
	if c.data == nil {
		return 0
	}
	return c.data[i]
}
