package world

import (
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/block"
)

// Ниже FloorY мир всегда считается твёрдым
const FloorY int64 = -200

// defaultMaxHeight используется, если генератор не сообщает свою высоту
const defaultMaxHeight int64 = 128

// Generator заполняет содержимое нового чанка.
// Вызывается не более одного раза на чанк.
type Generator interface {
	Generate(c *Chunk)
}

// GeneratorFunc позволяет использовать функцию как Generator
type GeneratorFunc func(c *Chunk)

func (f GeneratorFunc) Generate(c *Chunk) { f(c) }

// heightHinter реализуют генераторы, знающие максимальную высоту рельефа
type heightHinter interface {
	MaxHeight() int64
}

// World представляет разреженный набор чанков с ленивой генерацией.
// Не потокобезопасен: доступ сериализуется владельцем (сервером или клиентом).
type World struct {
	chunks    map[vec.Vec3]*Chunk
	generator Generator
	store     storage.Store
	logger    *logging.Logger
}

// NewWorld создаёт мир. generator может быть nil (мир клиента),
// store может быть nil (временный мир без сохранения).
func NewWorld(generator Generator, store storage.Store) *World {
	if store == nil {
		store = storage.Nop{}
	}
	return &World{
		chunks:    make(map[vec.Vec3]*Chunk),
		generator: generator,
		store:     store,
		logger:    logging.GetWorldLogger(),
	}
}

// GetChunk возвращает чанк, создавая его при необходимости.
// Новый чанк восстанавливается из сохранения или генерируется.
func (w *World) GetChunk(pos vec.Vec3) *Chunk {
	if c, ok := w.chunks[pos]; ok {
		return c
	}

	c := NewChunk(pos)
	w.chunks[pos] = c

	if w.restore(c) {
		return c
	}

	if w.generator != nil {
		w.generator.Generate(c)
		c.MarkCreated()
	}
	return c
}

// PeekChunk возвращает чанк без создания; nil если его нет
func (w *World) PeekChunk(pos vec.Vec3) *Chunk {
	return w.chunks[pos]
}

// restore пытается загрузить чанк из сохранения
func (w *World) restore(c *Chunk) bool {
	data, found, err := w.store.Read(storage.ChunkKey(c.Pos))
	if err != nil {
		w.logger.Warn("Ошибка чтения чанка %v: %v", c.Pos, err)
		return false
	}
	if !found {
		return false
	}

	if err := c.PasteChunkData(data); err != nil {
		w.logger.Warn("Сохранение чанка %v повреждено, генерируем заново: %v", c.Pos, err)
		return false
	}

	c.MarkCreated()
	return true
}

// splitPos разделяет мировые координаты блока на чанк и локальную позицию
func splitPos(x, y, z int64) (vec.Vec3, int, int, int) {
	chunk := vec.Vec3{X: x >> ChunkBits, Y: y >> ChunkBits, Z: z >> ChunkBits}
	return chunk, int(x & ChunkMask), int(y & ChunkMask), int(z & ChunkMask)
}

// Block возвращает блок по мировым координатам, генерируя чанк при необходимости
func (w *World) Block(x, y, z int64) uint16 {
	pos, lx, ly, lz := splitPos(x, y, z)
	return w.GetChunk(pos).Get(lx, ly, lz)
}

// PeekBlock возвращает блок, не создавая чанк.
// ok=false, если чанк отсутствует или ещё не заполнен.
func (w *World) PeekBlock(x, y, z int64) (id uint16, ok bool) {
	pos, lx, ly, lz := splitPos(x, y, z)
	c := w.chunks[pos]
	if c == nil || !c.IsCreated() {
		return 0, false
	}
	return c.Get(lx, ly, lz), true
}

// SetBlock изменяет блок и записывает чанк в сохранение.
// Без генератора запись в отсутствующий чанк игнорируется.
func (w *World) SetBlock(x, y, z int64, id uint16) bool {
	pos, lx, ly, lz := splitPos(x, y, z)

	c := w.chunks[pos]
	if c == nil && w.generator != nil {
		c = w.GetChunk(pos)
	}
	if c == nil {
		return false
	}

	before := c.Version()
	c.Set(lx, ly, lz, id)
	if c.Version() == before {
		return true
	}

	if err := w.store.Write(storage.ChunkKey(pos), c.GetChunkData()); err != nil {
		w.logger.Error("Ошибка сохранения чанка %v: %v", pos, err)
	}
	return true
}

// IsSolidAt проверяет твёрдость для коллизий.
// Ниже FloorY всегда твёрдо; несгенерированные чанки непроходимы.
func (w *World) IsSolidAt(x, y, z int64) bool {
	if y < FloorY {
		return true
	}
	id, ok := w.PeekBlock(x, y, z)
	if !ok {
		return true
	}
	return block.IsSolid(id)
}

// IsTargetable проверяет, может ли луч попасть в блок.
// В отличие от коллизий, несгенерированное пространство пустое.
func (w *World) IsTargetable(x, y, z int64) bool {
	if y < FloorY {
		return true
	}
	id, ok := w.PeekBlock(x, y, z)
	return ok && block.IsSolid(id)
}

// ChunkCount возвращает количество загруженных чанков
func (w *World) ChunkCount() int {
	return len(w.chunks)
}

// Chunks вызывает fn для каждого загруженного чанка; false прерывает обход
func (w *World) Chunks(fn func(c *Chunk) bool) {
	for _, c := range w.chunks {
		if !fn(c) {
			return
		}
	}
}

// MaxHeight возвращает верхнюю границу рельефа для поиска поверхности
func (w *World) MaxHeight() int64 {
	if h, ok := w.generator.(heightHinter); ok {
		return h.MaxHeight()
	}
	return defaultMaxHeight
}

// SurfaceHeight возвращает высоту первой свободной клетки над рельефом в колонке (x, z)
func (w *World) SurfaceHeight(x, z int64) int64 {
	for y := w.MaxHeight(); y >= FloorY; y-- {
		if block.IsSolid(w.Block(x, y, z)) {
			return y + 1
		}
	}
	return FloorY
}
