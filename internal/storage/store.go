// Package storage содержит реализации файла сохранения мира:
// простое key/value хранилище, к которому обращаются мир и чанки.
package storage

import (
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/vec"
)

// Виды ключей
const (
	KindChunkData = "ChunkData"
	KindWorldMeta = "WorldMeta"
)

// Key представляет непрозрачный кортеж (вид, идентификатор)
type Key struct {
	Kind string
	ID   string
}

// ChunkKey возвращает ключ данных чанка
func ChunkKey(pos vec.Vec3) Key {
	return Key{Kind: KindChunkData, ID: fmt.Sprintf("%d:%d:%d", pos.X, pos.Y, pos.Z)}
}

// MetaKey возвращает ключ метаданных мира
func MetaKey(name string) Key {
	return Key{Kind: KindWorldMeta, ID: name}
}

// String сериализует ключ в строку вида "ChunkData:1:2:3"
func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Store — контракт файла сохранения.
// Read возвращает found=false, если значение отсутствует.
type Store interface {
	Read(key Key) (data []byte, found bool, err error)
	Write(key Key, data []byte) error
	Close() error
}

// Nop ничего не сохраняет; используется для временных миров
type Nop struct{}

func (Nop) Read(Key) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Write(Key, []byte) error         { return nil }
func (Nop) Close() error                    { return nil }

// Memory хранит данные в памяти процесса
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory создаёт пустое хранилище в памяти
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Read возвращает копию сохранённого значения
func (m *Memory) Read(key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key.String()]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Write сохраняет копию значения
func (m *Memory) Write(key Key, data []byte) error {
	m.mu.Lock()
	m.data[key.String()] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

// Close ничего не делает
func (m *Memory) Close() error { return nil }

// Len возвращает количество записей
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
