package syncutil

import "sync"

// PriorityMutex реализует мьютекс, в котором приоритетные владельцы (поток отрисовки)
// обгоняют обычных (сетевой поток).
//
// Обычный Lock проходит через входной шлюз. Первый приоритетный захват
// закрывает шлюз, последний приоритетный освобождает его, поэтому обычные
// ожидающие не могут вклиниться, пока есть хотя бы один приоритетный.
type PriorityMutex struct {
	inner sync.Mutex
	gate  sync.Mutex

	mu       sync.Mutex
	priority int
}

// Lock захватывает мьютекс с обычным приоритетом
func (m *PriorityMutex) Lock() {
	m.gate.Lock()
	m.inner.Lock()
	m.gate.Unlock()
}

// Unlock освобождает мьютекс, захваченный Lock
func (m *PriorityMutex) Unlock() {
	m.inner.Unlock()
}

// PriorityLock захватывает мьютекс в обход очереди обычных владельцев
func (m *PriorityMutex) PriorityLock() {
	m.mu.Lock()
	m.priority++
	first := m.priority == 1
	m.mu.Unlock()

	if first {
		m.gate.Lock()
	}
	m.inner.Lock()
}

// PriorityUnlock освобождает мьютекс, захваченный PriorityLock
func (m *PriorityMutex) PriorityUnlock() {
	m.inner.Unlock()

	m.mu.Lock()
	m.priority--
	if m.priority == 0 {
		m.gate.Unlock()
	}
	m.mu.Unlock()
}
