// Package syncutil содержит примитивы обмена между сетевыми горутинами
// и потоком симуляции.
package syncutil

import "sync"

// Queue представляет неограниченную очередь. Push и Drain никогда не блокируются
// надолго, поэтому поток тиков может работать с ней под своим мьютексом.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{}
	closed bool
}

// NewQueue создаёт пустую очередь
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push добавляет элемент. После Close элементы отбрасываются.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain забирает до max элементов в порядке добавления (max <= 0 — все)
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	copy(out, q.items[:n])

	rest := copy(q.items, q.items[n:])
	var zero T
	for i := rest; i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = q.items[:rest]

	if rest > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return out
}

// Len возвращает количество элементов
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready сигнализирует, что в очереди могли появиться элементы
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close запрещает дальнейшие Push
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
