package syncutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainOrder(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		require.True(t, q.Push(i))
	}

	assert.Equal(t, []int{0, 1}, q.Drain(2))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{2, 3, 4}, q.Drain(0))
	assert.Nil(t, q.Drain(10))
}

func TestQueueReadySignal(t *testing.T) {
	q := NewQueue[string]()

	select {
	case <-q.Ready():
		t.Fatal("пустая очередь не должна сигналить")
	default:
	}

	q.Push("a")
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("нет сигнала после Push")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Close()

	assert.False(t, q.Push(2))
	assert.Equal(t, []int{1}, q.Drain(0))
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	total := 0
	for q.Len() > 0 {
		total += len(q.Drain(64))
	}
	assert.Equal(t, 1000, total)
}

func TestPriorityMutexCutsAhead(t *testing.T) {
	var m PriorityMutex
	var orderMu sync.Mutex
	var order []string
	record := func(s string) {
		orderMu.Lock()
		order = append(order, s)
		orderMu.Unlock()
	}

	m.Lock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		m.Lock()
		record("n1")
		m.Unlock()
	}()
	time.Sleep(20 * time.Millisecond)

	go func() {
		defer wg.Done()
		m.PriorityLock()
		record("p")
		m.PriorityUnlock()
	}()
	time.Sleep(20 * time.Millisecond)

	go func() {
		defer wg.Done()
		m.Lock()
		record("n2")
		m.Unlock()
	}()
	time.Sleep(20 * time.Millisecond)

	m.Unlock()
	wg.Wait()

	assert.Equal(t, []string{"n1", "p", "n2"}, order)
}

func TestPriorityMutexManyHolders(t *testing.T) {
	var m PriorityMutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.PriorityLock()
				counter++
				m.PriorityUnlock()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("взаимоблокировка")
	}
	assert.Equal(t, 8*2*200, counter)
}
