package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	N int `json:"n"`
}

func collect(t *testing.T, bus EventBus, f Filter) <-chan *Envelope {
	t.Helper()
	out := make(chan *Envelope, 16)
	_, err := bus.Subscribe(context.Background(), f, func(_ context.Context, ev *Envelope) {
		out <- ev
	})
	require.NoError(t, err)
	return out
}

func next(t *testing.T, ch <-chan *Envelope) *Envelope {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	events := collect(t, bus, Filter{})

	for i := 1; i <= 3; i++ {
		ev, err := NewEnvelope("test", TypeBlockUpdates, uint64(i), payload{N: i})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	for i := 1; i <= 3; i++ {
		ev := next(t, events)
		assert.Equal(t, uint64(i), ev.Tick)
		var p payload
		require.NoError(t, ev.Decode(&p))
		assert.Equal(t, i, p.N)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	joins := collect(t, bus, Filter{Types: []string{TypeSessionJoined}})

	upd, _ := NewEnvelope("test", TypeBlockUpdates, 1, payload{})
	join, _ := NewEnvelope("test", TypeSessionJoined, 2, payload{})
	require.NoError(t, bus.Publish(context.Background(), upd))
	require.NoError(t, bus.Publish(context.Background(), join))

	assert.Equal(t, TypeSessionJoined, next(t, joins).EventType)
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus(8)
	events := collect(t, bus, Filter{})

	ev, _ := NewEnvelope("test", TypeSessionLeft, 1, payload{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	// Принятое до закрытия доставлено
	assert.Len(t, events, 1)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrClosed)
	assert.Equal(t, uint64(1), bus.Metrics().Consumed)
}

func TestMemoryBusBackpressureByPriority(t *testing.T) {
	bus := NewMemoryBus(1)
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []int
	)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, ev *Envelope) {
		started <- struct{}{}
		<-release
		var p payload
		_ = ev.Decode(&p)
		mu.Lock()
		got = append(got, p.N)
		mu.Unlock()
	})
	require.NoError(t, err)

	publish := func(ctx context.Context, n, priority int) error {
		ev, _ := NewEnvelope("test", TypeBlockUpdates, uint64(n), payload{N: n})
		ev.Priority = priority
		return bus.Publish(ctx, ev)
	}

	// Первое событие занимает обработчик, второе заполняет буфер
	require.NoError(t, publish(context.Background(), 1, PriorityLow))
	<-started
	require.NoError(t, publish(context.Background(), 2, PriorityLow))

	// Низкий приоритет при полном буфере отбрасывается без ошибки
	require.NoError(t, publish(context.Background(), 3, PriorityLow))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	// Высокий ждёт места, пока позволяет контекст
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, publish(cancelled, 4, PriorityHigh), context.Canceled)

	waited := make(chan error, 1)
	go func() { waited <- publish(context.Background(), 5, PriorityHigh) }()
	select {
	case <-waited:
		t.Fatal("high priority publish must wait for buffer space")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-waited:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("high priority publish was not accepted")
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 5}, got)
	assert.Equal(t, uint64(3), bus.Metrics().Published)
}

func TestMetricsExporter(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)
	events := collect(t, bus, Filter{})

	ev, _ := NewEnvelope("test", TypeBlockUpdates, 1, payload{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())
	require.Len(t, events, 1)

	me.collect()
	me.collect()
	assert.Equal(t, float64(1), testutil.ToFloat64(me.published))
	assert.Equal(t, float64(1), testutil.ToFloat64(me.consumed))
}
