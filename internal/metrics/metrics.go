package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace общий префикс всех метрик сервера
const Namespace = "blockverse"

// Metrics набор prometheus-коллекторов игрового сервера.
// Все методы безопасны для nil-получателя, поэтому компоненты
// могут работать без метрик (тесты, клиент).
type Metrics struct {
	tickDuration  prometheus.Histogram
	tickOverruns  prometheus.Counter
	sessions      prometheus.Gauge
	loadedChunks  prometheus.Gauge
	chunksSent    prometheus.Counter
	blockUpdates  prometheus.Counter
	editsDropped  prometheus.Counter
	connections   *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
	bytesReceived *prometheus.CounterVec
	protoErrors   prometheus.Counter

	processCPU prometheus.Gauge
	processRSS prometheus.Gauge
}

// New создаёт коллекторы и регистрирует их в reg.
// nil означает prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика симуляции.",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1},
		}),
		tickOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tick_overruns_total",
			Help:      "Число тиков, не уложившихся в интервал.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions",
			Help:      "Текущее число подключённых сессий.",
		}),
		loadedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "loaded_chunks",
			Help:      "Число чанков в памяти сервера.",
		}),
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunks_sent_total",
			Help:      "Число отправленных клиентам чанков.",
		}),
		blockUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "block_updates_total",
			Help:      "Число принятых изменений блоков.",
		}),
		editsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "edits_dropped_total",
			Help:      "Изменения блоков, отброшенные ограничителем частоты.",
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Принятые соединения по транспорту.",
		}, []string{"transport"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_sent_total",
			Help:      "Отправленные байты по транспорту.",
		}, []string{"transport"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_received_total",
			Help:      "Полученные байты по транспорту.",
		}, []string{"transport"}),
		protoErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "protocol_errors_total",
			Help:      "Ошибки разбора входящих сообщений.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "process_cpu_percent",
			Help:      "Загрузка CPU процессом сервера.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "process_rss_bytes",
			Help:      "Резидентная память процесса сервера.",
		}),
	}

	reg.MustRegister(
		m.tickDuration, m.tickOverruns, m.sessions, m.loadedChunks,
		m.chunksSent, m.blockUpdates, m.editsDropped, m.connections,
		m.bytesSent, m.bytesReceived, m.protoErrors,
		m.processCPU, m.processRSS,
	)
	return m
}

// ObserveTick фиксирует длительность тика и превышение интервала
func (m *Metrics) ObserveTick(d, budget time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
	if d > budget {
		m.tickOverruns.Inc()
	}
}

// SetSessions обновляет число сессий
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// SetLoadedChunks обновляет число чанков в памяти
func (m *Metrics) SetLoadedChunks(n int) {
	if m == nil {
		return
	}
	m.loadedChunks.Set(float64(n))
}

func (m *Metrics) AddChunksSent(n int) {
	if m == nil || n == 0 {
		return
	}
	m.chunksSent.Add(float64(n))
}

func (m *Metrics) AddBlockUpdates(n int) {
	if m == nil || n == 0 {
		return
	}
	m.blockUpdates.Add(float64(n))
}

func (m *Metrics) AddEditsDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.editsDropped.Add(float64(n))
}

// ConnectionAccepted учитывает новое соединение транспорта
func (m *Metrics) ConnectionAccepted(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Inc()
}

// AddBytes учитывает трафик транспорта
func (m *Metrics) AddBytes(transport string, sent, received int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.bytesSent.WithLabelValues(transport).Add(float64(sent))
	}
	if received > 0 {
		m.bytesReceived.WithLabelValues(transport).Add(float64(received))
	}
}

func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.protoErrors.Inc()
}
