package network

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/protocol"
)

// editLimiter ограничивает частоту изменений блоков одного соединения.
// Сверх лимита изменения отбрасываются, позиция игрока проходит всегда.
type editLimiter struct {
	lim     *rate.Limiter
	metrics *metrics.Metrics
}

func newEditLimiter(perSecond float64, burst int, m *metrics.Metrics) *editLimiter {
	if burst <= 0 {
		burst = int(perSecond) + 1
	}
	return &editLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst), metrics: m}
}

func (l *editLimiter) apply(ev *protocol.PlayerEvent) *protocol.PlayerEvent {
	n := len(ev.Edits) + len(ev.Actions)
	if n == 0 {
		return ev
	}
	if !l.lim.AllowN(time.Now(), n) {
		ev.Edits = nil
		ev.Actions = nil
		l.metrics.AddEditsDropped(n)
	}
	return ev
}
