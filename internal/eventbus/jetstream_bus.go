package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// Заголовки NATS, дублирующие поля конверта для фильтрации без разбора JSON
const (
	headerTick   = "Bv-Tick"
	headerSource = "Bv-Source"
)

// JetStreamBus публикует ленту событий мира в стрим NATS JetStream.
// Субъекты имеют вид world.<type>; публикация асинхронная, ошибки
// подтверждений учитываются в Dropped.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	prefix    string
	logger    *logging.Logger
	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewJetStreamBus подключается к NATS и создаёт стрим, если его ещё нет.
// retention ограничивает возраст хранимых событий.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "WORLD"
	}
	logger := logging.GetEventBusLogger()

	nc, err := nats.Connect(url,
		nats.Name("blockverse"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	jb := &JetStreamBus{nc: nc, stream: stream, prefix: "world", logger: logger}

	js, err := nc.JetStream(
		nats.PublishAsyncMaxPending(4096),
		nats.PublishAsyncErrHandler(func(_ nats.JetStream, msg *nats.Msg, err error) {
			jb.dropped.Add(1)
			jb.logger.Debug("Feed event on %s not acknowledged: %v", msg.Subject, err)
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	jb.js = js

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       stream,
			Subjects:   []string{jb.prefix + ".*"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     retention,
			Storage:    nats.FileStorage,
			Duplicates: time.Minute,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
		logger.Info("JetStream stream %s created (retention %v)", stream, retention)
	}

	return jb, nil
}

func (jb *JetStreamBus) subject(eventType string) string {
	return jb.prefix + "." + eventType
}

// Publish публикует конверт в world.<type>, не дожидаясь подтверждения.
// ID конверта служит ключом дедупликации JetStream.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(jb.subject(ev.EventType))
	msg.Data = data
	msg.Header.Set(headerTick, strconv.FormatUint(ev.Tick, 10))
	msg.Header.Set(headerSource, ev.Source)

	if _, err = jb.js.PublishMsgAsync(msg, nats.MsgId(ev.ID)); err != nil {
		jb.dropped.Add(1)
		return err
	}
	jb.published.Add(1)
	return nil
}

// Subscribe создаёт упорядоченного эфемерного потребителя с новых событий.
// Порядок доставки совпадает с порядком тиков.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := jb.prefix + ".*"
	if len(f.Types) == 1 {
		subj = jb.subject(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.logger.Warn("Malformed feed event on %s: %v", msg.Subject, err)
			return
		}
		if !matchFilter(&ev, f) {
			return
		}
		h(ctx, &ev)
		jb.consumed.Add(1)
	}, nats.OrderedConsumer(), nats.DeliverNew())
	if err != nil {
		return nil, err
	}

	return &jetSub{natSub}, nil
}

type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает счётчики; InFlight — число неподтверждённых публикаций
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
		InFlight:  jb.js.PublishAsyncPending(),
	}
}

// Close ждёт подтверждений (не дольше 5 секунд) и закрывает соединение
func (jb *JetStreamBus) Close() error {
	select {
	case <-jb.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		jb.logger.Warn("Closing with %d unacknowledged feed events", jb.js.PublishAsyncPending())
	}
	return jb.nc.Drain()
}
