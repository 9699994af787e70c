package network

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/syncutil"
)

// flushTimeout ограничивает дозапись очереди при закрытии канала
const flushTimeout = 2 * time.Second

// ConnectionStats содержит статистику соединения
type ConnectionStats struct {
	ID               string    `json:"id"`
	RemoteAddr       string    `json:"remote_addr"`
	Transport        string    `json:"transport"`
	ConnectedAt      time.Time `json:"connected_at"`
	LastActivity     time.Time `json:"last_activity"`
	BytesSent        uint64    `json:"bytes_sent"`
	BytesReceived    uint64    `json:"bytes_received"`
	MessagesSent     uint64    `json:"messages_sent"`
	MessagesReceived uint64    `json:"messages_received"`
}

// Channel представляет двунаправленный канал одного соединения. Отдельные горутины
// читают и пишут кадры, а обмен с потоком симуляции идёт через очереди,
// поэтому Receive и Send никогда не ждут сети.
type Channel[In, Out any] struct {
	id      string
	conn    FrameConn
	decode  func([]byte) (In, error)
	encode  func(Out) []byte
	filter  func(In) In
	logger  *logging.Logger
	metrics *metrics.Metrics

	inbound  *syncutil.Queue[In]
	outbound *syncutil.Queue[Out]
	inflight atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
	wg        sync.WaitGroup

	connectedAt  time.Time
	lastActivity atomic.Int64
	bytesSent    atomic.Uint64
	bytesRecv    atomic.Uint64
	msgsSent     atomic.Uint64
	msgsRecv     atomic.Uint64

	errMu sync.Mutex
	err   error
}

// ServerChannel принимает PlayerEvent и отправляет GameEvent
type ServerChannel = Channel[*protocol.PlayerEvent, *protocol.GameEvent]

// ClientChannel принимает GameEvent и отправляет PlayerEvent
type ClientChannel = Channel[*protocol.GameEvent, *protocol.PlayerEvent]

// ChannelConfig содержит настройки канала
type ChannelConfig struct {
	Metrics *metrics.Metrics
	Logger  *logging.Logger

	// Ограничение частоты изменений блоков (в секунду); 0 отключает
	EditRate  float64
	EditBurst int
}

// NewServerChannel запускает серверный канал поверх установленного соединения
func NewServerChannel(conn FrameConn, cfg ChannelConfig) *ServerChannel {
	var filter func(*protocol.PlayerEvent) *protocol.PlayerEvent
	if cfg.EditRate > 0 {
		filter = newEditLimiter(cfg.EditRate, cfg.EditBurst, cfg.Metrics).apply
	}
	return newChannel(conn, protocol.DecodePlayerEvent, protocol.EncodeGameEvent, filter, cfg)
}

// NewClientChannel запускает клиентский канал поверх установленного соединения
func NewClientChannel(conn FrameConn, cfg ChannelConfig) *ClientChannel {
	return newChannel(conn, protocol.DecodeGameEvent, protocol.EncodePlayerEvent, nil, cfg)
}

func newChannel[In, Out any](conn FrameConn, decode func([]byte) (In, error), encode func(Out) []byte, filter func(In) In, cfg ChannelConfig) *Channel[In, Out] {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetNetworkLogger()
	}

	c := &Channel[In, Out]{
		id:          uuid.NewString(),
		conn:        conn,
		decode:      decode,
		encode:      encode,
		filter:      filter,
		logger:      logger,
		metrics:     cfg.Metrics,
		inbound:     syncutil.NewQueue[In](),
		outbound:    syncutil.NewQueue[Out](),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
	c.touch()

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		c.wg.Wait()
		c.inbound.Close()
		c.outbound.Close()
		close(c.done)
	}()

	logger.Info("%s channel created: id=%s addr=%s", conn.Transport(), c.id, conn.RemoteAddr())
	return c
}

// ID возвращает идентификатор канала
func (c *Channel[In, Out]) ID() string { return c.id }

// RemoteAddr возвращает адрес удалённой стороны
func (c *Channel[In, Out]) RemoteAddr() string { return c.conn.RemoteAddr() }

// Transport возвращает название транспорта
func (c *Channel[In, Out]) Transport() string { return c.conn.Transport() }

// Receive забирает до max входящих сообщений (max <= 0 — все). Не блокируется.
func (c *Channel[In, Out]) Receive(max int) []In {
	return c.inbound.Drain(max)
}

// Incoming сигнализирует о появлении входящих сообщений
func (c *Channel[In, Out]) Incoming() <-chan struct{} {
	return c.inbound.Ready()
}

// Send ставит сообщение в очередь отправки. Возвращает false, если канал закрывается.
func (c *Channel[In, Out]) Send(msg Out) bool {
	if c.closing.Load() {
		return false
	}
	c.inflight.Add(1)
	if !c.outbound.Push(msg) {
		c.inflight.Add(-1)
		return false
	}
	return true
}

// Pending возвращает число сообщений, ещё не записанных в соединение
func (c *Channel[In, Out]) Pending() int {
	return int(c.inflight.Load())
}

// Done закрывается, когда обе горутины канала завершились
func (c *Channel[In, Out]) Done() <-chan struct{} {
	return c.done
}

// Err возвращает причину разрыва соединения (nil при штатном закрытии)
func (c *Channel[In, Out]) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close дописывает уже поставленные в очередь сообщения и закрывает соединение
func (c *Channel[In, Out]) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.stop)
	})
	return nil
}

// Stats возвращает снимок статистики соединения
func (c *Channel[In, Out]) Stats() ConnectionStats {
	return ConnectionStats{
		ID:               c.id,
		RemoteAddr:       c.conn.RemoteAddr(),
		Transport:        c.conn.Transport(),
		ConnectedAt:      c.connectedAt,
		LastActivity:     time.Unix(0, c.lastActivity.Load()),
		BytesSent:        c.bytesSent.Load(),
		BytesReceived:    c.bytesRecv.Load(),
		MessagesSent:     c.msgsSent.Load(),
		MessagesReceived: c.msgsRecv.Load(),
	}
}

func (c *Channel[In, Out]) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// fail запоминает первую ошибку и инициирует закрытие
func (c *Channel[In, Out]) fail(err error) {
	if err != nil && !c.closing.Load() && !isClosedErr(err) {
		c.errMu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.errMu.Unlock()
		c.logger.Warn("%s channel %s failed: %v", c.conn.Transport(), c.id, err)
	}
	c.Close()
}

func (c *Channel[In, Out]) readLoop() {
	defer c.wg.Done()

	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			c.fail(err)
			return
		}

		c.touch()
		c.bytesRecv.Add(uint64(len(data) + 4))
		c.msgsRecv.Add(1)
		c.metrics.AddBytes(c.conn.Transport(), 0, len(data)+4)

		msg, err := c.decode(data)
		if err != nil {
			logging.LogProtocolError(c.logger, c.id, err, data)
			c.metrics.ProtocolError()
			c.fail(err)
			return
		}
		if c.filter != nil {
			msg = c.filter(msg)
		}
		c.inbound.Push(msg)
	}
}

func (c *Channel[In, Out]) writeLoop() {
	defer c.wg.Done()
	defer c.conn.Close()

	for {
		select {
		case <-c.outbound.Ready():
			if err := c.flush(); err != nil {
				c.fail(err)
				return
			}
		case <-c.stop:
			c.conn.SetDeadline(time.Now().Add(flushTimeout))
			if err := c.flush(); err != nil {
				c.logger.Debug("%s channel %s: flush on close failed: %v", c.conn.Transport(), c.id, err)
			}
			c.logger.Info("%s channel closed: id=%s", c.conn.Transport(), c.id)
			return
		}
	}
}

// flush записывает все сообщения из очереди отправки
func (c *Channel[In, Out]) flush() error {
	for _, msg := range c.outbound.Drain(0) {
		payload := c.encode(msg)
		err := c.conn.WriteFrame(payload)
		c.inflight.Add(-1)
		if err != nil {
			return err
		}

		c.touch()
		c.bytesSent.Add(uint64(len(payload) + 4))
		c.msgsSent.Add(1)
		c.metrics.AddBytes(c.conn.Transport(), len(payload)+4, 0)
	}
	return nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
