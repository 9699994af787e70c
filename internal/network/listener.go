package network

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/protocol"
)

// Конфигурация WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Клиенты бывают не только браузерные
	},
}

// ListenerConfig содержит адреса и параметры приёма соединений.
// Пустой адрес отключает соответствующий транспорт.
type ListenerConfig struct {
	TCPAddr          string
	KCPAddr          string
	HandshakeTimeout time.Duration
	EditRate         float64
	EditBurst        int
}

// DefaultListenerConfig возвращает конфигурацию по умолчанию
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		TCPAddr:          ":7777",
		KCPAddr:          ":7778",
		HandshakeTimeout: 5 * time.Second,
		EditRate:         50,
		EditBurst:        100,
	}
}

// Listener принимает TCP, KCP и WebSocket соединения, проводит
// рукопожатие и передаёт готовые каналы обработчику
type Listener struct {
	cfg       ListenerConfig
	onChannel func(*ServerChannel)
	metrics   *metrics.Metrics
	logger    *logging.Logger

	mu     sync.Mutex
	tcp    net.Listener
	kcp    *kcp.Listener
	closed bool
	wg     sync.WaitGroup
}

// NewListener создаёт приёмник соединений
func NewListener(cfg ListenerConfig, m *metrics.Metrics, onChannel func(*ServerChannel)) *Listener {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Listener{
		cfg:       cfg,
		onChannel: onChannel,
		metrics:   m,
		logger:    logging.GetNetworkLogger(),
	}
}

// Start открывает сокеты и запускает циклы приёма
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", l.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen tcp %s: %w", l.cfg.TCPAddr, err)
		}
		l.tcp = ln
		l.wg.Add(1)
		go l.acceptTCP(ln)
		l.logger.Info("TCP listener started: addr=%s", ln.Addr())
	}

	if l.cfg.KCPAddr != "" {
		ln, err := kcp.ListenWithOptions(l.cfg.KCPAddr, nil, 0, 0)
		if err != nil {
			if l.tcp != nil {
				l.tcp.Close()
			}
			return fmt.Errorf("failed to listen kcp %s: %w", l.cfg.KCPAddr, err)
		}
		l.kcp = ln
		l.wg.Add(1)
		go l.acceptKCP(ln)
		l.logger.Info("KCP listener started: addr=%s", ln.Addr())
	}
	return nil
}

// TCPAddr возвращает фактический адрес TCP-сокета (nil, если выключен)
func (l *Listener) TCPAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tcp == nil {
		return nil
	}
	return l.tcp.Addr()
}

// KCPAddr возвращает фактический адрес KCP-сокета (nil, если выключен)
func (l *Listener) KCPAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.kcp == nil {
		return nil
	}
	return l.kcp.Addr()
}

// ServeWS переводит HTTP-запрос в WebSocket-канал
func (l *Listener) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("WebSocket upgrade failed: addr=%s err=%v", r.RemoteAddr, err)
		return
	}
	l.serve(NewWSConn(conn))
}

// Close останавливает приём новых соединений. Уже принятые каналы не трогает.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true

	var errs []error
	if l.tcp != nil {
		errs = append(errs, l.tcp.Close())
	}
	if l.kcp != nil {
		errs = append(errs, l.kcp.Close())
	}
	l.mu.Unlock()

	l.wg.Wait()
	return errors.Join(errs...)
}

func (l *Listener) acceptTCP(ln net.Listener) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Error("TCP accept error: %v", err)
			}
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}
		go l.serve(NewStreamConn(conn, TransportTCP))
	}
}

func (l *Listener) acceptKCP(ln *kcp.Listener) {
	defer l.wg.Done()

	for {
		sess, err := ln.AcceptKCP()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if !closed {
				l.logger.Error("KCP accept error: %v", err)
			}
			return
		}
		tuneKCP(sess)
		go l.serve(NewStreamConn(sess, TransportKCP))
	}
}

// serve проводит рукопожатие и передаёт канал обработчику
func (l *Listener) serve(fc FrameConn) {
	if err := acceptHandshake(fc, l.cfg.HandshakeTimeout); err != nil {
		l.logger.Warn("%s handshake failed: addr=%s err=%v", fc.Transport(), fc.RemoteAddr(), err)
		fc.Close()
		return
	}

	l.metrics.ConnectionAccepted(fc.Transport())
	ch := NewServerChannel(fc, ChannelConfig{
		Metrics:   l.metrics,
		Logger:    l.logger,
		EditRate:  l.cfg.EditRate,
		EditBurst: l.cfg.EditBurst,
	})
	l.onChannel(ch)
}

// acceptHandshake читает приветствие клиента и отвечает на него.
// При несовпадении версии клиент получает ответ со статусом ошибки.
func acceptHandshake(fc FrameConn, timeout time.Duration) error {
	fc.SetDeadline(time.Now().Add(timeout))

	hello, err := fc.ReadHandshake(protocol.HelloSize)
	if err != nil {
		return err
	}
	reply, err := protocol.CheckHello(hello)
	if reply != nil {
		if werr := fc.WriteHandshake(reply); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		return err
	}

	return fc.SetDeadline(time.Time{})
}
