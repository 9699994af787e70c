package network

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/blockverse/internal/protocol"
)

// Названия транспортов, используются в логах и метриках
const (
	TransportTCP = "tcp"
	TransportKCP = "kcp"
	TransportWS  = "ws"
)

// FrameConn передаёт целые кадры протокола.
// Чтение выполняется одной горутиной, запись безопасна из нескольких.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error

	// ReadHandshake читает приветствие длиной n байт до начала обмена кадрами
	ReadHandshake(n int) ([]byte, error)
	WriteHandshake(b []byte) error

	SetDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
	Transport() string
}

// StreamConn передаёт кадры поверх потокового соединения:
// TCP или KCP-сессии в потоковом режиме
type StreamConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	transport string
	wmu       sync.Mutex
}

// NewStreamConn оборачивает потоковое соединение
func NewStreamConn(conn net.Conn, transport string) *StreamConn {
	return &StreamConn{
		conn:      conn,
		reader:    bufio.NewReaderSize(conn, 64*1024),
		transport: transport,
	}
}

func (s *StreamConn) ReadFrame() ([]byte, error) {
	return protocol.ReadFrame(s.reader)
}

func (s *StreamConn) WriteFrame(payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return protocol.WriteFrame(s.conn, payload)
}

func (s *StreamConn) ReadHandshake(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *StreamConn) WriteHandshake(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.conn.Write(b)
	return err
}

func (s *StreamConn) SetDeadline(t time.Time) error { return s.conn.SetDeadline(t) }
func (s *StreamConn) Close() error                  { return s.conn.Close() }
func (s *StreamConn) RemoteAddr() string            { return s.conn.RemoteAddr().String() }
func (s *StreamConn) Transport() string             { return s.transport }

// WSConn передаёт каждый кадр отдельным бинарным сообщением WebSocket
type WSConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWSConn оборачивает WebSocket-соединение
func NewWSConn(conn *websocket.Conn) *WSConn {
	conn.SetReadLimit(protocol.MaxFrameSize)
	return &WSConn{conn: conn}
}

func (w *WSConn) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return data, nil
		}
		if kind == websocket.TextMessage {
			return nil, fmt.Errorf("unexpected text message from %s", w.RemoteAddr())
		}
	}
}

func (w *WSConn) WriteFrame(payload []byte) error {
	if len(payload) > protocol.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", protocol.ErrFrameTooLarge, len(payload))
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (w *WSConn) ReadHandshake(n int) ([]byte, error) {
	b, err := w.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, protocol.ErrBadMagic
	}
	return b, nil
}

func (w *WSConn) WriteHandshake(b []byte) error {
	return w.WriteFrame(b)
}

func (w *WSConn) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}

func (w *WSConn) Close() error {
	w.wmu.Lock()
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.wmu.Unlock()
	return w.conn.Close()
}

func (w *WSConn) RemoteAddr() string { return w.conn.RemoteAddr().String() }
func (w *WSConn) Transport() string  { return TransportWS }

// tuneKCP применяет игровые настройки KCP-сессии
func tuneKCP(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetWriteDelay(false)
	s.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	s.SetWindowSize(512, 512)
	s.SetMtu(1400)
}
