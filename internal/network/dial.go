package network

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/protocol"
)

const defaultDialTimeout = 10 * time.Second

// Dial подключается к серверу по транспорту network ("tcp", "kcp" или "ws"),
// проводит рукопожатие и возвращает клиентский канал
func Dial(ctx context.Context, network, addr string, m *metrics.Metrics) (*ClientChannel, error) {
	fc, err := dialConn(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if err := clientHandshake(ctx, fc, protocol.Version); err != nil {
		fc.Close()
		return nil, fmt.Errorf("handshake with %s failed: %w", addr, err)
	}

	return NewClientChannel(fc, ChannelConfig{Metrics: m, Logger: logging.GetClientLogger()}), nil
}

func dialConn(ctx context.Context, network, addr string) (FrameConn, error) {
	switch network {
	case TransportTCP:
		d := net.Dialer{Timeout: defaultDialTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return NewStreamConn(conn, TransportTCP), nil

	case TransportKCP:
		sess, err := kcp.DialWithOptions(addr, nil, 10, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		tuneKCP(sess)
		return NewStreamConn(sess, TransportKCP), nil

	case TransportWS:
		url := addr
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			url = "ws://" + addr + "/ws"
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
		}
		return NewWSConn(conn), nil

	default:
		return nil, fmt.Errorf("unsupported transport %q", network)
	}
}

// clientHandshake отправляет приветствие и проверяет ответ сервера
func clientHandshake(ctx context.Context, fc FrameConn, version uint16) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultDialTimeout)
	}
	fc.SetDeadline(deadline)

	if err := fc.WriteHandshake(protocol.EncodeHello(version)); err != nil {
		return err
	}
	reply, err := fc.ReadHandshake(protocol.ReplySize)
	if err != nil {
		return err
	}
	if err := protocol.DecodeReply(reply); err != nil {
		return err
	}

	return fc.SetDeadline(time.Time{})
}
