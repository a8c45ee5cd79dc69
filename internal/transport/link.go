package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

// link is one established byte stream to the server.
type link interface {
	write(ctx context.Context, p []byte, timeout time.Duration) error
	// readAvailable appends bytes already queued on the stream to dst. It
	// waits at most wait for the first byte and never longer.
	readAvailable(dst []byte, wait time.Duration) ([]byte, error)
	close(graceful bool) error
}

func isWebSocketAddr(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}

func dialLink(ctx context.Context, addr string, timeout time.Duration) (link, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if isWebSocketAddr(addr) {
		return dialWS(ctx, addr)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &tcpLink{conn: conn}, nil
}

type tcpLink struct {
	conn    net.Conn
	scratch [4096]byte
}

func (l *tcpLink) write(ctx context.Context, p []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	_, err := l.conn.Write(p)
	return err
}

func (l *tcpLink) readAvailable(dst []byte, wait time.Duration) ([]byte, error) {
	if err := l.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return dst, err
	}

	for {
		n, err := l.conn.Read(l.scratch[:])
		dst = append(dst, l.scratch[:n]...)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return dst, nil
			}
			return dst, err
		}
		if n < len(l.scratch) {
			return dst, nil
		}
	}
}

func (l *tcpLink) close(bool) error {
	return l.conn.Close()
}

// wsLink carries the byte stream over binary WebSocket messages. A read with
// a deadline would close a websocket.Conn, so a reader goroutine queues
// incoming messages instead.
type wsLink struct {
	conn   *websocket.Conn
	cancel context.CancelFunc

	inbox chan []byte
	errc  chan error
}

func dialWS(ctx context.Context, url string) (*wsLink, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	l := &wsLink{
		conn:   conn,
		cancel: cancel,
		inbox:  make(chan []byte, 64),
		errc:   make(chan error, 1),
	}
	go l.readLoop(readCtx)

	return l, nil
}

func (l *wsLink) readLoop(ctx context.Context) {
	for {
		typ, b, err := l.conn.Read(ctx)
		if err != nil {
			l.errc <- err
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}

		select {
		case l.inbox <- b:
		case <-ctx.Done():
			return
		}
	}
}

func (l *wsLink) write(ctx context.Context, p []byte, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return l.conn.Write(ctx, websocket.MessageBinary, p)
}

func (l *wsLink) readAvailable(dst []byte, wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case b := <-l.inbox:
		dst = append(dst, b...)
	case err := <-l.errc:
		return dst, err
	case <-timer.C:
		return dst, nil
	}

	for {
		select {
		case b := <-l.inbox:
			dst = append(dst, b...)
		default:
			return dst, nil
		}
	}
}

func (l *wsLink) close(graceful bool) error {
	defer l.cancel()

	if graceful {
		return l.conn.Close(websocket.StatusNormalClosure, "")
	}
	return l.conn.CloseNow()
}
