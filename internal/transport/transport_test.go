package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"

	"github.com/cs3238-tsuzu/movesync-online/internal/message"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func accept(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- c
	}()

	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatalf("accept failed")
		}
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection")
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, addr string, mutate func(*Options)) *Transport {
	t.Helper()
	opts := Options{
		Addr:                     addr,
		DialTimeout:              time.Second,
		WriteTimeout:             time.Second,
		ReconnectAttempts:        5,
		ReconnectInitialInterval: 10 * time.Millisecond,
		ReconnectMaxInterval:     50 * time.Millisecond,
		Logger:                   zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&opts)
	}

	tr, err := Dial(context.Background(), opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), Options{Addr: addr, DialTimeout: time.Second})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("Dial error = %v, want ErrConnect", err)
	}
}

func TestSendWritesBatchInOrder(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), nil)
	srv := accept(t, ln)

	batch := []byte{1, 1, 3, 0, 2, 4, 0, 1}
	if err := tr.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := make([]byte, message.BatchSize)
	srv.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(srv, got); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if !bytes.Equal(got, batch) {
		t.Fatalf("server got %v, want %v", got, batch)
	}
}

func TestPollIdleDoesNotBlock(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), nil)
	accept(t, ln)

	start := time.Now()
	ps, err := tr.PollRemotePositions()
	if err != nil || ps != nil {
		t.Fatalf("idle poll = %v, %v", ps, err)
	}
	if d := time.Since(start); d > 200*time.Millisecond {
		t.Fatalf("idle poll took %v", d)
	}
}

func TestPollKeepsPartialRecord(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), nil)
	srv := accept(t, ln)

	first := movement.Position{X: 0, Y: 1}
	second := movement.Position{X: -0.5, Y: 0.25}
	stream := message.EncodeRecords([]movement.Position{first, second})

	if _, err := srv.Write(stream[:12]); err != nil {
		t.Fatalf("server write: %v", err)
	}

	var got []movement.Position
	waitFor(t, "first record", func() bool {
		ps, err := tr.PollRemotePositions()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		got = append(got, ps...)
		return len(got) == 1 && tr.Pending() == 4
	})
	if got[0] != first {
		t.Fatalf("first record = %+v, want %+v", got[0], first)
	}

	if _, err := srv.Write(append(stream[12:], 0x3f, 0x80, 0)); err != nil {
		t.Fatalf("server write: %v", err)
	}
	waitFor(t, "second record", func() bool {
		ps, err := tr.PollRemotePositions()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		got = append(got, ps...)
		return len(got) == 2 && tr.Pending() == 3
	})
	if got[1] != second {
		t.Fatalf("second record = %+v, want %+v", got[1], second)
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), nil)
	first := accept(t, ln)
	first.Close()

	waitFor(t, "read failure", func() bool {
		_, err := tr.PollRemotePositions()
		return errors.Is(err, ErrReceive) || errors.Is(err, ErrNotConnected)
	})

	if err := tr.Send(context.Background(), make([]byte, 8)); err != nil &&
		!errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send while reconnecting = %v", err)
	}

	second := accept(t, ln)
	waitFor(t, "reconnect", func() bool { return tr.State() == StateConnected })

	batch := []byte{4, 4, 4, 4, 0, 0, 0, 0}
	if err := tr.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send after reconnect: %v", err)
	}
	got := make([]byte, 8)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(second, got); err != nil {
		t.Fatalf("read after reconnect: %v", err)
	}
	if !bytes.Equal(got, batch) {
		t.Fatalf("server got %v, want %v", got, batch)
	}
}

func TestGiveUpAfterAttempts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tr := dial(t, ln.Addr().String(), func(o *Options) { o.ReconnectAttempts = 2 })
	srv, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	ln.Close()
	srv.Close()

	waitFor(t, "give up", func() bool {
		_, _ = tr.PollRemotePositions()
		return tr.State() == StateFailed
	})

	if err := tr.Send(context.Background(), make([]byte, 8)); !errors.Is(err, ErrGaveUp) {
		t.Fatalf("Send after giving up = %v, want ErrGaveUp", err)
	}
}

func TestNoReconnectWhenDisabled(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), func(o *Options) { o.ReconnectAttempts = 0 })
	accept(t, ln).Close()

	waitFor(t, "failure", func() bool {
		_, _ = tr.PollRemotePositions()
		return tr.State() == StateFailed
	})
}

func TestClose(t *testing.T) {
	ln := listen(t)
	tr := dial(t, ln.Addr().String(), nil)
	accept(t, ln)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := tr.Send(context.Background(), make([]byte, 8)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
	if _, err := tr.PollRemotePositions(); !errors.Is(err, ErrClosed) {
		t.Fatalf("poll after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketLink(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		typ, b, err := c.Read(ctx)
		if err != nil || typ != websocket.MessageBinary {
			return
		}
		received <- b

		stream := message.EncodeRecords([]movement.Position{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}})
		_ = c.Write(ctx, websocket.MessageBinary, stream[:10])
		_ = c.Write(ctx, websocket.MessageBinary, stream[10:])

		_, _, _ = c.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	tr := dial(t, "ws://"+strings.TrimPrefix(srv.URL, "http://"), nil)

	batch := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	if err := tr.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case b := <-received:
		if !bytes.Equal(b, batch) {
			t.Fatalf("server got %v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the batch")
	}

	var got []movement.Position
	waitFor(t, "records", func() bool {
		ps, err := tr.PollRemotePositions()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		got = append(got, ps...)
		return len(got) == 2
	})
	if got[0] != (movement.Position{X: 0.1, Y: 0.2}) || got[1] != (movement.Position{X: 0.3, Y: 0.4}) {
		t.Fatalf("records = %+v", got)
	}
	if tr.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", tr.Pending())
	}
}
