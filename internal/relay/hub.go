// Package relay is a small movement server. Clients stream movement codes
// to it; it keeps a position per client and periodically sends every client
// the positions of all the others.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafov/bcast"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/cs3238-tsuzu/movesync-online/internal/logger"
	"github.com/cs3238-tsuzu/movesync-online/internal/message"
)

const writeTimeout = 2 * time.Second

type snapshot []Participant

type Hub struct {
	group    *bcast.Group
	world    *World
	log      *zap.Logger
	interval time.Duration

	done     chan struct{}
	doneOnce sync.Once
	conns    sync.WaitGroup
}

func NewHub(interval time.Duration, log *zap.Logger) *Hub {
	group := bcast.NewGroup()
	go group.Broadcast(0)

	return &Hub{
		group:    group,
		world:    NewWorld(),
		log:      logger.OrNop(log).Named("relay"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (h *Hub) World() *World { return h.world }

// Run broadcasts a world snapshot every interval until ctx is done. When it
// returns every connection is closed.
func (h *Hub) Run(ctx context.Context) error {
	member := h.group.Join()
	defer member.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-member.Read:
			if !ok {
				return nil
			}
		case <-ticker.C:
			member.Send(snapshot(h.world.Snapshot()))
		}
	}
}

func (h *Hub) shutdown() {
	h.doneOnce.Do(func() { close(h.done) })
	h.conns.Wait()
}

// HandleConn serves one participant until the connection breaks, ctx is
// done or the hub stops.
func (h *Hub) HandleConn(ctx context.Context, conn net.Conn) {
	h.conns.Add(1)
	defer h.conns.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.New().String()
	log := h.log.With(zap.String("id", id), zap.Stringer("remote", conn.RemoteAddr()))

	h.world.Join(id)
	defer h.world.Leave(id)

	member := h.group.Join()
	defer member.Close()

	log.Info("joined")
	defer log.Info("left")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		conn.Close()
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case m, ok := <-member.Read:
				if !ok {
					return
				}

				snap, ok := m.(snapshot)
				if !ok {
					continue
				}
				records := recordsFor(snap, id)
				if len(records) == 0 {
					continue
				}

				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if _, err := conn.Write(records); err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	buf := make([]byte, 4*message.BatchSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			codes := buf[:n]
			if skipped := h.world.Apply(id, codes); skipped > 0 {
				log.Warn("skipped codes", zap.Int("count", skipped), zap.Error(message.ValidateBatch(codes)))
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("read failed", zap.Error(err))
			}
			break
		}
	}

	cancel()
	wg.Wait()
}

// ServeTCP accepts connections on ln until ctx is done.
func (h *Hub) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	h.log.Info("listening", zap.String("proto", "tcp"), zap.Stringer("addr", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		go h.HandleConn(ctx, conn)
	}
}

// WebSocketHandler serves a participant over a binary WebSocket.
func (h *Hub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	h.HandleConn(ctx, websocket.NetConn(ctx, c, websocket.MessageBinary))
}
