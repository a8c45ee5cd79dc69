// Package transport owns the single connection to the movement server.
//
// All access to the connection goes through Transport, which serialises
// senders and pollers with one mutex. When the connection breaks the
// transport re-dials in the background with exponential backoff; until it
// succeeds, sends fail fast so the render loop never waits on the network.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cs3238-tsuzu/movesync-online/internal/logger"
	"github.com/cs3238-tsuzu/movesync-online/internal/message"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

type State int

const (
	StateConnected State = iota
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrConnect      = errors.New("failed to connect to server")
	ErrSend         = errors.New("failed to send batch")
	ErrReceive      = errors.New("failed to read from server")
	ErrNotConnected = errors.New("not connected")
	ErrGaveUp       = errors.New("gave up reconnecting")
	ErrClosed       = errors.New("transport closed")
)

type Options struct {
	Addr string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PollWait     time.Duration

	// ReconnectAttempts is the number of dials made after a failure before
	// the transport gives up. Zero disables reconnecting.
	ReconnectAttempts        uint64
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration

	Logger *zap.Logger
}

func (o *Options) setDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.PollWait <= 0 {
		o.PollWait = time.Millisecond
	}
	if o.ReconnectInitialInterval <= 0 {
		o.ReconnectInitialInterval = 100 * time.Millisecond
	}
	if o.ReconnectMaxInterval <= 0 {
		o.ReconnectMaxInterval = 2 * time.Second
	}
}

type Transport struct {
	opts Options
	log  *zap.Logger
	dial func(ctx context.Context) (link, error)

	mu      sync.Mutex
	link    link
	state   State
	pending []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial connects to opts.Addr once. It is called before anything else is
// constructed; an error here means the client cannot start.
func Dial(ctx context.Context, opts Options) (*Transport, error) {
	opts.setDefaults()

	t := &Transport{
		opts: opts,
		log:  logger.OrNop(opts.Logger).Named("transport"),
	}
	t.dial = func(ctx context.Context) (link, error) {
		return dialLink(ctx, t.opts.Addr, t.opts.DialTimeout)
	}

	l, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConnect, opts.Addr, err)
	}

	t.link = l
	t.state = StateConnected
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.log.Info("connected", zap.String("addr", opts.Addr))

	return t, nil
}

func (t *Transport) Addr() string { return t.opts.Addr }

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Send writes batch as raw bytes in one write. A failed batch is not
// retried.
func (t *Transport) Send(ctx context.Context, batch []movement.Code) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.usableLocked(); err != nil {
		return err
	}

	if err := t.link.write(ctx, batch, t.opts.WriteTimeout); err != nil {
		t.dropLocked(err)
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	return nil
}

// PollRemotePositions consumes every whole position record already queued
// on the connection. Bytes of an incomplete record stay buffered until the
// rest arrives. It returns nil when no complete record is available.
func (t *Transport) PollRemotePositions() ([]movement.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.usableLocked(); err != nil {
		return nil, err
	}

	buf, err := t.link.readAvailable(t.pending, t.opts.PollWait)
	if err != nil {
		t.dropLocked(err)
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}

	ps, n := message.DecodeRecords(buf)
	t.pending = append(buf[:0], buf[n:]...)

	return ps, nil
}

// Pending reports how many bytes of an incomplete record are buffered.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

// Close shuts the connection and stops any reconnect in progress.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed

	var err error
	if t.link != nil {
		err = t.link.close(true)
		t.link = nil
	}
	t.pending = nil
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.log.Info("closed")

	return err
}

func (t *Transport) usableLocked() error {
	switch t.state {
	case StateReconnecting:
		return ErrNotConnected
	case StateFailed:
		return ErrGaveUp
	case StateClosed:
		return ErrClosed
	}
	return nil
}

// dropLocked discards the broken link and starts reconnecting. Buffered bytes
// belong to the old stream and are discarded with it.
func (t *Transport) dropLocked(cause error) {
	_ = t.link.close(false)
	t.link = nil
	t.pending = nil

	if t.opts.ReconnectAttempts == 0 {
		t.state = StateFailed
		t.log.Error("connection lost", zap.Error(cause))
		return
	}

	t.state = StateReconnecting
	t.log.Warn("connection lost, reconnecting", zap.Error(cause))

	t.wg.Add(1)
	go t.reconnect()
}

func (t *Transport) reconnect() {
	defer t.wg.Done()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.opts.ReconnectInitialInterval
	eb.MaxInterval = t.opts.ReconnectMaxInterval
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, t.opts.ReconnectAttempts-1), t.ctx)

	attempt := 0
	var l link
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		l, err = t.dial(t.ctx)
		return err
	}, bo, func(err error, next time.Duration) {
		t.log.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt), zap.Duration("retry_in", next), zap.Error(err))
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		if err == nil {
			_ = l.close(false)
		}
		return
	}

	if err != nil {
		t.state = StateFailed
		t.log.Error("giving up reconnecting", zap.Int("attempts", attempt), zap.Error(err))
		return
	}

	t.link = l
	t.state = StateConnected
	t.log.Info("reconnected", zap.Int("attempts", attempt))
}
