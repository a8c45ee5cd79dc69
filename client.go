package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cs3238-tsuzu/movesync-online/internal/config"
	"github.com/cs3238-tsuzu/movesync-online/internal/driver"
	"github.com/cs3238-tsuzu/movesync-online/internal/input"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
	"github.com/cs3238-tsuzu/movesync-online/internal/position"
	"github.com/cs3238-tsuzu/movesync-online/internal/transport"
)

// Client ties the connection, the position store and the driver together
// and keeps remote positions fresh in the background.
type Client struct {
	transport *transport.Transport
	store     *position.Store
	input     *input.State
	driver    *driver.Driver
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	pollErr     error
	pollErrLock sync.Mutex
}

func NewClient(ctx context.Context, cfg config.Client, log *zap.Logger) (*Client, error) {
	tr, err := transport.Dial(ctx, transport.Options{
		Addr:                 cfg.Addr,
		DialTimeout:          cfg.DialTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		PollWait:             cfg.PollWait,
		ReconnectAttempts:    cfg.ReconnectAttempts,
		ReconnectMaxInterval: cfg.ReconnectMaxInterval,
		Logger:               log,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport: tr,
		store:     position.NewStore(movement.Position{}),
		input:     &input.State{},
		log:       log,
	}
	c.driver = driver.New(c.input, c.store, tr, log)

	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.pollHandler(pollCtx, cfg)

	return c, nil
}

func (c *Client) pollHandler(ctx context.Context, cfg config.Client) {
	defer c.wg.Done()

	err := c.driver.RunPoller(ctx, cfg.PollInterval)
	if errors.Is(err, context.Canceled) {
		return
	}

	c.pollErrLock.Lock()
	c.pollErr = err
	c.pollErrLock.Unlock()
}

// Tick runs one frame. Transient send failures are logged; an error is
// returned only when the connection is gone for good.
func (c *Client) Tick(ctx context.Context) error {
	err := c.driver.Tick(ctx)
	switch {
	case err == nil, errors.Is(err, transport.ErrNotConnected):
	case errors.Is(err, transport.ErrGaveUp), errors.Is(err, transport.ErrClosed):
		return err
	default:
		c.log.Warn("tick failed", zap.Error(err))
	}

	c.pollErrLock.Lock()
	defer c.pollErrLock.Unlock()

	if c.pollErr != nil {
		return fmt.Errorf("poller stopped: %w", c.pollErr)
	}
	return nil
}

func (c *Client) Input() *input.State { return c.input }

func (c *Client) Local() movement.Position { return c.store.Local() }

func (c *Client) Remote() []movement.Position { return c.store.Remote() }

func (c *Client) State() transport.State { return c.transport.State() }

func (c *Client) Stats() driver.StatsSnapshot { return c.driver.Stats() }

func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()

	return c.transport.Close()
}
