// Package driver runs the per-tick movement procedure: sample input, move the
// local participant, batch the codes and flush full batches to the server.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cs3238-tsuzu/movesync-online/internal/batch"
	"github.com/cs3238-tsuzu/movesync-online/internal/input"
	"github.com/cs3238-tsuzu/movesync-online/internal/logger"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
	"github.com/cs3238-tsuzu/movesync-online/internal/position"
	"github.com/cs3238-tsuzu/movesync-online/internal/transport"
)

// Link is the part of the transport the driver uses.
type Link interface {
	Send(ctx context.Context, batch []movement.Code) error
	PollRemotePositions() ([]movement.Position, error)
}

type Driver struct {
	input *input.State
	store *position.Store
	link  Link
	log   *zap.Logger

	batch  batch.Buffer
	active []movement.Intent
	stats  Stats
}

func New(in *input.State, store *position.Store, link Link, log *zap.Logger) *Driver {
	return &Driver{
		input:  in,
		store:  store,
		link:   link,
		log:    logger.OrNop(log).Named("driver"),
		active: make([]movement.Intent, 0, len(movement.Directions)),
	}
}

// Tick runs one frame of the movement procedure. Every active direction
// yields its own code, in fixed order; an idle tick yields a None code so
// batches keep flowing. A batch is sent the moment it fills up.
//
// A send error is returned as is and the batch is gone. The codes of this
// tick that came after the failed flush are not applied.
func (d *Driver) Tick(ctx context.Context) error {
	d.stats.ticks.Add(1)

	d.active = d.input.Active(d.active[:0])
	if len(d.active) == 0 {
		d.active = append(d.active, movement.None)
	}

	for _, intent := range d.active {
		code, delta := movement.Encode(intent)
		d.store.Move(delta)
		if err := d.batch.Push(code); err != nil {
			return fmt.Errorf("push %v: %w", intent, err)
		}
		d.stats.codes.Add(1)

		if d.batch.Full() {
			if err := d.flush(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func (d *Driver) flush(ctx context.Context) error {
	codes := d.batch.Drain()

	err := d.link.Send(ctx, codes)
	switch {
	case err == nil:
		d.stats.batchesSent.Add(1)
		d.log.Debug("batch sent", zap.Binary("codes", codes))
		return nil
	case errors.Is(err, transport.ErrNotConnected):
		d.stats.batchesDropped.Add(1)
	default:
		d.stats.sendFailures.Add(1)
	}

	return err
}

// Pending returns the codes of the batch being filled.
func (d *Driver) Pending() []movement.Code {
	return d.batch.Pending()
}

// Poll reads the remote positions queued on the link and, when a complete
// set arrived, replaces the store's remote collection with it.
func (d *Driver) Poll() error {
	ps, err := d.link.PollRemotePositions()
	if err != nil {
		return err
	}
	if len(ps) == 0 {
		return nil
	}

	d.store.ReplaceRemote(ps)
	d.stats.remoteUpdates.Add(1)
	d.stats.records.Add(uint64(len(ps)))

	return nil
}

// RunPoller calls Poll every interval until ctx is done or the link gives
// up. Transient errors are logged and polling continues.
func (d *Driver) RunPoller(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := d.Poll()
		switch {
		case err == nil, errors.Is(err, transport.ErrNotConnected):
		case errors.Is(err, transport.ErrGaveUp), errors.Is(err, transport.ErrClosed):
			return err
		default:
			d.log.Warn("poll failed", zap.Error(err))
		}
	}
}

func (d *Driver) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}
