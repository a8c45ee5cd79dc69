package driver

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// Stats counts driver activity. Ticks and sends happen on the render
// goroutine while remote updates come from the poller.
type Stats struct {
	ticks          atomic.Uint64
	codes          atomic.Uint64
	batchesSent    atomic.Uint64
	batchesDropped atomic.Uint64 // dropped while reconnecting
	sendFailures   atomic.Uint64
	remoteUpdates  atomic.Uint64
	records        atomic.Uint64
}

type StatsSnapshot struct {
	Ticks          uint64 `json:"ticks"`
	Codes          uint64 `json:"codes"`
	BatchesSent    uint64 `json:"batches_sent"`
	BatchesDropped uint64 `json:"batches_dropped"`
	SendFailures   uint64 `json:"send_failures"`
	RemoteUpdates  uint64 `json:"remote_updates"`
	Records        uint64 `json:"records"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:          s.ticks.Load(),
		Codes:          s.codes.Load(),
		BatchesSent:    s.batchesSent.Load(),
		BatchesDropped: s.batchesDropped.Load(),
		SendFailures:   s.sendFailures.Load(),
		RemoteUpdates:  s.remoteUpdates.Load(),
		Records:        s.records.Load(),
	}
}

func (s StatsSnapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("ticks", s.Ticks)
	enc.AddUint64("codes", s.Codes)
	enc.AddUint64("batches_sent", s.BatchesSent)
	enc.AddUint64("batches_dropped", s.BatchesDropped)
	enc.AddUint64("send_failures", s.SendFailures)
	enc.AddUint64("remote_updates", s.RemoteUpdates)
	enc.AddUint64("records", s.Records)
	return nil
}
