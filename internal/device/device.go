// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device ties one ADXL345 to its sample queue and session directory.
//
// A Device owns the bus gate, the queue, the wake-up notifier and the
// directory. The watermark signal only posts a token; a single acquisition
// goroutine drains the chip FIFO into the queue and wakes blocked readers.
package device

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/bus"
	"github.com/relabs-tech/accelstream/internal/directory"
	"github.com/relabs-tech/accelstream/internal/irq"
	"github.com/relabs-tech/accelstream/internal/queue"
)

// Options configures Attach. Zero values select the defaults.
type Options struct {
	Config        adxl345.Config
	QueueCapacity int
	// ExpectedDeviceID is compared against DEVID at attach; 0 skips the check.
	ExpectedDeviceID byte
	Logger           *zap.SugaredLogger
}

// Stats is a snapshot of the device counters.
type Stats struct {
	Accepted      uint64 `json:"accepted"`
	Dropped       uint64 `json:"dropped"`
	BurstFailures uint64 `json:"burst_failures"`
	Watermarks    uint64 `json:"watermarks"`
	Spurious      uint64 `json:"spurious"`
	Wakes         uint64 `json:"wakes"`
	Queued        int    `json:"queued"`
	Capacity      int    `json:"capacity"`
	Sessions      int    `json:"sessions"`
}

// Device is one attached accelerometer.
type Device struct {
	logger *zap.SugaredLogger
	cfg    adxl345.Config

	gate   *bus.Gate
	src    irq.Source
	queue  *queue.Queue
	notify *queue.Notifier
	dir    *directory.Directory

	signal        chan struct{}
	cancelWorkers context.CancelFunc
	workers       sync.WaitGroup

	detachMu sync.Mutex
	closed   chan struct{}

	accepted      atomic.Uint64
	dropped       atomic.Uint64
	burstFailures atomic.Uint64
	watermarks    atomic.Uint64
	spurious      atomic.Uint64
	wakes         atomic.Uint64
}

// Attach identifies the chip, writes the setup sequence, starts the
// acquisition goroutine and arms the watermark signal. A failed setup write
// aborts attach with that error.
func Attach(ctx context.Context, tr bus.Transport, src irq.Source, opts Options) (*Device, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg := opts.Config
	if cfg == (adxl345.Config{}) {
		cfg = adxl345.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "adxl345 config")
	}
	capacity := opts.QueueCapacity
	if capacity == 0 {
		capacity = queue.DefaultCapacity
	}
	if capacity < 0 {
		return nil, errors.Wrapf(accelerr.ErrAllocation, "queue capacity %d", capacity)
	}

	d := &Device{
		logger: logger,
		cfg:    cfg,
		gate:   bus.NewGate(tr),
		src:    src,
		queue:  queue.New(capacity),
		notify: queue.NewNotifier(),
		dir:    directory.New(),
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	if err := d.identify(ctx, opts.ExpectedDeviceID); err != nil {
		return nil, err
	}
	if err := d.setup(ctx); err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	d.cancelWorkers = cancel
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		d.acquire(workerCtx)
	}()

	if err := src.Arm(d.post); err != nil {
		cancel()
		d.workers.Wait()
		err = errors.Wrap(err, "arm watermark signal")
		return nil, multierr.Append(err, d.powerDown(ctx))
	}

	logger.Infow("device attached",
		"transport", tr,
		"rate_code", cfg.RateCode,
		"range", cfg.Range,
		"watermark", cfg.Watermark,
		"queue_capacity", capacity)
	return d, nil
}

func (d *Device) identify(ctx context.Context, expected byte) error {
	id, err := d.gate.ReadRegister(ctx, adxl345.RegDevID)
	if err != nil {
		return errors.Wrap(err, "read DEVID")
	}
	d.logger.Infof("DEVID 0x%02X", id)
	if expected != 0 && id != expected {
		return errors.Wrapf(accelerr.ErrUnexpectedDevice, "DEVID 0x%02X, want 0x%02X", id, expected)
	}
	return nil
}

func (d *Device) setup(ctx context.Context) error {
	for _, p := range d.cfg.SetupSequence() {
		if err := d.gate.WriteRegister(ctx, p.Reg, p.Value); err != nil {
			return errors.Wrapf(err, "setup 0x%02X", p.Reg)
		}
		got, err := d.gate.ReadRegister(ctx, p.Reg)
		if err != nil {
			return errors.Wrapf(err, "setup read-back 0x%02X", p.Reg)
		}
		d.logger.Debugf("setup reg 0x%02X wrote 0x%02X read 0x%02X", p.Reg, p.Value, got)
	}
	return nil
}

func (d *Device) powerDown(ctx context.Context) error {
	if err := d.gate.WriteRegister(ctx, adxl345.RegPowerCtl, adxl345.PowerStandby); err != nil {
		return errors.Wrap(err, "power down")
	}
	return nil
}

// Detach quiesces the signal, stops acquisition, powers the chip down and
// drops every session. Blocked reads return ErrInterrupted. All steps run
// even when an earlier one fails.
func (d *Device) Detach(ctx context.Context) error {
	d.detachMu.Lock()
	defer d.detachMu.Unlock()
	if d.isClosed() {
		return accelerr.ErrDetached
	}

	var err error
	if e := d.src.Disarm(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "disarm watermark signal"))
	}
	d.cancelWorkers()
	d.workers.Wait()

	err = multierr.Append(err, d.powerDown(ctx))

	// Close before draining: an Open that registers after DrainAll sees
	// the device closed and backs its record out.
	close(d.closed)
	n := d.dir.DrainAll()
	d.notify.Broadcast()

	d.logger.Infow("device detached", "dropped_sessions", n, "error", err)
	return err
}

func (d *Device) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// Config returns the configuration written at attach.
func (d *Device) Config() adxl345.Config { return d.cfg }

// Stats returns the current counters.
func (d *Device) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Accepted:      d.accepted.Load(),
		Dropped:       d.dropped.Load(),
		BurstFailures: d.burstFailures.Load(),
		Watermarks:    d.watermarks.Load(),
		Spurious:      d.spurious.Load(),
		Wakes:         d.wakes.Load(),
		Queued:        d.queue.Len(),
		Capacity:      d.queue.Cap(),
	}
	ids, err := d.dir.Sessions(ctx)
	if err != nil {
		return st, err
	}
	st.Sessions = len(ids)
	return st, nil
}

// Sessions lists the live session ids.
func (d *Device) Sessions(ctx context.Context) ([]directory.SessionID, error) {
	return d.dir.Sessions(ctx)
}

// ReadRegister reads one register through the bus gate.
func (d *Device) ReadRegister(ctx context.Context, addr byte) (byte, error) {
	if d.isClosed() {
		return 0, accelerr.ErrDetached
	}
	return d.gate.ReadRegister(ctx, addr)
}

// WriteRegister writes one register through the bus gate.
func (d *Device) WriteRegister(ctx context.Context, addr, value byte) error {
	if d.isClosed() {
		return accelerr.ErrDetached
	}
	return d.gate.WriteRegister(ctx, addr, value)
}
