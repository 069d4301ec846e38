// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"context"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// post is the watermark handler. It never blocks: signals that arrive while a
// drain is pending coalesce into one token.
func (d *Device) post() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *Device) acquire(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.signal:
			d.drain(ctx)
		}
	}
}

// drain performs one watermark's worth of burst reads, queues each sample in
// order and wakes readers once. A failed burst is logged and skipped. A signal
// that finds the watermark bit clear in INT_SOURCE is counted and ignored.
func (d *Device) drain(ctx context.Context) {
	src, err := d.gate.ReadRegister(ctx, adxl345.RegIntSource)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		d.logger.Warnw("INT_SOURCE read failed, draining anyway", "error", err)
	case src&adxl345.IntWatermark == 0:
		d.spurious.Inc()
		return
	}

	d.watermarks.Inc()
	for i := 0; i < d.cfg.Watermark; i++ {
		raw, err := d.gate.ReadBurst(ctx, adxl345.RegDataX0, sample.Size)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.burstFailures.Inc()
			d.logger.Warnw("burst read failed", "slot", i, "error", err)
			continue
		}
		s, err := sample.Decode(raw)
		if err != nil {
			d.burstFailures.Inc()
			d.logger.Warnw("burst decode failed", "slot", i, "error", err)
			continue
		}
		if d.queue.Push(s) {
			d.accepted.Inc()
		} else {
			d.dropped.Inc()
		}
	}
	d.notify.Broadcast()
	d.wakes.Inc()
}
