// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus serialises register access to the accelerometer.
//
// Every caller (the watermark drain, device setup, on-demand register reads)
// goes through one Gate, which holds a single exclusive lock around each
// transport call. Waiting for the lock honours context cancellation, so a
// killed session never blocks forever behind a slow transfer.
package bus

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/accelstream/internal/accelerr"
)

// Transport is the raw register link to the device. Implementations do not
// need to be safe for concurrent use.
type Transport interface {
	ReadRegister(addr byte) (byte, error)
	WriteRegister(addr byte, data []byte) error
	ReadBurst(addr byte, n int) ([]byte, error)
}

// Gate guards a Transport with one interruptible exclusive lock.
type Gate struct {
	tr  Transport
	sem *semaphore.Weighted
}

// NewGate wraps tr.
func NewGate(tr Transport) *Gate {
	return &Gate{tr: tr, sem: semaphore.NewWeighted(1)}
}

func (g *Gate) lock(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrapf(accelerr.ErrInterrupted, "bus gate: %v", err)
	}
	return nil
}

func (g *Gate) unlock() { g.sem.Release(1) }

// ReadRegister reads one register.
func (g *Gate) ReadRegister(ctx context.Context, addr byte) (byte, error) {
	if err := g.lock(ctx); err != nil {
		return 0, err
	}
	defer g.unlock()

	v, err := g.tr.ReadRegister(addr)
	if err != nil {
		return 0, errors.Wrapf(accelerr.ErrTransport, "read register 0x%02X: %v", addr, err)
	}
	return v, nil
}

// WriteRegister writes one register.
func (g *Gate) WriteRegister(ctx context.Context, addr, value byte) error {
	if err := g.lock(ctx); err != nil {
		return err
	}
	defer g.unlock()

	if err := g.tr.WriteRegister(addr, []byte{value}); err != nil {
		return errors.Wrapf(accelerr.ErrTransport, "write register 0x%02X: %v", addr, err)
	}
	return nil
}

// ReadBurst reads n consecutive registers starting at addr in one transaction.
func (g *Gate) ReadBurst(ctx context.Context, addr byte, n int) ([]byte, error) {
	if err := g.lock(ctx); err != nil {
		return nil, err
	}
	defer g.unlock()

	b, err := g.tr.ReadBurst(addr, n)
	if err != nil {
		return nil, errors.Wrapf(accelerr.ErrTransport, "burst read 0x%02X+%d: %v", addr, n, err)
	}
	if len(b) != n {
		return nil, errors.Wrapf(accelerr.ErrTransport, "burst read 0x%02X: short read %d/%d", addr, len(b), n)
	}
	return b, nil
}
