// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"context"

	"github.com/pkg/errors"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/directory"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// Session is a handle on one registered caller.
type Session struct {
	dev *Device
	id  directory.SessionID
}

// Open registers id with the X axis selected. An id that is already open is
// rejected with ErrDuplicateSession. Open never leaves a record behind on a
// detached device.
func (d *Device) Open(ctx context.Context, id directory.SessionID) (*Session, error) {
	if d.isClosed() {
		return nil, accelerr.ErrDetached
	}
	if err := d.dir.Register(ctx, id); err != nil {
		return nil, err
	}
	if d.isClosed() {
		// Detach closed the device while we registered. Its drain may have
		// run before our insert, so back the record out ourselves.
		_ = d.dir.Unregister(context.Background(), id)
		return nil, accelerr.ErrDetached
	}
	d.logger.Debugw("session opened", "session", id)
	return &Session{dev: d, id: id}, nil
}

// Read returns n bytes for session id: two per queued sample, taken from the
// session's selected axis, little-endian. It blocks while the queue is empty
// and fails with ErrInterrupted when ctx is done or the device is detached.
// Bytes gathered before an interruption are discarded.
func (d *Device) Read(ctx context.Context, id directory.SessionID, n int) ([]byte, error) {
	b, _, err := d.read(ctx, id, n)
	return b, err
}

// ReadReading reads one sample for session id and returns the axis it was
// taken from together with its value. The axis is the one in effect when the
// sample was popped, so a concurrent SelectAxis cannot mislabel the value.
func (d *Device) ReadReading(ctx context.Context, id directory.SessionID) (sample.Axis, int16, error) {
	b, axis, err := d.read(ctx, id, 2)
	if err != nil {
		return 0, 0, err
	}
	return axis, sample.Int16FromAxisBytes(b), nil
}

// read also reports the axis the last sample was taken from.
func (d *Device) read(ctx context.Context, id directory.SessionID, n int) ([]byte, sample.Axis, error) {
	if d.isClosed() {
		return nil, 0, accelerr.ErrDetached
	}
	rec, err := d.dir.Find(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if n < 0 || n%2 != 0 {
		return nil, 0, errors.Wrapf(accelerr.ErrInvalidLength, "read %d bytes", n)
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		// Take the wake channel before checking the queue so a broadcast
		// between the two is not missed.
		wake := d.notify.Wait()
		s, ok := d.queue.TryPop()
		if !ok {
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return nil, 0, errors.Wrapf(accelerr.ErrInterrupted, "session %q: %v", id, ctx.Err())
			case <-d.closed:
				return nil, 0, errors.Wrapf(accelerr.ErrInterrupted, "session %q: device detached", id)
			}
		}

		rec, err = d.dir.Find(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		b := s.AxisBytes(rec.Axis)
		out = append(out, b[:]...)
	}
	return out, rec.Axis, nil
}

// Control applies cmd to session id only.
func (d *Device) Control(ctx context.Context, id directory.SessionID, cmd Command) error {
	if d.isClosed() {
		return accelerr.ErrDetached
	}
	switch cmd.Op {
	case OpSelectAxis:
		if _, ok := sample.ParseAxis(uint8(cmd.Axis)); !ok {
			return errors.Wrapf(accelerr.ErrInvalidCommand, "axis %d", cmd.Axis)
		}
		if err := d.dir.SetAxis(ctx, id, cmd.Axis); err != nil {
			return err
		}
		d.logger.Debugw("axis selected", "session", id, "axis", cmd.Axis.String())
		return nil
	default:
		return errors.Wrapf(accelerr.ErrInvalidCommand, "op %d", cmd.Op)
	}
}

// ControlCode decodes a numeric control code and applies it.
func (d *Device) ControlCode(ctx context.Context, id directory.SessionID, code uint32) error {
	cmd, err := ParseCommand(code)
	if err != nil {
		return err
	}
	return d.Control(ctx, id, cmd)
}

// Close removes session id. Closing after detach is a no-op since detach
// already dropped every session.
func (d *Device) Close(ctx context.Context, id directory.SessionID) error {
	if d.isClosed() {
		return nil
	}
	if err := d.dir.Unregister(ctx, id); err != nil {
		return err
	}
	d.logger.Debugw("session closed", "session", id)
	return nil
}

// Axis returns the axis session id currently reads.
func (d *Device) Axis(ctx context.Context, id directory.SessionID) (sample.Axis, error) {
	rec, err := d.dir.Find(ctx, id)
	if err != nil {
		return 0, err
	}
	return rec.Axis, nil
}

// ID returns the session identity.
func (s *Session) ID() directory.SessionID { return s.id }

// Read reads n bytes of the selected axis.
func (s *Session) Read(ctx context.Context, n int) ([]byte, error) {
	return s.dev.Read(ctx, s.id, n)
}

// ReadValue reads one sample's value of the selected axis.
func (s *Session) ReadValue(ctx context.Context) (int16, error) {
	b, err := s.dev.Read(ctx, s.id, 2)
	if err != nil {
		return 0, err
	}
	return sample.Int16FromAxisBytes(b), nil
}

// ReadReading reads one sample and the axis it was taken from.
func (s *Session) ReadReading(ctx context.Context) (sample.Axis, int16, error) {
	return s.dev.ReadReading(ctx, s.id)
}

// SelectAxis switches the session to axis a.
func (s *Session) SelectAxis(ctx context.Context, a sample.Axis) error {
	return s.dev.Control(ctx, s.id, SelectAxis(a))
}

// Control applies a numeric control code.
func (s *Session) Control(ctx context.Context, code uint32) error {
	return s.dev.ControlCode(ctx, s.id, code)
}

// Axis returns the selected axis.
func (s *Session) Axis(ctx context.Context) (sample.Axis, error) {
	return s.dev.Axis(ctx, s.id)
}

// Close releases the session.
func (s *Session) Close(ctx context.Context) error {
	return s.dev.Close(ctx, s.id)
}
