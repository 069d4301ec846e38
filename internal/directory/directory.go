// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package directory maps live sessions to the axis each one reads.
package directory

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// SessionID identifies one caller session. It is unique among live records.
type SessionID string

// Record binds a session to its selected axis.
type Record struct {
	ID   SessionID
	Axis sample.Axis
}

// Directory is the set of live records. Every operation takes one exclusive
// lock; waiting for it is abandoned when ctx is done.
type Directory struct {
	sem  *semaphore.Weighted
	recs map[SessionID]Record
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{
		sem:  semaphore.NewWeighted(1),
		recs: map[SessionID]Record{},
	}
}

func (d *Directory) lock(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrapf(accelerr.ErrInterrupted, "directory: %v", err)
	}
	return nil
}

func (d *Directory) unlock() { d.sem.Release(1) }

// Register creates the record for id with the X axis selected. An id that
// already has a live record is rejected.
func (d *Directory) Register(ctx context.Context, id SessionID) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	if _, ok := d.recs[id]; ok {
		return errors.Wrapf(accelerr.ErrDuplicateSession, "session %q", id)
	}
	d.recs[id] = Record{ID: id, Axis: sample.AxisX}
	return nil
}

// Find returns a copy of the record for id.
func (d *Directory) Find(ctx context.Context, id SessionID) (Record, error) {
	if err := d.lock(ctx); err != nil {
		return Record{}, err
	}
	defer d.unlock()

	rec, ok := d.recs[id]
	if !ok {
		return Record{}, errors.Wrapf(accelerr.ErrNotRegistered, "session %q", id)
	}
	return rec, nil
}

// SetAxis changes the axis of id's own record.
func (d *Directory) SetAxis(ctx context.Context, id SessionID, axis sample.Axis) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	rec, ok := d.recs[id]
	if !ok {
		return errors.Wrapf(accelerr.ErrNotRegistered, "session %q", id)
	}
	rec.Axis = axis
	d.recs[id] = rec
	return nil
}

// Unregister removes id's record.
func (d *Directory) Unregister(ctx context.Context, id SessionID) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	if _, ok := d.recs[id]; !ok {
		return errors.Wrapf(accelerr.ErrNotRegistered, "session %q", id)
	}
	delete(d.recs, id)
	return nil
}

// DrainAll removes every record and reports how many there were. It is used
// on device teardown and waits for the lock unconditionally.
func (d *Directory) DrainAll() int {
	_ = d.sem.Acquire(context.Background(), 1)
	defer d.unlock()

	n := len(d.recs)
	d.recs = map[SessionID]Record{}
	return n
}

// Sessions lists the live session ids in sorted order.
func (d *Directory) Sessions(ctx context.Context) ([]SessionID, error) {
	if err := d.lock(ctx); err != nil {
		return nil, err
	}
	defer d.unlock()

	ids := lo.Keys(d.recs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
