// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package accelerr holds the error values shared by the accelerometer stack.
// Callers match them with errors.Is; producers wrap them with context.
package accelerr

import "github.com/pkg/errors"

var (
	// Bus
	ErrTransport = errors.New("transport_error")

	// Blocking waits
	ErrInterrupted = errors.New("interrupted")

	// Sessions
	ErrNotRegistered    = errors.New("not_registered")
	ErrDuplicateSession = errors.New("duplicate_session")
	ErrInvalidCommand   = errors.New("invalid_command")
	ErrInvalidLength    = errors.New("invalid_length")

	// Device lifecycle
	ErrAllocation       = errors.New("allocation_failure")
	ErrUnexpectedDevice = errors.New("unexpected_device")
	ErrDetached         = errors.New("detached")
)
