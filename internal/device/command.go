// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// Control codes use the Linux ioctl layout: dir<<30 | size<<16 | type<<8 | nr.
// Axis selection is a write of one byte with type 10 and the axis wire code
// as nr.
const (
	iocWrite     = 1
	iocType      = 10
	iocArgSize   = 1
	iocNRBits    = 8
	iocTypeBits  = 8
	iocSizeBits  = 14
	iocTypeShift = iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// Op is a control operation.
type Op uint8

const (
	OpSelectAxis Op = iota + 1
)

func (o Op) String() string {
	switch o {
	case OpSelectAxis:
		return "select_axis"
	default:
		return "unknown"
	}
}

// Command is one control request.
type Command struct {
	Op   Op
	Axis sample.Axis
}

// SelectAxis returns the command that switches a session to axis a.
func SelectAxis(a sample.Axis) Command {
	return Command{Op: OpSelectAxis, Axis: a}
}

// SelectAxisCode returns the numeric control code for selecting axis a.
func SelectAxisCode(a sample.Axis) uint32 {
	return iocWrite<<iocDirShift | iocArgSize<<iocSizeShift | iocType<<iocTypeShift | uint32(a)
}

// ParseCommand decodes a numeric control code.
func ParseCommand(code uint32) (Command, error) {
	dir := code >> iocDirShift
	size := (code >> iocSizeShift) & (1<<iocSizeBits - 1)
	typ := (code >> iocTypeShift) & (1<<iocTypeBits - 1)
	if dir != iocWrite || size != iocArgSize || typ != iocType {
		return Command{}, errors.Wrapf(accelerr.ErrInvalidCommand, "code 0x%08X", code)
	}
	axis, ok := sample.ParseAxis(uint8(code & (1<<iocNRBits - 1)))
	if !ok {
		return Command{}, errors.Wrapf(accelerr.ErrInvalidCommand, "code 0x%08X: no axis %d", code, code&0xFF)
	}
	return SelectAxis(axis), nil
}
