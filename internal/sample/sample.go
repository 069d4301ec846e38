// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sample

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Size is the length of one burst read: two little-endian bytes per axis.
const Size = 6

// Sample represents a single raw accelerometer reading.
type Sample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Decode converts one 6-byte burst (DATAX0..DATAZ1) into a Sample.
func Decode(b []byte) (Sample, error) {
	if len(b) < Size {
		return Sample{}, errors.Errorf("sample: need %d bytes, got %d", Size, len(b))
	}
	return Sample{
		X: int16(binary.LittleEndian.Uint16(b[0:2])),
		Y: int16(binary.LittleEndian.Uint16(b[2:4])),
		Z: int16(binary.LittleEndian.Uint16(b[4:6])),
	}, nil
}

// Bytes is the inverse of Decode.
func (s Sample) Bytes() [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(s.X))
	binary.LittleEndian.PutUint16(b[2:4], uint16(s.Y))
	binary.LittleEndian.PutUint16(b[4:6], uint16(s.Z))
	return b
}

// Value returns the reading for one axis.
func (s Sample) Value(a Axis) int16 {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	default:
		return s.X
	}
}

// AxisBytes returns the two bytes of one axis, low byte first.
func (s Sample) AxisBytes(a Axis) [2]byte {
	raw := s.Bytes()
	return [2]byte{raw[a], raw[a+1]}
}

func (s Sample) String() string {
	return fmt.Sprintf("X:%d Y:%d Z:%d", s.X, s.Y, s.Z)
}

// Axis selects one component of a Sample. The numeric values are the byte
// offsets of the axis inside a burst and double as the control-command wire
// encoding.
type Axis uint8

const (
	AxisX Axis = 0
	AxisY Axis = 2
	AxisZ Axis = 4
)

// Axes lists every axis in burst order.
var Axes = []Axis{AxisX, AxisY, AxisZ}

// ParseAxis validates a wire code.
func ParseAxis(code uint8) (Axis, bool) {
	switch Axis(code) {
	case AxisX, AxisY, AxisZ:
		return Axis(code), true
	}
	return 0, false
}

// AxisByName accepts "x", "y" or "z" in any case.
func AxisByName(name string) (Axis, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "x":
		return AxisX, true
	case "y":
		return AxisY, true
	case "z":
		return AxisZ, true
	}
	return 0, false
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}

// Int16FromAxisBytes reassembles the value carried by a 2-byte read.
func Int16FromAxisBytes(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}
