// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

// AxisReading is one axis value as published on MQTT and streamed over
// websocket.
type AxisReading struct {
	Type  string `json:"type,omitempty"`
	Axis  string `json:"axis"`
	Value int16  `json:"value"`
	Seq   uint64 `json:"seq"`
	Time  string `json:"time"`
}
