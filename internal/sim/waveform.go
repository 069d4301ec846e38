// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"math"

	"github.com/relabs-tech/accelstream/internal/sample"
)

// Waveform generates smooth changing samples, roughly ±1 g at 256 LSB/g with
// gravity on Z.
type Waveform struct {
	rateHz float64
	n      int
}

// NewWaveform steps time at rateHz per sample.
func NewWaveform(rateHz float64) *Waveform {
	if rateHz <= 0 {
		rateHz = 100
	}
	return &Waveform{rateHz: rateHz}
}

// Next returns the next sample.
func (w *Waveform) Next() sample.Sample {
	t := float64(w.n) / w.rateHz
	w.n++
	return sample.Sample{
		X: int16(200 * math.Sin(t)),
		Y: int16(150 * math.Cos(t*0.7)),
		Z: int16(256 + 20*math.Sin(t*3)),
	}
}
