// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package adxl345 describes the ADXL345 register set and the configuration
// written at bring-up.
package adxl345

import "github.com/pkg/errors"

// Register addresses.
const (
	RegDevID      byte = 0x00
	RegBWRate     byte = 0x2C
	RegPowerCtl   byte = 0x2D
	RegIntEnable  byte = 0x2E
	RegIntMap     byte = 0x2F
	RegIntSource  byte = 0x30
	RegDataFormat byte = 0x31
	RegDataX0     byte = 0x32
	RegFIFOCtl    byte = 0x38
	RegFIFOStatus byte = 0x39
)

// DeviceID is the fixed DEVID value of an ADXL345.
const DeviceID byte = 0xE5

// Register values.
const (
	Rate100Hz byte = 0x0A

	PowerMeasure byte = 1 << 3
	PowerStandby byte = 0x00

	IntWatermark byte = 1 << 1

	fifoModeStream byte = 0x2 << 6
	fifoSamplesMax      = 0x1F
)

// DefaultWatermark is the FIFO depth that raises the watermark interrupt.
const DefaultWatermark = 20

// Config selects the bring-up values.
type Config struct {
	RateCode  byte // BW_RATE
	Range     byte // DATA_FORMAT range bits, 0=±2g .. 3=±16g
	Watermark int  // FIFO entries per interrupt, 1..31
}

// DefaultConfig returns 100 Hz, ±2 g and a 20-sample watermark.
func DefaultConfig() Config {
	return Config{RateCode: Rate100Hz, Range: 0, Watermark: DefaultWatermark}
}

// Validate checks the ranges the hardware accepts.
func (c Config) Validate() error {
	if c.RateCode > 0x0F {
		return errors.Errorf("rate code 0x%02X out of range (0x00-0x0F)", c.RateCode)
	}
	if c.Range > 3 {
		return errors.Errorf("range %d out of range (0-3)", c.Range)
	}
	if c.Watermark < 1 || c.Watermark > fifoSamplesMax {
		return errors.Errorf("watermark %d out of range (1-%d)", c.Watermark, fifoSamplesMax)
	}
	return nil
}

// RegPair is one register write of the setup sequence.
type RegPair struct {
	Reg   byte
	Value byte
}

// SetupSequence returns the ordered writes that bring the device up: rate,
// interrupt enable, data format, FIFO stream mode with the watermark depth,
// and finally measurement mode.
func (c Config) SetupSequence() []RegPair {
	return []RegPair{
		{Reg: RegBWRate, Value: c.RateCode},
		{Reg: RegIntEnable, Value: IntWatermark},
		{Reg: RegDataFormat, Value: c.Range & 0x03},
		{Reg: RegFIFOCtl, Value: fifoModeStream | byte(c.Watermark)&fifoSamplesMax},
		{Reg: RegPowerCtl, Value: PowerMeasure},
	}
}

// OutputRateHz converts a BW_RATE code to the output data rate. Code 0x0F is
// 3200 Hz and each step down halves it.
func OutputRateHz(code byte) float64 {
	code &= 0x0F
	return 3200 / float64(uint(1)<<(0x0F-code))
}
