// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adxl345

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register metadata for the register debug tool.
type RegisterInfo struct {
	Addr        byte       `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for the ADXL345 registers this driver touches
// plus the rest of the control block.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Addr: 0x00, Name: "DEVID", Description: "Device ID", Access: "R", Default: "0xE5"},

		// Tap / activity
		{Addr: 0x1D, Name: "THRESH_TAP", Description: "Tap threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x1E, Name: "OFSX", Description: "X-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x1F, Name: "OFSY", Description: "Y-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x20, Name: "OFSZ", Description: "Z-axis offset (15.6 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x21, Name: "DUR", Description: "Tap duration (625 us/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x22, Name: "LATENT", Description: "Tap latency (1.25 ms/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x23, Name: "WINDOW", Description: "Tap window (1.25 ms/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x24, Name: "THRESH_ACT", Description: "Activity threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x25, Name: "THRESH_INACT", Description: "Inactivity threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x26, Name: "TIME_INACT", Description: "Inactivity time (1 s/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x27, Name: "ACT_INACT_CTL", Description: "Axis enable for activity/inactivity", Access: "RW", Default: "0x00"},
		{Addr: 0x28, Name: "THRESH_FF", Description: "Free-fall threshold (62.5 mg/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x29, Name: "TIME_FF", Description: "Free-fall time (5 ms/LSB)", Access: "RW", Default: "0x00"},
		{Addr: 0x2A, Name: "TAP_AXES", Description: "Axis control for tap", Access: "RW", Default: "0x00"},
		{Addr: 0x2B, Name: "ACT_TAP_STATUS", Description: "Source of tap/activity", Access: "R", Default: "0x00"},

		// Control
		{Addr: 0x2C, Name: "BW_RATE", Description: "Data rate and power mode", Access: "RW", Default: "0x0A",
			BitFields: []BitField{
				{Bits: "4", Name: "LOW_POWER", Description: "Reduced power operation", Values: "0=Normal, 1=Low power"},
				{Bits: "3:0", Name: "RATE", Description: "Output data rate", Values: "0x0A=100Hz, 0x0B=200Hz, 0x0C=400Hz, 0x0F=3200Hz"},
			}},
		{Addr: 0x2D, Name: "POWER_CTL", Description: "Power-saving features", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "LINK", Description: "Link activity and inactivity"},
				{Bits: "4", Name: "AUTO_SLEEP", Description: "Auto sleep"},
				{Bits: "3", Name: "MEASURE", Description: "Measurement mode", Values: "0=Standby, 1=Measure"},
				{Bits: "2", Name: "SLEEP", Description: "Sleep mode"},
				{Bits: "1:0", Name: "WAKEUP", Description: "Reading frequency in sleep", Values: "0=8Hz, 1=4Hz, 2=2Hz, 3=1Hz"},
			}},
		{Addr: 0x2E, Name: "INT_ENABLE", Description: "Interrupt enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DATA_READY", Description: "Data ready"},
				{Bits: "6", Name: "SINGLE_TAP", Description: "Single tap"},
				{Bits: "5", Name: "DOUBLE_TAP", Description: "Double tap"},
				{Bits: "4", Name: "ACTIVITY", Description: "Activity"},
				{Bits: "3", Name: "INACTIVITY", Description: "Inactivity"},
				{Bits: "2", Name: "FREE_FALL", Description: "Free fall"},
				{Bits: "1", Name: "WATERMARK", Description: "FIFO watermark"},
				{Bits: "0", Name: "OVERRUN", Description: "FIFO overrun"},
			}},
		{Addr: 0x2F, Name: "INT_MAP", Description: "Interrupt mapping (1 = INT2)", Access: "RW", Default: "0x00"},
		{Addr: 0x30, Name: "INT_SOURCE", Description: "Source of interrupts", Access: "R", Default: "0x02"},
		{Addr: 0x31, Name: "DATA_FORMAT", Description: "Data format control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SELF_TEST", Description: "Self-test force"},
				{Bits: "6", Name: "SPI", Description: "SPI wire mode", Values: "0=4-wire, 1=3-wire"},
				{Bits: "5", Name: "INT_INVERT", Description: "Interrupt polarity", Values: "0=Active high, 1=Active low"},
				{Bits: "3", Name: "FULL_RES", Description: "Full resolution"},
				{Bits: "2", Name: "JUSTIFY", Description: "Left justified"},
				{Bits: "1:0", Name: "RANGE", Description: "g range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},

		// Data
		{Addr: 0x32, Name: "DATAX0", Description: "X-axis data, low byte", Access: "R"},
		{Addr: 0x33, Name: "DATAX1", Description: "X-axis data, high byte", Access: "R"},
		{Addr: 0x34, Name: "DATAY0", Description: "Y-axis data, low byte", Access: "R"},
		{Addr: 0x35, Name: "DATAY1", Description: "Y-axis data, high byte", Access: "R"},
		{Addr: 0x36, Name: "DATAZ0", Description: "Z-axis data, low byte", Access: "R"},
		{Addr: 0x37, Name: "DATAZ1", Description: "Z-axis data, high byte", Access: "R"},

		// FIFO
		{Addr: 0x38, Name: "FIFO_CTL", Description: "FIFO control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Trigger"},
				{Bits: "5", Name: "TRIGGER", Description: "Trigger event to INT2"},
				{Bits: "4:0", Name: "SAMPLES", Description: "Watermark depth"},
			}},
		{Addr: 0x39, Name: "FIFO_STATUS", Description: "FIFO status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "FIFO_TRIG", Description: "Trigger event occurred"},
				{Bits: "5:0", Name: "ENTRIES", Description: "Entries in the FIFO"},
			}},
	}
}

// IsWritable reports whether the register debug tool may write addr.
func IsWritable(addr byte) bool {
	for _, r := range RegisterMap() {
		if r.Addr == addr {
			return r.Access == "RW"
		}
	}
	return false
}
