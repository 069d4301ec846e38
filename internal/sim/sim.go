// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a simulated ADXL345: a register file and on-chip FIFO behind
// the bus.Transport interface, plus the watermark signal behind irq.Source.
// It lets the whole stack run without hardware.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// fifoDepth is the on-chip FIFO size.
const fifoDepth = 32

// ErrInjected is returned by injected transport failures.
var ErrInjected = errors.New("sim: injected bus failure")

// Device is a simulated accelerometer.
type Device struct {
	mu         sync.Mutex
	regs       [0x40]byte
	fifo       []sample.Sample
	writes     []adxl345.RegPair
	failBursts int
	failWrite  map[byte]bool

	sigMu   sync.Mutex // serialises handler calls
	handler func()
	fired   int
}

// New returns a powered-down device answering DEVID 0xE5.
func New() *Device {
	d := &Device{failWrite: map[byte]bool{}}
	d.regs[adxl345.RegDevID] = adxl345.DeviceID
	return d
}

// SetDeviceID overrides the DEVID register.
func (d *Device) SetDeviceID(id byte) {
	d.mu.Lock()
	d.regs[adxl345.RegDevID] = id
	d.mu.Unlock()
}

// ReadRegister implements bus.Transport.
func (d *Device) ReadRegister(addr byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(addr) >= len(d.regs) {
		return 0, errors.Errorf("sim: no register 0x%02X", addr)
	}
	switch addr {
	case adxl345.RegFIFOStatus:
		return byte(len(d.fifo)), nil
	case adxl345.RegIntSource:
		if len(d.fifo) >= d.watermarkLocked() {
			return adxl345.IntWatermark, nil
		}
		return 0, nil
	}
	return d.regs[addr], nil
}

// WriteRegister implements bus.Transport.
func (d *Device) WriteRegister(addr byte, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite[addr] {
		return errors.Wrapf(ErrInjected, "write 0x%02X", addr)
	}
	for i, b := range data {
		r := addr + byte(i)
		if int(r) >= len(d.regs) {
			return errors.Errorf("sim: no register 0x%02X", r)
		}
		if r == adxl345.RegDevID {
			continue
		}
		d.regs[r] = b
		d.writes = append(d.writes, adxl345.RegPair{Reg: r, Value: b})
	}
	return nil
}

// ReadBurst implements bus.Transport. A 6-byte read from DATAX0 pops one FIFO
// entry; an empty FIFO reads as the last output registers.
func (d *Device) ReadBurst(addr byte, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failBursts > 0 {
		d.failBursts--
		return nil, errors.Wrapf(ErrInjected, "burst 0x%02X", addr)
	}
	if int(addr)+n > len(d.regs) {
		return nil, errors.Errorf("sim: burst 0x%02X+%d out of range", addr, n)
	}
	if addr == adxl345.RegDataX0 && n == sample.Size && len(d.fifo) > 0 {
		raw := d.fifo[0].Bytes()
		d.fifo = d.fifo[1:]
		copy(d.regs[adxl345.RegDataX0:], raw[:])
	}
	out := make([]byte, n)
	copy(out, d.regs[addr:int(addr)+n])
	return out, nil
}

// Enqueue appends samples to the on-chip FIFO. Like stream mode, the oldest
// entries are overwritten once the FIFO is full.
func (d *Device) Enqueue(samples ...sample.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fifo = append(d.fifo, samples...)
	if over := len(d.fifo) - fifoDepth; over > 0 {
		d.fifo = d.fifo[over:]
	}
}

// FIFOLen is the number of entries waiting on chip.
func (d *Device) FIFOLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fifo)
}

// Watermark is the depth configured in FIFO_CTL.
func (d *Device) Watermark() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watermarkLocked()
}

func (d *Device) watermarkLocked() int {
	w := int(d.regs[adxl345.RegFIFOCtl] & 0x1F)
	if w == 0 {
		return fifoDepth
	}
	return w
}

// Measuring reports whether POWER_CTL has the measure bit set.
func (d *Device) Measuring() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[adxl345.RegPowerCtl]&adxl345.PowerMeasure != 0
}

// Register returns the stored value of a register.
func (d *Device) Register(addr byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[addr]
}

// Writes returns every register write seen so far, in order.
func (d *Device) Writes() []adxl345.RegPair {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]adxl345.RegPair(nil), d.writes...)
}

// FailNextBursts makes the next n burst reads fail.
func (d *Device) FailNextBursts(n int) {
	d.mu.Lock()
	d.failBursts = n
	d.mu.Unlock()
}

// FailWrites makes every write to reg fail.
func (d *Device) FailWrites(reg byte) {
	d.mu.Lock()
	d.failWrite[reg] = true
	d.mu.Unlock()
}

// Arm implements irq.Source.
func (d *Device) Arm(handler func()) error {
	d.sigMu.Lock()
	defer d.sigMu.Unlock()
	if d.handler != nil {
		return errors.New("sim: signal already armed")
	}
	d.handler = handler
	return nil
}

// Disarm implements irq.Source.
func (d *Device) Disarm() error {
	d.sigMu.Lock()
	d.handler = nil
	d.sigMu.Unlock()
	return nil
}

// Armed reports whether a handler is installed.
func (d *Device) Armed() bool {
	d.sigMu.Lock()
	defer d.sigMu.Unlock()
	return d.handler != nil
}

// Fire raises the watermark signal once. It returns false when disarmed.
func (d *Device) Fire() bool {
	d.sigMu.Lock()
	defer d.sigMu.Unlock()
	if d.handler == nil {
		return false
	}
	d.fired++
	d.handler()
	return true
}

// Burst fills the FIFO with samples and raises the signal, the way the chip
// does when the watermark is reached.
func (d *Device) Burst(samples ...sample.Sample) bool {
	d.Enqueue(samples...)
	return d.Fire()
}

// Run generates one watermark's worth of samples from gen every interval
// while the device is measuring, and fires the signal. It returns when ctx is
// done.
func (d *Device) Run(ctx context.Context, gen *Waveform, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.Measuring() {
				continue
			}
			w := d.Watermark()
			batch := make([]sample.Sample, w)
			for i := range batch {
				batch[i] = gen.Next()
			}
			d.Burst(batch...)
		}
	}
}

func (d *Device) String() string { return "sim-adxl345" }
