// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// SPI address byte flags used by the ADXL345.
const (
	spiRead      = 0x80
	spiMultiByte = 0x40
)

// DefaultSPIFrequency matches the periph adxl345 driver.
const DefaultSPIFrequency = 50 * physic.KiloHertz

// I2C is a Transport over a periph I²C bus. The device auto-increments the
// register address during multi-byte reads.
type I2C struct {
	dev *i2c.Dev
}

// NewI2C binds addr on bus b.
func NewI2C(b i2c.Bus, addr uint16) *I2C {
	return &I2C{dev: &i2c.Dev{Bus: b, Addr: addr}}
}

func (t *I2C) ReadRegister(addr byte) (byte, error) {
	r := make([]byte, 1)
	if err := t.dev.Tx([]byte{addr}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (t *I2C) WriteRegister(addr byte, data []byte) error {
	w := append([]byte{addr}, data...)
	return t.dev.Tx(w, nil)
}

func (t *I2C) ReadBurst(addr byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := t.dev.Tx([]byte{addr}, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *I2C) String() string { return t.dev.String() }

// SPI is a Transport over a periph SPI port in mode 3.
type SPI struct {
	conn spi.Conn
}

// NewSPI connects to p. A zero freq selects DefaultSPIFrequency.
func NewSPI(p spi.Port, freq physic.Frequency) (*SPI, error) {
	if freq == 0 {
		freq = DefaultSPIFrequency
	}
	c, err := p.Connect(freq, spi.Mode3, 8)
	if err != nil {
		return nil, errors.Wrap(err, "spi connect")
	}
	return &SPI{conn: c}, nil
}

func (t *SPI) ReadRegister(addr byte) (byte, error) {
	tx := []byte{addr | spiRead, 0x00}
	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return 0, err
	}
	return rx[1], nil
}

func (t *SPI) WriteRegister(addr byte, data []byte) error {
	tx := append([]byte{addr}, data...)
	if len(data) > 1 {
		tx[0] |= spiMultiByte
	}
	rx := make([]byte, len(tx))
	return t.conn.Tx(tx, rx)
}

func (t *SPI) ReadBurst(addr byte, n int) ([]byte, error) {
	tx := make([]byte, n+1)
	tx[0] = addr | spiRead | spiMultiByte
	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, err
	}
	return rx[1:], nil
}

func (t *SPI) String() string { return t.conn.String() }
