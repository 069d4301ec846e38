// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq delivers the accelerometer's watermark signal.
package irq

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
)

// Source delivers watermark edges to one handler. A Source must not call the
// handler again before the previous call has returned. Disarm returns once no
// call is in flight and no further calls will be made.
type Source interface {
	Arm(handler func()) error
	Disarm() error
}

// DefaultPoll bounds how long a GPIO waiter blocks before re-checking the INT
// level and Disarm.
const DefaultPoll = 100 * time.Millisecond

// GPIO waits for rising edges on the accelerometer INT pin.
type GPIO struct {
	pin    gpio.PinIn
	poll   time.Duration
	logger *zap.SugaredLogger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewGPIO wraps pin. The pin is configured on Arm.
func NewGPIO(pin gpio.PinIn, logger *zap.SugaredLogger) *GPIO {
	return &GPIO{pin: pin, poll: DefaultPoll, logger: logger}
}

// Arm configures rising-edge detection and starts the waiter goroutine. The
// INT line is level-held by the device: the handler runs on every rising edge
// and again after each wait for as long as the line stays high, so a
// watermark that is never cleared keeps being delivered.
func (g *GPIO) Arm(handler func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		return errors.Errorf("irq: %s already armed", g.pin)
	}
	if err := g.pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return errors.Wrapf(err, "irq: configure %s", g.pin)
	}
	g.stop = make(chan struct{})
	g.done = make(chan struct{})

	go g.wait(handler, g.stop, g.done)
	g.logger.Debugf("armed rising edge on %s", g.pin)
	return nil
}

func (g *GPIO) wait(handler func(), stop, done chan struct{}) {
	defer close(done)
	edge := false
	for {
		if edge || g.pin.Read() == gpio.High {
			handler()
		}
		select {
		case <-stop:
			return
		default:
		}
		edge = g.pin.WaitForEdge(g.poll)
		select {
		case <-stop:
			return
		default:
		}
	}
}

// Disarm stops the waiter and turns edge detection off.
func (g *GPIO) Disarm() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop == nil {
		return nil
	}
	close(g.stop)
	<-g.done
	g.stop, g.done = nil, nil

	if err := g.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return errors.Wrapf(err, "irq: release %s", g.pin)
	}
	g.logger.Debugf("disarmed %s", g.pin)
	return nil
}
