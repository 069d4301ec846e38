// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/bus"
	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/device"
	"github.com/relabs-tech/accelstream/internal/irq"
	"github.com/relabs-tech/accelstream/internal/sim"
)

// Accelerometer is an attached device plus the bus handle and simulator it
// was built on.
type Accelerometer struct {
	*device.Device

	closer  io.Closer
	stopSim context.CancelFunc
	simDone chan struct{}
}

// OpenAccelerometer builds the transport and watermark source named by cfg
// and attaches the device.
func OpenAccelerometer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Accelerometer, error) {
	opts := device.Options{
		Config:           cfg.AccelConfig(),
		QueueCapacity:    cfg.AccelQueueCapacity,
		ExpectedDeviceID: cfg.AccelExpectedDevID,
		Logger:           logger.Named("adxl345"),
	}

	if cfg.AccelTransport == config.TransportSim {
		return openSim(ctx, cfg, opts, logger)
	}

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	pin := gpioreg.ByName(cfg.AccelIntPin)
	if pin == nil {
		return nil, errors.Errorf("INT pin %q not found", cfg.AccelIntPin)
	}
	src := irq.NewGPIO(pin, logger.Named("irq"))

	var (
		tr     bus.Transport
		closer io.Closer
	)
	switch cfg.AccelTransport {
	case config.TransportI2C:
		b, err := i2creg.Open(cfg.AccelI2CBus)
		if err != nil {
			return nil, errors.Wrapf(err, "open I2C bus %q", cfg.AccelI2CBus)
		}
		tr, closer = bus.NewI2C(b, cfg.AccelI2CAddr), b
	case config.TransportSPI:
		p, err := spireg.Open(cfg.AccelSPIDevice)
		if err != nil {
			return nil, errors.Wrapf(err, "open SPI port %q", cfg.AccelSPIDevice)
		}
		s, err := bus.NewSPI(p, physic.Frequency(cfg.AccelSPIHz)*physic.Hertz)
		if err != nil {
			return nil, multierr.Append(err, p.Close())
		}
		tr, closer = s, p
	default:
		return nil, errors.Errorf("unsupported transport %q", cfg.AccelTransport)
	}

	dev, err := device.Attach(ctx, tr, src, opts)
	if err != nil {
		return nil, multierr.Append(err, closer.Close())
	}
	return &Accelerometer{Device: dev, closer: closer}, nil
}

func openSim(ctx context.Context, cfg *config.Config, opts device.Options, logger *zap.SugaredLogger) (*Accelerometer, error) {
	chip := sim.New()
	dev, err := device.Attach(ctx, chip, chip, opts)
	if err != nil {
		return nil, err
	}

	simCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		chip.Run(simCtx, sim.NewWaveform(adxl345.OutputRateHz(cfg.AccelRateCode)), time.Duration(cfg.SimInterval)*time.Millisecond)
	}()
	logger.Infof("simulated accelerometer running, watermark event every %d ms", cfg.SimInterval)
	return &Accelerometer{Device: dev, stopSim: cancel, simDone: done}, nil
}

// Shutdown detaches the device and releases the bus. It is named apart from
// the embedded Device.Close, which closes one session.
func (a *Accelerometer) Shutdown(ctx context.Context) error {
	if a.stopSim != nil {
		a.stopSim()
		<-a.simDone
	}
	err := a.Device.Detach(ctx)
	if a.closer != nil {
		err = multierr.Append(err, a.closer.Close())
	}
	return err
}
