// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/device"
	"github.com/relabs-tech/accelstream/internal/sample"
	"github.com/relabs-tech/accelstream/internal/sensors"
)

// RunConsole attaches the accelerometer, opens one session, and prints
// reads values of each axis in turn through the control command path.
func RunConsole(ctx context.Context, cfg *config.Config, reads int, out io.Writer, logger *zap.SugaredLogger) error {
	logger = logger.Named("console")
	acc, err := sensors.OpenAccelerometer(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open accelerometer")
	}
	defer func() {
		if err := acc.Shutdown(context.Background()); err != nil {
			logger.Warnw("accelerometer close", "error", err)
		}
	}()
	return dumpAxes(ctx, acc.Device, reads, out)
}

func dumpAxes(ctx context.Context, dev *device.Device, reads int, out io.Writer) error {
	s, err := dev.Open(ctx, "console")
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	for _, axis := range sample.Axes {
		code := device.SelectAxisCode(axis)
		if err := s.Control(ctx, code); err != nil {
			return errors.Wrapf(err, "select %s (0x%08X)", axis, code)
		}
		label := fmt.Sprintf("%s-axis", axis)
		for i := 0; i < reads; i++ {
			v, err := s.ReadValue(ctx)
			if err != nil {
				return errors.Wrapf(err, "read %s", label)
			}
			fmt.Fprintf(out, "%s %3d: %6d\n", label, i, v)
		}
	}
	return nil
}
