// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// addrBus redirects every transaction to addr. ssd1306.NewI2C always talks
// to 0x3C; boards strapped to 0x3D need the rewrite.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// DisplayData holds the latest reading per axis.
type DisplayData struct {
	mu     sync.RWMutex
	latest map[sample.Axis]AxisReading
}

func newDisplayData() *DisplayData {
	return &DisplayData{latest: map[sample.Axis]AxisReading{}}
}

func (d *DisplayData) update(r AxisReading) error {
	axis, ok := sample.AxisByName(r.Axis)
	if !ok {
		return errors.Errorf("unknown axis %q", r.Axis)
	}
	d.mu.Lock()
	d.latest[axis] = r
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) snapshot() map[sample.Axis]AxisReading {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[sample.Axis]AxisReading, len(d.latest))
	for k, v := range d.latest {
		out[k] = v
	}
	return out
}

// RunDisplay shows the latest published value of each axis on an SSD1306
// OLED until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	logger = logger.Named("display")

	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize periph")
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return errors.Wrap(err, "failed to open I2C bus")
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return errors.Wrap(err, "failed to initialize display")
	}
	logger.Infof("display initialized at 0x%02X", cfg.DisplayI2CAddr)
	defer func() {
		if err := dev.Halt(); err != nil {
			logger.Warnw("display halt", "error", err)
		}
	}()

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		logger.Warnw("error showing splash", "error", err)
	}

	data := newDisplayData()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, axis := range sample.Axes {
		topic := cfg.Topic(axis)
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var r AxisReading
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				logger.Warnw("unmarshal error", "topic", msg.Topic(), "error", err)
				return
			}
			if err := data.update(r); err != nil {
				logger.Warnw("bad reading", "topic", msg.Topic(), "error", err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return errors.Wrapf(token.Error(), "subscribe %s", topic)
		}
		logger.Infof("subscribed to %s", topic)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderAxes(data.snapshot()), image.Point{}); err != nil {
				logger.Warnw("error updating display", "error", err)
			}
		}
	}
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString("ADXL345")
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString("Waiting...")
	return img
}

// renderAxes draws one line per axis, "-" for axes with no reading yet.
func renderAxes(latest map[sample.Axis]AxisReading) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	for i, axis := range sample.Axes {
		line := fmt.Sprintf("%s:      -", strings.ToUpper(axis.String()))
		if r, ok := latest[axis]; ok {
			line = fmt.Sprintf("%s: %6d", strings.ToUpper(axis.String()), r.Value)
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}
