// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// RunConsoleMQTT prints every axis reading published on the accelerometer
// topics until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) error {
	logger = logger.Named("console")
	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, axis := range sample.Axes {
		topic := cfg.Topic(axis)
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := formatReading(msg.Payload())
			if err != nil {
				logger.Warnw("unmarshal error", "topic", msg.Topic(), "error", err)
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return errors.Wrapf(token.Error(), "subscribe %s", topic)
		}
		logger.Infof("subscribed to %s", topic)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func formatReading(payload []byte) (string, error) {
	var r AxisReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", err
	}
	return fmt.Sprintf("[ACC-%s] value=%6d seq=%d time=%s", strings.ToUpper(r.Axis), r.Value, r.Seq, r.Time), nil
}
