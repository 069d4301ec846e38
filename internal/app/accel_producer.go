// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/device"
	"github.com/relabs-tech/accelstream/internal/directory"
	"github.com/relabs-tech/accelstream/internal/sample"
	"github.com/relabs-tech/accelstream/internal/sensors"
)

const mqttTimeout = 5 * time.Second

// publisher is the part of an MQTT client the producer needs.
type publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func connectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	if cfg.MQTTBroker == "" {
		return nil, errors.New("MQTT_BROKER is required")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "MQTT connect %s", cfg.MQTTBroker)
	}
	return client, nil
}

// RunAccelProducer attaches the accelerometer and publishes every value read
// by one session per configured axis until ctx is done. The sessions share
// the device queue, so each sample is published on exactly one axis topic.
func RunAccelProducer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	logger = logger.Named("producer")
	logger.Info("starting accelerometer producer")

	acc, err := sensors.OpenAccelerometer(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open accelerometer")
	}
	defer func() {
		if err := acc.Shutdown(context.Background()); err != nil {
			logger.Warnw("accelerometer close", "error", err)
		}
	}()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	return publishAxes(ctx, acc.Device, mqttPublisher{client}, cfg, logger)
}

func publishAxes(ctx context.Context, dev *device.Device, pub publisher, cfg *config.Config, logger *zap.SugaredLogger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, axis := range cfg.ProducerAxes {
		axis := axis
		g.Go(func() error {
			return publishAxis(gctx, dev, pub, axis, cfg.Topic(axis), logger)
		})
	}
	err := g.Wait()
	if errors.Is(err, accelerr.ErrInterrupted) && ctx.Err() != nil {
		return nil
	}
	return err
}

func publishAxis(ctx context.Context, dev *device.Device, pub publisher, axis sample.Axis, topic string, logger *zap.SugaredLogger) error {
	id := directory.SessionID(fmt.Sprintf("producer-%s", axis))
	s, err := dev.Open(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Warnw("session close", "session", id, "error", err)
		}
	}()
	if err := s.SelectAxis(ctx, axis); err != nil {
		return err
	}
	logger.Infow("publishing", "axis", axis.String(), "topic", topic)

	var seq uint64
	for {
		v, err := s.ReadValue(ctx)
		if err != nil {
			return err
		}
		seq++
		payload, err := json.Marshal(AxisReading{
			Axis:  axis.String(),
			Value: v,
			Seq:   seq,
			Time:  time.Now().Format(time.RFC3339Nano),
		})
		if err != nil {
			logger.Errorw("json marshal", "axis", axis.String(), "error", err)
			continue
		}
		if err := pub.Publish(topic, payload); err != nil {
			logger.Warnw("MQTT publish error", "topic", topic, "error", err)
		}
	}
}
