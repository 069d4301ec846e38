// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/sample"
)

// Transport names accepted by ACCEL_TRANSPORT.
const (
	TransportI2C = "i2c"
	TransportSPI = "spi"
	TransportSim = "sim"
)

// Config holds all application configuration values.
type Config struct {
	// Accelerometer hardware
	AccelTransport string
	AccelI2CBus    string // "" selects the first bus
	AccelI2CAddr   uint16
	AccelSPIDevice string
	AccelSPIHz     int64
	AccelIntPin    string // GPIO wired to INT1

	// Accelerometer setup
	AccelRateCode      byte // BW_RATE, 0x0A = 100 Hz
	AccelRange         byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelWatermark     int  // FIFO entries per interrupt
	AccelQueueCapacity int
	AccelExpectedDevID byte // 0 skips the DEVID check

	// Simulation
	SimInterval int // milliseconds between simulated watermark events

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicAccelX string
	TopicAccelY string
	TopicAccelZ string

	// Axes the producer opens a session for
	ProducerAxes []sample.Axis

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Logging: debug, info, warn or error
	LogLevel string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func defaults() *Config {
	acc := adxl345.DefaultConfig()
	return &Config{
		AccelI2CAddr:          0x53,
		AccelSPIHz:            50000,
		AccelRateCode:         acc.RateCode,
		AccelRange:            acc.Range,
		AccelWatermark:        acc.Watermark,
		AccelQueueCapacity:    64,
		AccelExpectedDevID:    adxl345.DeviceID,
		SimInterval:           200,
		MQTTClientIDProducer:  "accel-producer",
		MQTTClientIDConsole:   "accel-console",
		MQTTClientIDDisplay:   "accel-display",
		TopicAccelX:           "accel/x",
		TopicAccelY:           "accel/y",
		TopicAccelZ:           "accel/z",
		ProducerAxes:          []sample.Axis{sample.AxisX, sample.AxisY, sample.AxisZ},
		WebServerPort:         8080,
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 250,
		LogLevel:              "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are
// skipped; unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseByte(key, value string, max int) (byte, error) {
	v, err := cast.ToIntE(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if v < 0 || v > max {
		return 0, errors.Errorf("%s must be 0-%d, got %d", key, max, v)
	}
	return byte(v), nil
}

func parseInt(key, value string) (int, error) {
	v, err := cast.ToIntE(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	v, err := cast.ToUint16E(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return v, nil
}

func parseAxes(value string) ([]sample.Axis, error) {
	var axes []sample.Axis
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a, ok := sample.AxisByName(name)
		if !ok {
			return nil, errors.Errorf("unknown axis %q in PRODUCER_AXES", name)
		}
		axes = append(axes, a)
	}
	return axes, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Accelerometer hardware
	case "ACCEL_TRANSPORT":
		c.AccelTransport = strings.ToLower(value)
	case "ACCEL_I2C_BUS":
		c.AccelI2CBus = value
	case "ACCEL_I2C_ADDR":
		c.AccelI2CAddr, err = parseAddr(key, value)
	case "ACCEL_SPI_DEVICE":
		c.AccelSPIDevice = value
	case "ACCEL_SPI_HZ":
		c.AccelSPIHz, err = cast.ToInt64E(value)
		if err != nil {
			err = errors.Wrapf(err, "invalid ACCEL_SPI_HZ %q", value)
		}
	case "ACCEL_INT_PIN":
		c.AccelIntPin = value

	// Accelerometer setup
	case "ACCEL_RATE_CODE":
		c.AccelRateCode, err = parseByte(key, value, 0x0F)
	case "ACCEL_RANGE":
		c.AccelRange, err = parseByte(key, value, 3)
	case "ACCEL_WATERMARK":
		c.AccelWatermark, err = parseInt(key, value)
	case "ACCEL_QUEUE_CAPACITY":
		c.AccelQueueCapacity, err = parseInt(key, value)
	case "ACCEL_EXPECTED_DEVID":
		c.AccelExpectedDevID, err = parseByte(key, value, 0xFF)

	// Simulation
	case "SIM_INTERVAL":
		c.SimInterval, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ACCEL_X":
		c.TopicAccelX = value
	case "TOPIC_ACCEL_Y":
		c.TopicAccelY = value
	case "TOPIC_ACCEL_Z":
		c.TopicAccelZ = value
	case "PRODUCER_AXES":
		c.ProducerAxes, err = parseAxes(value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return errors.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks required fields and cross-field constraints.
func (c *Config) validate() error {
	switch c.AccelTransport {
	case "":
		return errors.New("ACCEL_TRANSPORT is required")
	case TransportI2C:
	case TransportSPI:
		if c.AccelSPIDevice == "" {
			return errors.New("ACCEL_SPI_DEVICE is required for spi transport")
		}
	case TransportSim:
	default:
		return errors.Errorf("ACCEL_TRANSPORT must be i2c, spi or sim, got %q", c.AccelTransport)
	}
	if c.AccelTransport != TransportSim && c.AccelIntPin == "" {
		return errors.New("ACCEL_INT_PIN is required for hardware transports")
	}
	if err := c.AccelConfig().Validate(); err != nil {
		return errors.Wrap(err, "accelerometer config")
	}
	if c.AccelQueueCapacity < 1 {
		return errors.Errorf("ACCEL_QUEUE_CAPACITY must be at least 1, got %d", c.AccelQueueCapacity)
	}
	if c.SimInterval < 1 {
		return errors.Errorf("SIM_INTERVAL must be at least 1, got %d", c.SimInterval)
	}
	if len(c.ProducerAxes) == 0 {
		return errors.New("PRODUCER_AXES must name at least one axis")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// AccelConfig returns the chip setup values.
func (c *Config) AccelConfig() adxl345.Config {
	return adxl345.Config{
		RateCode:  c.AccelRateCode,
		Range:     c.AccelRange,
		Watermark: c.AccelWatermark,
	}
}

// Topic returns the MQTT topic for axis a.
func (c *Config) Topic(a sample.Axis) string {
	switch a {
	case sample.AxisY:
		return c.TopicAccelY
	case sample.AxisZ:
		return c.TopicAccelZ
	default:
		return c.TopicAccelX
	}
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
