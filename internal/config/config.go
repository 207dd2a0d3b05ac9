// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DefaultConfigPath is where the commands look for the KEY=VALUE file.
const DefaultConfigPath = "./inertial_config.txt"

// EnvPrefix prefixes environment overrides, e.g. INERTIAL_MQTT_BROKER.
const EnvPrefix = "INERTIAL"

// Packet sources.
const (
	SourceI2C    = "i2c"
	SourceSPI    = "spi"
	SourceSerial = "serial"
	SourceSim    = "sim"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicQuaternion string
	TopicPose       string
	TopicIMURaw     string
	TopicMotion     string

	// DMP source: one of i2c, spi, serial, sim
	DMPSource     string
	DMPI2CBus     string
	DMPI2CAddr    uint16
	DMPSPIDevice  string
	DMPCSPin      string
	DMPSerialPort string
	DMPBaudRate   int

	// Packet layout and firmware
	DMPLayout           string // built-in or DMP_LAYOUT_FILE name
	DMPLayoutFile       string // optional YAML with extra layouts
	DMPFirmwareImage    string
	DMPFirmwareConfig   string
	DMPFirmwareRevision string
	DMPStartAddr        uint16

	// Decoding
	DMPAccelLSBPerG      float32
	DMPMaxPacketsPerTick int

	// Timing
	IMUSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	Debug bool
}

var defaults = map[string]any{
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID_PRODUCER": "inertial-dmp-producer",
	"MQTT_CLIENT_ID_CONSOLE":  "inertial-dmp-console",
	"MQTT_CLIENT_ID_WEB":      "inertial-dmp-web",
	"MQTT_CLIENT_ID_DISPLAY":  "inertial-dmp-display",

	"TOPIC_QUATERNION": "inertial/dmp/quaternion",
	"TOPIC_POSE":       "inertial/pose",
	"TOPIC_IMU_RAW":    "inertial/imu/raw",
	"TOPIC_MOTION":     "inertial/motion",

	"DMP_SOURCE":      SourceSim,
	"DMP_I2C_BUS":     "",
	"DMP_I2C_ADDR":    "0x68",
	"DMP_SPI_DEVICE":  "",
	"DMP_CS_PIN":      "",
	"DMP_SERIAL_PORT": "",
	"DMP_BAUD_RATE":   115200,

	"DMP_LAYOUT":            "motionapps612",
	"DMP_LAYOUT_FILE":       "",
	"DMP_FIRMWARE_IMAGE":    "",
	"DMP_FIRMWARE_CONFIG":   "",
	"DMP_FIRMWARE_REVISION": "",
	"DMP_START_ADDR":        "0x0400",

	"DMP_ACCEL_LSB_PER_G":      2048,
	"DMP_MAX_PACKETS_PER_TICK": 8,

	"IMU_SAMPLE_INTERVAL": 20,

	"WEB_SERVER_PORT": 8080,

	"DISPLAY_I2C_ADDR":        "0x3C",
	"DISPLAY_UPDATE_INTERVAL": 200,

	"DEBUG": false,
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// NewViper returns a viper instance set up for the KEY=VALUE config format
// with defaults and INERTIAL_ environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	return LoadViper(NewViper(), configPath)
}

// LoadViper reads configPath into v (which may already carry bound flags)
// and decodes it. An empty configPath uses defaults and environment only.
func LoadViper(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debugf("using config file: %s", v.ConfigFileUsed())
	}

	if unknown := unknownKeys(v); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown config key(s): %s", strings.Join(unknown, ", "))
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unknownKeys(v *viper.Viper) []string {
	var out []string
	for _, k := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			out = append(out, strings.ToUpper(k))
		}
	}
	sort.Strings(out)
	return out
}

func parseAddr(v *viper.Viper, key string) (uint16, error) {
	s := strings.TrimSpace(v.GetString(key))
	addr, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return uint16(addr), nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{
		MQTTBroker:           v.GetString("MQTT_BROKER"),
		MQTTClientIDProducer: v.GetString("MQTT_CLIENT_ID_PRODUCER"),
		MQTTClientIDConsole:  v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:      v.GetString("MQTT_CLIENT_ID_WEB"),
		MQTTClientIDDisplay:  v.GetString("MQTT_CLIENT_ID_DISPLAY"),

		TopicQuaternion: v.GetString("TOPIC_QUATERNION"),
		TopicPose:       v.GetString("TOPIC_POSE"),
		TopicIMURaw:     v.GetString("TOPIC_IMU_RAW"),
		TopicMotion:     v.GetString("TOPIC_MOTION"),

		DMPSource:     strings.ToLower(v.GetString("DMP_SOURCE")),
		DMPI2CBus:     v.GetString("DMP_I2C_BUS"),
		DMPSPIDevice:  v.GetString("DMP_SPI_DEVICE"),
		DMPCSPin:      v.GetString("DMP_CS_PIN"),
		DMPSerialPort: v.GetString("DMP_SERIAL_PORT"),
		DMPBaudRate:   v.GetInt("DMP_BAUD_RATE"),

		DMPLayout:           v.GetString("DMP_LAYOUT"),
		DMPLayoutFile:       v.GetString("DMP_LAYOUT_FILE"),
		DMPFirmwareImage:    v.GetString("DMP_FIRMWARE_IMAGE"),
		DMPFirmwareConfig:   v.GetString("DMP_FIRMWARE_CONFIG"),
		DMPFirmwareRevision: v.GetString("DMP_FIRMWARE_REVISION"),

		DMPAccelLSBPerG:      float32(v.GetFloat64("DMP_ACCEL_LSB_PER_G")),
		DMPMaxPacketsPerTick: v.GetInt("DMP_MAX_PACKETS_PER_TICK"),

		IMUSampleInterval: v.GetInt("IMU_SAMPLE_INTERVAL"),
		WebServerPort:     v.GetInt("WEB_SERVER_PORT"),

		DisplayUpdateInterval: v.GetInt("DISPLAY_UPDATE_INTERVAL"),

		Debug: v.GetBool("DEBUG"),
	}

	var err error
	if c.DMPI2CAddr, err = parseAddr(v, "DMP_I2C_ADDR"); err != nil {
		return nil, err
	}
	if c.DMPStartAddr, err = parseAddr(v, "DMP_START_ADDR"); err != nil {
		return nil, err
	}
	if c.DisplayI2CAddr, err = parseAddr(v, "DISPLAY_I2C_ADDR"); err != nil {
		return nil, err
	}
	return c, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.DMPSource {
	case SourceI2C:
		if c.DMPFirmwareImage == "" {
			return fmt.Errorf("DMP_FIRMWARE_IMAGE is required for DMP_SOURCE=i2c")
		}
	case SourceSPI:
		if c.DMPSPIDevice == "" {
			return fmt.Errorf("DMP_SPI_DEVICE is required for DMP_SOURCE=spi")
		}
		if c.DMPFirmwareImage == "" {
			return fmt.Errorf("DMP_FIRMWARE_IMAGE is required for DMP_SOURCE=spi")
		}
	case SourceSerial:
		if c.DMPSerialPort == "" {
			return fmt.Errorf("DMP_SERIAL_PORT is required for DMP_SOURCE=serial")
		}
		if c.DMPBaudRate <= 0 {
			return fmt.Errorf("DMP_BAUD_RATE must be positive, got %d", c.DMPBaudRate)
		}
	case SourceSim:
	default:
		return fmt.Errorf("DMP_SOURCE must be one of i2c, spi, serial, sim; got %q", c.DMPSource)
	}
	if c.DMPLayout == "" {
		return fmt.Errorf("DMP_LAYOUT is required")
	}
	if c.DMPAccelLSBPerG <= 0 {
		return fmt.Errorf("DMP_ACCEL_LSB_PER_G must be positive, got %v", c.DMPAccelLSBPerG)
	}
	if c.DMPMaxPacketsPerTick <= 0 {
		return fmt.Errorf("DMP_MAX_PACKETS_PER_TICK must be positive, got %d", c.DMPMaxPacketsPerTick)
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// InitGlobal initializes the global configuration. Only the first call
// has any effect. v may be nil.
func InitGlobal(v *viper.Viper, configPath string) error {
	var err error
	configOnce.Do(func() {
		if v == nil {
			v = NewViper()
		}
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = LoadViper(v, configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
