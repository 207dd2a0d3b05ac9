package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inertial_config.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DMPSource != SourceSim || cfg.DMPLayout != "motionapps612" {
		t.Fatalf("source/layout = %q/%q", cfg.DMPSource, cfg.DMPLayout)
	}
	if cfg.DMPI2CAddr != 0x68 || cfg.DMPStartAddr != 0x0400 || cfg.DisplayI2CAddr != 0x3C {
		t.Fatalf("addresses = 0x%X 0x%X 0x%X", cfg.DMPI2CAddr, cfg.DMPStartAddr, cfg.DisplayI2CAddr)
	}
	if cfg.DMPAccelLSBPerG != 2048 || cfg.DMPMaxPacketsPerTick != 8 {
		t.Fatalf("decoding = %v/%d", cfg.DMPAccelLSBPerG, cfg.DMPMaxPacketsPerTick)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t,
		"# DMP over I2C",
		"MQTT_BROKER=tcp://broker:1883",
		"DMP_SOURCE=I2C",
		"DMP_I2C_BUS=1",
		"DMP_I2C_ADDR=0x69",
		"DMP_FIRMWARE_IMAGE=/opt/dmp/motionapps612.bin",
		"DMP_ACCEL_LSB_PER_G=16384",
		"",
		"IMU_SAMPLE_INTERVAL=10",
	)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" || cfg.DMPSource != SourceI2C || cfg.DMPI2CBus != "1" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DMPI2CAddr != 0x69 || cfg.DMPAccelLSBPerG != 16384 || cfg.IMUSampleInterval != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.TopicPose != "inertial/pose" {
		t.Fatalf("TopicPose = %q", cfg.TopicPose)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "WEB_SERVER_PORT=9000")
	t.Setenv("INERTIAL_WEB_SERVER_PORT", "9100")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WebServerPort != 9100 {
		t.Fatalf("WebServerPort = %d", cfg.WebServerPort)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown key":       {"TOPIC_GPS=inertial/gps"},
		"bad address":       {"DMP_I2C_ADDR=zz"},
		"bad source":        {"DMP_SOURCE=usb"},
		"i2c needs image":   {"DMP_SOURCE=i2c"},
		"spi needs device":  {"DMP_SOURCE=spi", "DMP_FIRMWARE_IMAGE=fw.bin"},
		"serial needs port": {"DMP_SOURCE=serial"},
		"zero interval":     {"IMU_SAMPLE_INTERVAL=0"},
		"zero batch":        {"DMP_MAX_PACKETS_PER_TICK=0"},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, lines...)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	ConfigureLogging(true)
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v", log.GetLevel())
	}
	ConfigureLogging(false)
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("level = %v", log.GetLevel())
	}
}
