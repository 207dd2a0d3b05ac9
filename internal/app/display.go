// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/imu"
	"github.com/relabs-tech/inertial_dmp/internal/orientation"
	"github.com/relabs-tech/inertial_dmp/internal/sensors"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	pose     orientation.Pose
	havePose bool

	motion     imu.Motion
	haveMotion bool
}

func (d *DisplayData) snapshot() (orientation.Pose, bool, imu.Motion, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pose, d.havePose, d.motion, d.haveMotion
}

// addrBus pins every transaction to one address. The ssd1306 driver always
// talks to 0x3C; this lets DISPLAY_I2C_ADDR select a module strapped to 0x3D.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error { return b.Bus.Tx(b.addr, w, r) }

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// renderOrientation draws yaw/pitch/roll and, when the layout carries accel,
// the world-frame vertical linear acceleration.
func renderOrientation(pose orientation.Pose, havePose bool, motion imu.Motion, haveMotion bool) *image1bit.VerticalLSB {
	img, d := newFrame()
	if !havePose {
		drawLine(d, 0, 26, "Orientation")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}
	drawLine(d, 0, 13, fmt.Sprintf("Y: %6.1f", pose.Yaw))
	drawLine(d, 0, 26, fmt.Sprintf("P: %6.1f", pose.Pitch))
	drawLine(d, 0, 39, fmt.Sprintf("R: %6.1f", pose.Roll))
	if haveMotion {
		drawLine(d, 0, 52, fmt.Sprintf("Az: %6d", motion.LinearAccelWorld.Z))
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newFrame()
	drawLine(d, 10, 26, "Inertial DMP")
	drawLine(d, 5, 43, "Waiting for")
	drawLine(d, 25, 56, "packets")
	return img
}

// RunDisplay shows the latest pose on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	if err := sensors.InitHost(); err != nil {
		return err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicPose, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Warnf("display: pose unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.pose = p
		data.havePose = true
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicMotion, func(_ mqtt.Client, msg mqtt.Message) {
		var m imu.Motion
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warnf("display: motion unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.motion = m
		data.haveMotion = true
		data.mu.Unlock()
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Info("display: starting update loop")
	for range ticker.C {
		img := renderOrientation(data.snapshot())
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Warnf("display: update error: %v", err)
		}
	}
	return nil
}
