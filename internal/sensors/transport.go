// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors connects the DMP pipeline to real hardware: register
// transports over periph I2C/SPI and a framed packet stream over a serial port.
package sensors

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

// InitHost loads the periph host drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		state, err := host.Init()
		if err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
			return
		}
		log.Debugf("periph host: %d drivers loaded, %d skipped", len(state.Loaded), len(state.Skipped))
	})
	return hostInitErr
}

// I2CTransport talks to the sensor over I2C. Register writes are a single
// transaction of the register address followed by the data; reads are a
// write of the register address and a repeated-start read.
type I2CTransport struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewI2CTransport wraps an already opened bus.
func NewI2CTransport(bus i2c.Bus, addr uint16) *I2CTransport {
	return &I2CTransport{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// OpenI2C opens the named I2C bus ("" for the first one) and addresses the
// sensor at addr.
func OpenI2C(busName string, addr uint16) (*I2CTransport, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}
	t := NewI2CTransport(bus, addr)
	t.bus = bus
	log.Infof("DMP sensor on I2C bus %s at 0x%02X", bus, addr)
	return t, nil
}

// ReadRegisters implements dmp.Transport.
func (t *I2CTransport) ReadRegisters(reg byte, buf []byte) error {
	if err := t.dev.Tx([]byte{reg}, buf); err != nil {
		return fmt.Errorf("i2c read 0x%02X: %w", reg, err)
	}
	return nil
}

// WriteRegisters implements dmp.Transport.
func (t *I2CTransport) WriteRegisters(reg byte, data ...byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := t.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("i2c write 0x%02X: %w", reg, err)
	}
	return nil
}

// Close releases the bus if this transport opened it.
func (t *I2CTransport) Close() error {
	if t.bus == nil {
		return nil
	}
	return t.bus.Close()
}

// SPIReadFlag is set on the register address for read transactions.
const SPIReadFlag = 0x80

// DefaultSPIFrequency is within the MPU-6000's 1 MHz limit for register access.
const DefaultSPIFrequency = 1 * physic.MegaHertz

// SPITransport talks to the sensor over SPI mode 3. When a chip-select pin is
// given it is driven manually around every transaction; otherwise the
// controller's hardware CS is used.
type SPITransport struct {
	c    conn.Conn
	cs   gpio.PinOut
	port spi.PortCloser
}

// NewSPITransport wraps an already connected SPI link. cs may be nil.
func NewSPITransport(c conn.Conn, cs gpio.PinOut) *SPITransport {
	return &SPITransport{c: c, cs: cs}
}

// OpenSPI opens an SPI device (e.g. "/dev/spidev0.0") and, if csPin is not
// empty, claims that GPIO as chip select.
func OpenSPI(device, csPin string) (*SPITransport, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("spi open %q: %w", device, err)
	}
	c, err := port.Connect(DefaultSPIFrequency, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("spi connect %q: %w", device, err)
	}

	var cs gpio.PinOut
	if csPin != "" {
		pin := gpioreg.ByName(csPin)
		if pin == nil {
			port.Close()
			return nil, fmt.Errorf("CS pin %q not found", csPin)
		}
		if err := pin.Out(gpio.High); err != nil {
			port.Close()
			return nil, fmt.Errorf("CS pin %q: %w", csPin, err)
		}
		cs = pin
	}

	t := NewSPITransport(c, cs)
	t.port = port
	log.Infof("DMP sensor on SPI %s (cs=%q)", device, csPin)
	return t, nil
}

func (t *SPITransport) tx(w, r []byte) error {
	if t.cs != nil {
		if err := t.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("assert CS: %w", err)
		}
		defer t.cs.Out(gpio.High)
	}
	return t.c.Tx(w, r)
}

// ReadRegisters implements dmp.Transport.
func (t *SPITransport) ReadRegisters(reg byte, buf []byte) error {
	w := make([]byte, len(buf)+1)
	r := make([]byte, len(buf)+1)
	w[0] = reg | SPIReadFlag
	if err := t.tx(w, r); err != nil {
		return fmt.Errorf("spi read 0x%02X: %w", reg, err)
	}
	copy(buf, r[1:])
	return nil
}

// WriteRegisters implements dmp.Transport.
func (t *SPITransport) WriteRegisters(reg byte, data ...byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg&^SPIReadFlag)
	w = append(w, data...)
	if err := t.tx(w, nil); err != nil {
		return fmt.Errorf("spi write 0x%02X: %w", reg, err)
	}
	return nil
}

// Close releases the SPI port if this transport opened it.
func (t *SPITransport) Close() error {
	if t.port == nil {
		return nil
	}
	return t.port.Close()
}
