// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoPacket is returned by ReadPacket when fewer than PacketSize bytes are
// queued. The FIFO is left untouched.
var ErrNoPacket = errors.New("dmp: no complete packet queued")

// Device is an initialized DMP. Packet size is fixed for its lifetime and
// matches the layout the firmware was loaded with. A Device is meant to be
// driven from a single goroutine.
type Device struct {
	tr      Transport
	layout  Layout
	decoder Decoder
	buf     []byte
}

func newDevice(tr Transport, layout Layout, lsbPerG float32) *Device {
	dec := NewDecoder(layout)
	if lsbPerG > 0 {
		dec.AccelLSBPerG = lsbPerG
	}
	return &Device{
		tr:      tr,
		layout:  layout,
		decoder: dec,
		buf:     make([]byte, layout.PacketSize),
	}
}

// PacketSize returns the DMP packet size in bytes.
func (d *Device) PacketSize() int { return d.layout.PacketSize }

// Layout returns the packet layout.
func (d *Device) Layout() Layout { return d.layout }

// Decoder returns the decoder bound to this device's layout.
func (d *Device) Decoder() Decoder { return d.decoder }

// FIFOCount returns the number of bytes queued in the sensor FIFO.
func (d *Device) FIFOCount() (int, error) {
	var b [2]byte
	if err := d.tr.ReadRegisters(RegFIFOCountH, b[:]); err != nil {
		return 0, fmt.Errorf("read FIFO count: %w", err)
	}
	return int(binary.BigEndian.Uint16(b[:])), nil
}

// PacketAvailable reports whether at least one full packet is queued.
func (d *Device) PacketAvailable() (bool, error) {
	n, err := d.PacketsQueued()
	return n > 0, err
}

// PacketsQueued returns how many complete packets the FIFO holds.
func (d *Device) PacketsQueued() (int, error) {
	count, err := d.FIFOCount()
	if err != nil {
		return 0, err
	}
	return count / d.layout.PacketSize, nil
}

// ReadPacket pulls one packet out of the FIFO. The returned slice is the
// device's packet buffer and is overwritten by the next call.
func (d *Device) ReadPacket() ([]byte, error) {
	count, err := d.FIFOCount()
	if err != nil {
		return nil, err
	}
	if count < d.layout.PacketSize {
		return nil, ErrNoPacket
	}
	if err := d.tr.ReadRegisters(RegFIFORW, d.buf); err != nil {
		return nil, fmt.Errorf("read FIFO: %w", err)
	}
	return d.buf, nil
}

// Overflowed reports (and clears) the FIFO overflow interrupt flag. After an
// overflow the FIFO may no longer be packet-aligned; call ResetFIFO.
func (d *Device) Overflowed() (bool, error) {
	var status [1]byte
	if err := d.tr.ReadRegisters(RegIntStatus, status[:]); err != nil {
		return false, fmt.Errorf("read interrupt status: %w", err)
	}
	return status[0]&IntFIFOOverflow != 0, nil
}

// ResetFIFO discards everything queued, keeping the FIFO and DMP enabled.
func (d *Device) ResetFIFO() error {
	var ctrl [1]byte
	if err := d.tr.ReadRegisters(RegUserCtrl, ctrl[:]); err != nil {
		return fmt.Errorf("read USER_CTRL: %w", err)
	}
	if err := d.tr.WriteRegisters(RegUserCtrl, ctrl[0]|UserFIFOReset); err != nil {
		return fmt.Errorf("reset FIFO: %w", err)
	}
	return nil
}

// ReadAndProcessPackets drains up to n packets through h. See
// ReadAndProcessPackets (package level) for the counting rules.
func (d *Device) ReadAndProcessPackets(n int, h Handler) (int, error) {
	return ReadAndProcessPackets(d, d.decoder, n, h)
}
