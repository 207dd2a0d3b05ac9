// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"errors"
	"fmt"
)

// PacketSource is anything that hands out DMP packets: an initialized
// Device draining the sensor FIFO, or a stream source such as a serial port.
type PacketSource interface {
	Layout() Layout
	PacketsQueued() (int, error)
	ReadPacket() ([]byte, error)
}

// Handler consumes one decoded sample. Returning an error stops the batch.
type Handler func(Sample) error

// ProcessPacket decodes packet and hands the sample to h.
func ProcessPacket(dec Decoder, packet []byte, h Handler) error {
	s := dec.Decode(packet)
	if h == nil {
		return nil
	}
	return h(s)
}

// ReadAndProcessPackets reads and processes at most n packets from src and
// returns how many were handed to h. The count of queued packets is taken
// once up front, so processed never exceeds n nor what was queued at call
// time. Bus and handler errors stop the batch; packets already processed
// stay counted.
func ReadAndProcessPackets(src PacketSource, dec Decoder, n int, h Handler) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	queued, err := src.PacketsQueued()
	if err != nil {
		return 0, err
	}
	if queued < n {
		n = queued
	}

	processed := 0
	for processed < n {
		packet, err := src.ReadPacket()
		if errors.Is(err, ErrNoPacket) {
			break
		}
		if err != nil {
			return processed, err
		}
		if err := ProcessPacket(dec, packet, h); err != nil {
			return processed, fmt.Errorf("process packet %d: %w", processed, err)
		}
		processed++
	}
	return processed, nil
}
