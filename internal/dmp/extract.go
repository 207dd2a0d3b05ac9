// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"encoding/binary"
	"errors"

	"github.com/relabs-tech/inertial_dmp/internal/math3d"
)

// QuaternionScale converts the high 16 bits of a DMP quaternion element
// (Q14 after dropping the low word of the Q30 value) to a float.
const QuaternionScale = 16384.0

// ErrFieldAbsent is returned when the layout does not carry the requested field.
var ErrFieldAbsent = errors.New("dmp: field not present in packet layout")

// Extraction helpers read straight from the packet without length checks.
// The packet must be at least PacketSize bytes and come from a read that
// reported a packet was available; a short buffer panics with an index error.

// high16 returns the most significant 16 bits of element i.
func (f Field) high16(packet []byte, i int) int16 {
	off := f.Offset + i*f.Width
	return int16(binary.BigEndian.Uint16(packet[off:]))
}

// full32 returns element i as it sits on the wire: 32-bit elements verbatim,
// 16-bit elements sign-extended.
func (f Field) full32(packet []byte, i int) int32 {
	off := f.Offset + i*f.Width
	if f.Width == 4 {
		return int32(binary.BigEndian.Uint32(packet[off:]))
	}
	return int32(int16(binary.BigEndian.Uint16(packet[off:])))
}

// QuaternionInt32 returns the four raw quaternion elements (w, x, y, z).
func (l Layout) QuaternionInt32(packet []byte) [4]int32 {
	f := l.QuaternionField
	return [4]int32{f.full32(packet, 0), f.full32(packet, 1), f.full32(packet, 2), f.full32(packet, 3)}
}

// QuaternionInt16 returns the high 16 bits of each quaternion element.
func (l Layout) QuaternionInt16(packet []byte) [4]int16 {
	f := l.QuaternionField
	return [4]int16{f.high16(packet, 0), f.high16(packet, 1), f.high16(packet, 2), f.high16(packet, 3)}
}

// Quaternion decodes the orientation quaternion, each element divided by
// QuaternionScale.
func (l Layout) Quaternion(packet []byte) math3d.Quaternion {
	raw := l.QuaternionInt16(packet)
	return math3d.Quaternion{
		W: float32(raw[0]) / QuaternionScale,
		X: float32(raw[1]) / QuaternionScale,
		Y: float32(raw[2]) / QuaternionScale,
		Z: float32(raw[3]) / QuaternionScale,
	}
}

func vector16(f Field, packet []byte) (math3d.IntVector3, error) {
	if !f.Present() {
		return math3d.IntVector3{}, ErrFieldAbsent
	}
	return math3d.IntVector3{X: f.high16(packet, 0), Y: f.high16(packet, 1), Z: f.high16(packet, 2)}, nil
}

func vector32(f Field, packet []byte) ([3]int32, error) {
	if !f.Present() {
		return [3]int32{}, ErrFieldAbsent
	}
	return [3]int32{f.full32(packet, 0), f.full32(packet, 1), f.full32(packet, 2)}, nil
}

// Accel returns raw accelerometer counts.
func (l Layout) Accel(packet []byte) (math3d.IntVector3, error) {
	return vector16(l.AccelField, packet)
}

// AccelInt32 returns the accelerometer elements as they sit on the wire.
func (l Layout) AccelInt32(packet []byte) ([3]int32, error) {
	return vector32(l.AccelField, packet)
}

// Gyro returns raw gyroscope counts.
func (l Layout) Gyro(packet []byte) (math3d.IntVector3, error) {
	return vector16(l.GyroField, packet)
}

// GyroInt32 returns the gyroscope elements as they sit on the wire.
func (l Layout) GyroInt32(packet []byte) ([3]int32, error) {
	return vector32(l.GyroField, packet)
}

// Encode builds a packet in this layout. It is the inverse of the
// extraction helpers and is used by simulated sources and tests.
// Quaternion components are written as Q30 (4-byte) or Q14 (2-byte);
// accel and gyro counts fill the high word of 4-byte elements.
func (l Layout) Encode(q math3d.Quaternion, accel, gyro math3d.IntVector3) []byte {
	packet := make([]byte, l.PacketSize)
	copy(packet, l.Preamble)
	copy(packet[l.PacketSize-len(l.Postamble):], l.Postamble)

	putQ := func(i int, v float32) {
		f := l.QuaternionField
		off := f.Offset + i*f.Width
		if f.Width == 4 {
			binary.BigEndian.PutUint32(packet[off:], uint32(int32(float64(v)*(1<<30))))
			return
		}
		binary.BigEndian.PutUint16(packet[off:], uint16(int16(float64(v)*QuaternionScale)))
	}
	putQ(0, q.W)
	putQ(1, q.X)
	putQ(2, q.Y)
	putQ(3, q.Z)

	putV := func(f Field, v math3d.IntVector3) {
		if !f.Present() {
			return
		}
		for i, c := range []int16{v.X, v.Y, v.Z} {
			off := f.Offset + i*f.Width
			if f.Width == 4 {
				binary.BigEndian.PutUint32(packet[off:], uint32(int32(c)<<16))
			} else {
				binary.BigEndian.PutUint16(packet[off:], uint16(c))
			}
		}
	}
	putV(l.AccelField, accel)
	putV(l.GyroField, gyro)
	return packet
}
