// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"time"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/math3d"
)

// IMURaw represents the raw sensor counts carried in one DMP packet.
// Fields the packet layout does not carry are zero and flagged false.
type IMURaw struct {
	Source string `json:"source"` // "i2c", "spi", "serial" or "sim"

	HasAccel bool  `json:"has_accel"`
	Ax       int16 `json:"ax"` // accel
	Ay       int16 `json:"ay"`
	Az       int16 `json:"az"`

	HasGyro bool  `json:"has_gyro"`
	Gx      int16 `json:"gx"` // gyro
	Gy      int16 `json:"gy"`
	Gz      int16 `json:"gz"`

	Time time.Time `json:"time"`
}

// Motion is the gravity-compensated acceleration derived from one packet.
type Motion struct {
	Source string `json:"source"`

	Gravity          math3d.FloatVector3 `json:"gravity"`
	LinearAccel      math3d.IntVector3   `json:"linear_accel"`
	LinearAccelWorld math3d.IntVector3   `json:"linear_accel_world"`

	Time time.Time `json:"time"`
}

// Quaternion is the orientation payload.
type Quaternion struct {
	Source string `json:"source"`
	math3d.Quaternion
	Time time.Time `json:"time"`
}

// FromSample splits a decoded sample into the published payloads. motion is
// nil when the layout carries no accelerometer data.
func FromSample(source string, s dmp.Sample, t time.Time) (Quaternion, IMURaw, *Motion) {
	q := Quaternion{Source: source, Quaternion: s.Quaternion, Time: t}
	raw := IMURaw{
		Source:   source,
		HasAccel: s.HasAccel,
		Ax:       s.Accel.X,
		Ay:       s.Accel.Y,
		Az:       s.Accel.Z,
		HasGyro:  s.HasGyro,
		Gx:       s.Gyro.X,
		Gy:       s.Gyro.Y,
		Gz:       s.Gyro.Z,
		Time:     t,
	}
	if !s.HasAccel {
		return q, raw, nil
	}
	return q, raw, &Motion{
		Source:           source,
		Gravity:          s.Gravity,
		LinearAccel:      s.LinearAccel,
		LinearAccelWorld: s.LinearAccelWorld,
		Time:             t,
	}
}
