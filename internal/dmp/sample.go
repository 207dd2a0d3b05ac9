// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import "github.com/relabs-tech/inertial_dmp/internal/math3d"

// Sample is everything derived from one DMP packet.
type Sample struct {
	Quaternion math3d.Quaternion   `json:"quaternion"`
	Gravity    math3d.FloatVector3 `json:"gravity"`
	Euler      Euler               `json:"euler"`
	YPR        YawPitchRoll        `json:"ypr"`

	HasAccel         bool              `json:"has_accel"`
	Accel            math3d.IntVector3 `json:"accel"`
	LinearAccel      math3d.IntVector3 `json:"linear_accel"`
	LinearAccelWorld math3d.IntVector3 `json:"linear_accel_world"`

	HasGyro bool              `json:"has_gyro"`
	Gyro    math3d.IntVector3 `json:"gyro"`
}

// Decoder turns packets of one layout into Samples.
type Decoder struct {
	Layout       Layout
	AccelLSBPerG float32
}

// NewDecoder returns a Decoder using DefaultAccelLSBPerG.
func NewDecoder(l Layout) Decoder {
	return Decoder{Layout: l, AccelLSBPerG: DefaultAccelLSBPerG}
}

// Decode extracts the raw fields and derives every quantity the layout
// allows. Like the extraction helpers it does not check packet length.
func (d Decoder) Decode(packet []byte) Sample {
	var s Sample
	s.Quaternion = d.Layout.Quaternion(packet)
	s.Gravity = Gravity(s.Quaternion)
	s.Euler = EulerAngles(s.Quaternion)
	s.YPR = YawPitchRollAngles(s.Quaternion, s.Gravity)

	if accel, err := d.Layout.Accel(packet); err == nil {
		s.HasAccel = true
		s.Accel = accel
		s.LinearAccel = LinearAccel(accel, s.Gravity, d.AccelLSBPerG)
		s.LinearAccelWorld = LinearAccelInWorld(s.LinearAccel, s.Quaternion)
	}
	if gyro, err := d.Layout.Gyro(packet); err == nil {
		s.HasGyro = true
		s.Gyro = gyro
	}
	return s
}
