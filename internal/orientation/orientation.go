// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

// Pose is the canonical representation of orientation for your app, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	// Heading is Yaw folded into [0, 360).
	Heading float64 `json:"heading"`
}

const radToDeg = 180.0 / math.Pi

// FromYawPitchRoll converts DMP yaw/pitch/roll (radians) to a Pose.
func FromYawPitchRoll(ypr dmp.YawPitchRoll) Pose {
	yaw := float64(ypr.Yaw) * radToDeg
	heading := math.Mod(yaw, 360)
	if heading < 0 {
		heading += 360
	}
	return Pose{
		Roll:    float64(ypr.Roll) * radToDeg,
		Pitch:   float64(ypr.Pitch) * radToDeg,
		Yaw:     yaw,
		Heading: heading,
	}
}

// FromSample is FromYawPitchRoll applied to a decoded sample.
func FromSample(s dmp.Sample) Pose {
	return FromYawPitchRoll(s.YPR)
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0. The console uses it as a cross-check against the DMP attitude.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	return Pose{
		Roll:  math.Atan2(ay, az) * radToDeg,
		Pitch: math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * radToDeg,
	}
}
