// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"math"

	"github.com/relabs-tech/inertial_dmp/internal/math3d"
)

// DefaultAccelLSBPerG is the accelerometer count per 1 g used when removing
// gravity from raw accel (±16 g full scale).
const DefaultAccelLSBPerG = 2048

// Euler holds the quaternion's Euler angles in radians.
type Euler struct {
	Psi   float32 `json:"psi"`
	Theta float32 `json:"theta"`
	Phi   float32 `json:"phi"`
}

// YawPitchRoll holds the gravity-referenced angles in radians.
type YawPitchRoll struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
	Roll  float32 `json:"roll"`
}

func atan2(y, x float32) float32 { return float32(math.Atan2(float64(y), float64(x))) }

// Gravity returns the gravity direction in the sensor frame. It is the third
// row of q's rotation matrix, written out directly.
func Gravity(q math3d.Quaternion) math3d.FloatVector3 {
	return math3d.FloatVector3{
		X: 2 * (q.X*q.Z - q.W*q.Y),
		Y: 2 * (q.W*q.X + q.Y*q.Z),
		Z: q.W*q.W - q.X*q.X - q.Y*q.Y + q.Z*q.Z,
	}
}

// EulerAngles converts q to (psi, theta, phi).
func EulerAngles(q math3d.Quaternion) Euler {
	return Euler{
		Psi:   atan2(2*q.X*q.Y-2*q.W*q.Z, 2*q.W*q.W+2*q.X*q.X-1),
		Theta: -float32(math.Asin(float64(2*q.X*q.Z + 2*q.W*q.Y))),
		Phi:   atan2(2*q.Y*q.Z-2*q.W*q.X, 2*q.W*q.W+2*q.Z*q.Z-1),
	}
}

// YawPitchRollAngles decomposes the orientation using the gravity vector for
// pitch and roll. When the sensor is upside down (gravity.Z < 0) pitch is
// mirrored to ±π − pitch so it stays continuous through vertical.
func YawPitchRollAngles(q math3d.Quaternion, gravity math3d.FloatVector3) YawPitchRoll {
	g := gravity
	ypr := YawPitchRoll{
		Yaw:   atan2(2*q.X*q.Y-2*q.W*q.Z, 2*q.W*q.W+2*q.X*q.X-1),
		Pitch: atan2(g.X, float32(math.Sqrt(float64(g.Y*g.Y+g.Z*g.Z)))),
		Roll:  atan2(g.Y, g.Z),
	}
	if g.Z < 0 {
		if ypr.Pitch > 0 {
			ypr.Pitch = math.Pi - ypr.Pitch
		} else {
			ypr.Pitch = -math.Pi - ypr.Pitch
		}
	}
	return ypr
}

// LinearAccel removes gravity from raw accel counts. lsbPerG is the count
// that corresponds to 1 g at the configured accel range. Results saturate
// at the int16 limits.
func LinearAccel(raw math3d.IntVector3, gravity math3d.FloatVector3, lsbPerG float32) math3d.IntVector3 {
	return math3d.IntVector3{
		X: saturate16(float32(raw.X) - gravity.X*lsbPerG),
		Y: saturate16(float32(raw.Y) - gravity.Y*lsbPerG),
		Z: saturate16(float32(raw.Z) - gravity.Z*lsbPerG),
	}
}

// saturate16 truncates toward zero like a plain conversion but clamps
// instead of wrapping.
func saturate16(f float32) int16 {
	switch {
	case f >= math.MaxInt16:
		return math.MaxInt16
	case f <= math.MinInt16:
		return math.MinInt16
	}
	return int16(f)
}

// LinearAccelInWorld rotates body-frame linear acceleration into the world
// frame. q already maps body to world, so this is a plain rotation by q with
// the int16 truncation that implies.
func LinearAccelInWorld(body math3d.IntVector3, q math3d.Quaternion) math3d.IntVector3 {
	return body.Rotated(q)
}
