// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package math3d holds the small quaternion and vector toolkit used to turn
// DMP output into orientation and motion quantities.
//
// Everything is float32 on purpose: the values come out of 16-bit sensor
// registers and the DMP's Q14 quaternion, so single precision is already
// finer than the source data.
package math3d

import "math"

// Quaternion is a rotation quaternion (w, x, y, z).
//
// The zero value is not a rotation; use Identity() for "no rotation".
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Identity returns the quaternion (1, 0, 0, 0).
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Product returns the Hamilton product q ⊗ r. Order matters: q.Product(r)
// applies r first when used for rotation composition.
func (q Quaternion) Product(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns (w, -x, -y, -z). For unit quaternions this is the inverse.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Magnitude returns the Euclidean norm over all four components.
func (q Quaternion) Magnitude() float32 {
	return float32(math.Sqrt(float64(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)))
}

// Normalize scales q to unit length in place.
// A zero quaternion yields NaN components; callers must not pass one.
func (q *Quaternion) Normalize() {
	m := q.Magnitude()
	q.W /= m
	q.X /= m
	q.Y /= m
	q.Z /= m
}

// Normalized returns a unit-length copy of q.
func (q Quaternion) Normalized() Quaternion {
	q.Normalize()
	return q
}
