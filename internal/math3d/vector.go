// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package math3d

import "math"

// Scalar is the set of element types a Vector3 may hold. The element type
// doubles as the rounding policy:
//
//   - int16 keeps values in the sensor's native count domain. Every rotation
//     and normalization is computed in float32 and truncated toward zero back
//     to int16, so precision is lost on each call and repeated rotations
//     accumulate that error.
//   - float32 keeps full single precision.
type Scalar interface {
	~int16 | ~float32
}

// Vector3 is a three component vector.
type Vector3[T Scalar] struct {
	X T `json:"x"`
	Y T `json:"y"`
	Z T `json:"z"`
}

// IntVector3 holds raw or rotated sensor counts (accelerometer, gyroscope).
type IntVector3 = Vector3[int16]

// FloatVector3 holds unit-less derived vectors such as gravity.
type FloatVector3 = Vector3[float32]

// Vec3 is shorthand for building a vector of either element type.
func Vec3[T Scalar](x, y, z T) Vector3[T] {
	return Vector3[T]{X: x, Y: y, Z: z}
}

// Magnitude returns the Euclidean length, computed in float32.
func (v Vector3[T]) Magnitude() float32 {
	x, y, z := float32(v.X), float32(v.Y), float32(v.Z)
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}

// Normalize divides each component by the magnitude in place.
// For IntVector3 the result truncates to -1, 0 or 1 per axis.
func (v *Vector3[T]) Normalize() {
	m := v.Magnitude()
	v.X = T(float32(v.X) / m)
	v.Y = T(float32(v.Y) / m)
	v.Z = T(float32(v.Z) / m)
}

// Normalized returns a normalized copy of v.
func (v Vector3[T]) Normalized() Vector3[T] {
	v.Normalize()
	return v
}

// Rotate rotates v in place by the unit quaternion q using q ⊗ p ⊗ q*,
// where p is v embedded as the pure quaternion (0, x, y, z).
// The math runs in float32; int16 vectors are truncated afterwards.
func (v *Vector3[T]) Rotate(q Quaternion) {
	p := Quaternion{W: 0, X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
	p = q.Product(p)
	p = p.Product(q.Conjugate())
	v.X = T(p.X)
	v.Y = T(p.Y)
	v.Z = T(p.Z)
}

// Rotated returns v rotated by q, leaving v untouched.
func (v Vector3[T]) Rotated(q Quaternion) Vector3[T] {
	v.Rotate(q)
	return v
}

// Float widens v to a FloatVector3 without scaling.
func (v Vector3[T]) Float() FloatVector3 {
	return FloatVector3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// Scale returns v with every component multiplied by s, computed in float32
// and converted back with the element type's rounding policy.
func (v Vector3[T]) Scale(s float32) Vector3[T] {
	return Vector3[T]{
		X: T(float32(v.X) * s),
		Y: T(float32(v.Y) * s),
		Z: T(float32(v.Z) * s),
	}
}
