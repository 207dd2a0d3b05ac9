package math3d

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/num/quat"
)

const tol = 1e-5

func toNumber(q Quaternion) quat.Number {
	return quat.Number{Real: float64(q.W), Imag: float64(q.X), Jmag: float64(q.Y), Kmag: float64(q.Z)}
}

func near(a, b float32, eps float64) bool {
	return scalar.EqualWithinAbs(float64(a), float64(b), eps)
}

func nearQuat(a, b Quaternion, eps float64) bool {
	return near(a.W, b.W, eps) && near(a.X, b.X, eps) && near(a.Y, b.Y, eps) && near(a.Z, b.Z, eps)
}

// axisAngle builds a unit quaternion rotating by angle radians about (x, y, z).
func axisAngle(angle float64, x, y, z float64) Quaternion {
	n := math.Sqrt(x*x + y*y + z*z)
	s := math.Sin(angle/2) / n
	return Quaternion{
		W: float32(math.Cos(angle / 2)),
		X: float32(x * s),
		Y: float32(y * s),
		Z: float32(z * s),
	}
}

var sampleQuats = []Quaternion{
	Identity(),
	axisAngle(math.Pi/2, 0, 0, 1),
	axisAngle(math.Pi/3, 1, 0, 0),
	axisAngle(2*math.Pi/3, 1, 1, 1),
	axisAngle(-0.7, 0.2, -0.5, 0.9),
	{W: 0.5, X: 0.5, Y: -0.5, Z: 0.5},
}

func TestIdentityIsNotZeroValue(t *testing.T) {
	if Identity() != (Quaternion{W: 1}) {
		t.Fatalf("Identity() = %+v", Identity())
	}
	if (Quaternion{}) == Identity() {
		t.Fatal("zero value must not be the identity")
	}
}

func TestProductMatchesHamilton(t *testing.T) {
	a := Quaternion{W: 1, X: 2, Y: 3, Z: 4}
	b := Quaternion{W: -0.5, X: 0.25, Y: 1.5, Z: -2}

	got := a.Product(b)
	want := quat.Mul(toNumber(a), toNumber(b))
	if !nearQuat(got, Quaternion{W: float32(want.Real), X: float32(want.Imag), Y: float32(want.Jmag), Z: float32(want.Kmag)}, 1e-4) {
		t.Fatalf("Product = %+v, want %+v", got, want)
	}

	// Non-commutative.
	if nearQuat(a.Product(b), b.Product(a), 1e-4) {
		t.Fatal("product unexpectedly commutative for these operands")
	}
}

func TestProductWithConjugateIsIdentity(t *testing.T) {
	for _, q := range sampleQuats {
		got := q.Product(q.Conjugate())
		if !nearQuat(got, Identity(), tol) {
			t.Errorf("q*conj(q) for %+v = %+v", q, got)
		}
	}
}

func TestConjugate(t *testing.T) {
	q := Quaternion{W: 0.1, X: 0.2, Y: -0.3, Z: 0.4}
	if got := q.Conjugate(); got != (Quaternion{W: 0.1, X: -0.2, Y: 0.3, Z: -0.4}) {
		t.Fatalf("Conjugate = %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	qs := []Quaternion{
		{W: 2, X: 0, Y: 0, Z: 0},
		{W: 1, X: 2, Y: 3, Z: 4},
		{W: -0.01, X: 0.003, Y: 0.2, Z: -7},
	}
	for _, q := range qs {
		n := q.Normalized()
		if !near(n.Magnitude(), 1, tol) {
			t.Errorf("|normalized(%+v)| = %v", q, n.Magnitude())
		}
		if !near(q.Magnitude(), float32(quat.Abs(toNumber(q))), 1e-4) {
			t.Errorf("Magnitude(%+v) = %v", q, q.Magnitude())
		}
	}

	q := Quaternion{W: 0, X: 3, Y: 0, Z: 4}
	q.Normalize()
	if !nearQuat(q, Quaternion{X: 0.6, Z: 0.8}, tol) {
		t.Fatalf("Normalize in place = %+v", q)
	}
}

func TestNormalizeZeroIsNaN(t *testing.T) {
	q := Quaternion{}
	q.Normalize()
	if !math.IsNaN(float64(q.W)) {
		t.Fatalf("normalizing zero quaternion = %+v, expected NaN", q)
	}
}

func TestRotateIdentity(t *testing.T) {
	iv := IntVector3{X: 123, Y: -4567, Z: 16384}
	if got := iv.Rotated(Identity()); got != iv {
		t.Errorf("int rotate by identity = %+v", got)
	}
	fv := FloatVector3{X: 0.25, Y: -1.5, Z: 9.81}
	if got := fv.Rotated(Identity()); got != fv {
		t.Errorf("float rotate by identity = %+v", got)
	}
}

func TestRotateMatchesGonum(t *testing.T) {
	v := FloatVector3{X: 1, Y: 2, Z: 3}
	for _, q := range sampleQuats {
		got := v.Rotated(q)

		qn := toNumber(q)
		p := quat.Number{Imag: 1, Jmag: 2, Kmag: 3}
		want := quat.Mul(quat.Mul(qn, p), quat.Conj(qn))

		if !near(got.X, float32(want.Imag), 1e-4) || !near(got.Y, float32(want.Jmag), 1e-4) || !near(got.Z, float32(want.Kmag), 1e-4) {
			t.Errorf("rotate by %+v = %+v, want %v", q, got, want)
		}
	}
}

func TestRotateQuarterTurnAboutZ(t *testing.T) {
	q := axisAngle(math.Pi/2, 0, 0, 1)
	got := FloatVector3{X: 1}.Rotated(q)
	if !near(got.X, 0, tol) || !near(got.Y, 1, tol) || !near(got.Z, 0, tol) {
		t.Fatalf("x axis rotated 90° about z = %+v", got)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	v := FloatVector3{X: -3.5, Y: 0.125, Z: 7}
	for _, q := range sampleQuats {
		back := v.Rotated(q).Rotated(q.Conjugate())
		if !near(back.X, v.X, 1e-4) || !near(back.Y, v.Y, 1e-4) || !near(back.Z, v.Z, 1e-4) {
			t.Errorf("round trip through %+v = %+v", q, back)
		}
	}
}

func TestIntRoundTripBoundedError(t *testing.T) {
	v := IntVector3{X: 1000, Y: -2000, Z: 16000}
	for _, q := range sampleQuats {
		back := v.Rotated(q).Rotated(q.Conjugate())
		// One truncation per rotation, each at most one count per axis,
		// plus float32 rounding in the sandwich product.
		for _, d := range []int{
			int(back.X) - int(v.X),
			int(back.Y) - int(v.Y),
			int(back.Z) - int(v.Z),
		} {
			if d < -2 || d > 2 {
				t.Errorf("int round trip through %+v = %+v (from %+v)", q, back, v)
				break
			}
		}
	}
}

func TestIntRotateTruncates(t *testing.T) {
	// 45° about z maps (1, 0, 0) to (0.707, 0.707, 0): both truncate to 0.
	q := axisAngle(math.Pi/4, 0, 0, 1)
	got := IntVector3{X: 1}.Rotated(q)
	if got != (IntVector3{}) {
		t.Fatalf("expected truncation to zero, got %+v", got)
	}

	fgot := FloatVector3{X: 1}.Rotated(q)
	if !near(fgot.X, float32(math.Sqrt2/2), tol) {
		t.Fatalf("float path lost precision: %+v", fgot)
	}
}

func TestVectorNormalize(t *testing.T) {
	f := FloatVector3{X: 3, Y: 0, Z: 4}.Normalized()
	if !near(f.X, 0.6, tol) || !near(f.Z, 0.8, tol) {
		t.Fatalf("float normalized = %+v", f)
	}

	i := IntVector3{X: 30, Y: 0, Z: -40}
	i.Normalize()
	if i != (IntVector3{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("int normalized = %+v", i)
	}
	if got := (IntVector3{Z: -5}).Normalized(); got != (IntVector3{Z: -1}) {
		t.Fatalf("int axis normalized = %+v", got)
	}
}

func TestFloatAndScale(t *testing.T) {
	v := Vec3[int16](2048, -1024, 16384)
	if got := v.Float().Scale(1.0 / 2048); got != (FloatVector3{X: 1, Y: -0.5, Z: 8}) {
		t.Fatalf("Float().Scale = %+v", got)
	}
	if got := v.Scale(0.5); got != (IntVector3{X: 1024, Y: -512, Z: 8192}) {
		t.Fatalf("int Scale = %+v", got)
	}
	if m := (IntVector3{X: 3, Y: 4}).Magnitude(); m != 5 {
		t.Fatalf("Magnitude = %v", m)
	}
}
