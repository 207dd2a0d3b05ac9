package orientation

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/imu"
	"github.com/relabs-tech/inertial_dmp/internal/math3d"
)

func TestFromYawPitchRoll(t *testing.T) {
	p := FromYawPitchRoll(dmp.YawPitchRoll{Yaw: -math.Pi / 2, Pitch: math.Pi / 6, Roll: math.Pi / 4})
	if !scalar.EqualWithinAbs(p.Yaw, -90, 1e-4) || !scalar.EqualWithinAbs(p.Pitch, 30, 1e-4) || !scalar.EqualWithinAbs(p.Roll, 45, 1e-4) {
		t.Fatalf("pose = %+v", p)
	}
	if !scalar.EqualWithinAbs(p.Heading, 270, 1e-4) {
		t.Fatalf("heading = %v", p.Heading)
	}
}

func TestComputePoseFromAccel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 2048)
	if p.Roll != 0 || p.Pitch != 0 || p.Yaw != 0 {
		t.Fatalf("level pose = %+v", p)
	}
	p = ComputePoseFromAccel(0, 2048, 0)
	if !scalar.EqualWithinAbs(p.Roll, 90, 1e-9) {
		t.Fatalf("roll = %v", p.Roll)
	}
}

func TestSamplePayloads(t *testing.T) {
	packet := dmp.MotionApps612.Encode(math3d.Identity(), math3d.IntVector3{X: 100, Z: 2048}, math3d.IntVector3{Y: -7})
	s := dmp.NewDecoder(dmp.MotionApps612).Decode(packet)
	now := time.Unix(1700000000, 0)

	q, raw, motion := imu.FromSample("sim", s, now)
	if q.Quaternion != math3d.Identity() || q.Source != "sim" || !q.Time.Equal(now) {
		t.Fatalf("quaternion payload = %+v", q)
	}
	if !raw.HasAccel || raw.Ax != 100 || raw.Az != 2048 || raw.Gy != -7 {
		t.Fatalf("raw payload = %+v", raw)
	}
	if motion == nil || motion.LinearAccel != (math3d.IntVector3{X: 100}) {
		t.Fatalf("motion payload = %+v", motion)
	}

	teapot := dmp.NewDecoder(dmp.Teapot).Decode(dmp.Teapot.Encode(math3d.Identity(), math3d.IntVector3{}, math3d.IntVector3{}))
	if _, _, m := imu.FromSample("serial", teapot, now); m != nil {
		t.Fatalf("motion from quaternion-only layout: %+v", m)
	}

	if p := FromSample(s); p.Roll != 0 || p.Pitch != 0 || p.Yaw != 0 {
		t.Fatalf("identity pose = %+v", p)
	}
}
