package sim

import (
	"bytes"
	"testing"
	"time"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

func TestMemoryAutoIncrementAcrossBanks(t *testing.T) {
	m := New()
	if err := m.WriteRegisters(dmp.RegBankSel, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteRegisters(dmp.RegMemStart, 0xFE); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteRegisters(dmp.RegMemRW, 1, 2, 3, 4); err != nil {
		t.Fatal(err)
	}
	if got := m.Memory(0, 0xFE, 4); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("memory = % x", got)
	}
	if m.Register(dmp.RegBankSel) != 1 || m.Register(dmp.RegMemStart) != 2 {
		t.Fatalf("pointer = %d:%d", m.Register(dmp.RegBankSel), m.Register(dmp.RegMemStart))
	}
}

func TestFIFOReadAndCount(t *testing.T) {
	m := New()
	m.Push([]byte{1, 2, 3})
	var count [2]byte
	if err := m.ReadRegisters(dmp.RegFIFOCountH, count[:]); err != nil || count != [2]byte{0, 3} {
		t.Fatalf("count = % x, %v", count, err)
	}
	buf := make([]byte, 2)
	if err := m.ReadRegisters(dmp.RegFIFORW, buf); err != nil || !bytes.Equal(buf, []byte{1, 2}) {
		t.Fatalf("fifo = % x, %v", buf, err)
	}
	if m.Queued() != 1 {
		t.Fatalf("queued = %d", m.Queued())
	}
}

func TestResetRestoresIdentity(t *testing.T) {
	m := New()
	m.SetWhoAmI(0x70)
	m.Push([]byte{1})
	if err := m.WriteRegisters(dmp.RegPwrMgmt1, dmp.PwrDeviceReset); err != nil {
		t.Fatal(err)
	}
	if m.Register(dmp.RegWhoAmI) != 0x70 || m.Queued() != 0 || m.Register(dmp.RegPwrMgmt1) != dmp.PwrSleep {
		t.Fatalf("after reset: id=0x%02X queued=%d pwr=0x%02X", m.Register(dmp.RegWhoAmI), m.Queued(), m.Register(dmp.RegPwrMgmt1))
	}
}

func TestGeneratorCatchesUp(t *testing.T) {
	start := time.Unix(100, 0)
	g := &Generator{
		MPU:    New(),
		Layout: dmp.MotionApps612,
		Motion: Motion{Start: start, AccelLSBPerG: dmp.DefaultAccelLSBPerG},
		Period: 5 * time.Millisecond,
	}
	if n := g.Advance(start.Add(12 * time.Millisecond)); n != 3 {
		t.Fatalf("pushed %d packets for 0,5,10 ms", n)
	}
	if n := g.Advance(start.Add(14 * time.Millisecond)); n != 0 {
		t.Fatalf("pushed %d packets before 15 ms", n)
	}
	if g.MPU.Queued() != 3*dmp.MotionApps612.PacketSize {
		t.Fatalf("queued = %d", g.MPU.Queued())
	}
}

func TestSimulatedBringUp(t *testing.T) {
	m := New()
	opts := dmp.DefaultOptions()
	opts.ResetDelay = 0
	dev, err := dmp.Initialize(m, Firmware(dmp.MotionApps20), dmp.MotionApps20, opts)
	if err != nil {
		t.Fatal(err)
	}
	g := &Generator{MPU: m, Layout: dmp.MotionApps20, Motion: Motion{AccelLSBPerG: dmp.DefaultAccelLSBPerG}, Period: 10 * time.Millisecond}
	now := time.Now()
	g.Advance(now)
	g.Advance(now.Add(25 * time.Millisecond))
	n, err := dev.ReadAndProcessPackets(10, func(dmp.Sample) error { return nil })
	if err != nil || n != 3 {
		t.Fatalf("processed %d, %v", n, err)
	}
}
