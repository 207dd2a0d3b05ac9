// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is an in-memory MPU-6050 register file good enough to run DMP
// bring-up and FIFO draining without hardware.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/math3d"
)

// FIFOSize matches the MPU-6050's 1 KiB FIFO.
const FIFOSize = 1024

const memBanks = 32

// MPU simulates the registers, DMP memory banks and FIFO of one sensor.
// It implements dmp.Transport.
type MPU struct {
	mu     sync.Mutex
	whoAmI byte
	regs   [256]byte
	mem    [memBanks][dmp.MemBankSize]byte
	fifo   []byte

	// FailRead / FailWrite make accesses to the given register fail.
	FailRead  map[byte]error
	FailWrite map[byte]error
	// DropMemoryWrites silently discards DMP memory writes, which makes
	// firmware verification fail.
	DropMemoryWrites bool
}

// New returns a powered-up simulated MPU-6050.
func New() *MPU {
	m := &MPU{
		FailRead:  map[byte]error{},
		FailWrite: map[byte]error{},
		whoAmI:    dmp.WhoAmIMPU6050,
	}
	m.powerOn()
	return m
}

func (m *MPU) powerOn() {
	m.regs = [256]byte{}
	m.regs[dmp.RegPwrMgmt1] = dmp.PwrSleep
	m.regs[dmp.RegWhoAmI] = m.whoAmI
	m.fifo = m.fifo[:0]
}

// SetWhoAmI changes the identity register. It survives device resets.
func (m *MPU) SetWhoAmI(id byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whoAmI = id
	m.regs[dmp.RegWhoAmI] = id
}

// Register returns the current value of reg.
func (m *MPU) Register(reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Memory returns a copy of n bytes of DMP memory from bank:addr.
func (m *MPU) Memory(bank, addr byte, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, 0, n)
	b, a := int(bank), int(addr)
	for len(out) < n && b < memBanks {
		out = append(out, m.mem[b][a])
		a++
		if a == dmp.MemBankSize {
			a = 0
			b++
		}
	}
	return out
}

// Push appends a packet to the FIFO. As on the chip, when the FIFO is full
// the oldest bytes are dropped and the overflow flag is raised.
func (m *MPU) Push(packet []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fifo = append(m.fifo, packet...)
	if over := len(m.fifo) - FIFOSize; over > 0 {
		m.fifo = append(m.fifo[:0], m.fifo[over:]...)
		m.regs[dmp.RegIntStatus] |= dmp.IntFIFOOverflow
	}
}

// Queued returns the number of bytes in the FIFO.
func (m *MPU) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fifo)
}

func (m *MPU) memPointer() (int, int) {
	return int(m.regs[dmp.RegBankSel] & 0x1F), int(m.regs[dmp.RegMemStart])
}

func (m *MPU) advanceMem(bank, addr int) {
	addr++
	if addr == dmp.MemBankSize {
		addr = 0
		bank++
	}
	m.regs[dmp.RegBankSel] = (m.regs[dmp.RegBankSel] &^ 0x1F) | byte(bank&0x1F)
	m.regs[dmp.RegMemStart] = byte(addr)
}

// ReadRegisters implements dmp.Transport. FIFO_R_W and MEM_R_W stream from
// the same address; every other register auto-increments.
func (m *MPU) ReadRegisters(reg byte, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailRead[reg]; err != nil {
		return err
	}
	switch reg {
	case dmp.RegFIFORW:
		n := copy(buf, m.fifo)
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		m.fifo = append(m.fifo[:0], m.fifo[n:]...)
		return nil
	case dmp.RegMemRW:
		for i := range buf {
			bank, addr := m.memPointer()
			buf[i] = m.mem[bank][addr]
			m.advanceMem(bank, addr)
		}
		return nil
	}
	for i := range buf {
		r := reg + byte(i)
		switch r {
		case dmp.RegFIFOCountH:
			buf[i] = byte(len(m.fifo) >> 8)
		case dmp.RegFIFOCountL:
			buf[i] = byte(len(m.fifo))
		case dmp.RegIntStatus:
			buf[i] = m.regs[r]
			m.regs[r] = 0
		default:
			buf[i] = m.regs[r]
		}
	}
	return nil
}

// WriteRegisters implements dmp.Transport.
func (m *MPU) WriteRegisters(reg byte, data ...byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailWrite[reg]; err != nil {
		return err
	}
	switch reg {
	case dmp.RegMemRW:
		for _, b := range data {
			bank, addr := m.memPointer()
			if !m.DropMemoryWrites {
				m.mem[bank][addr] = b
			}
			m.advanceMem(bank, addr)
		}
		return nil
	case dmp.RegFIFORW:
		return nil
	}
	for i, v := range data {
		r := reg + byte(i)
		switch r {
		case dmp.RegPwrMgmt1:
			if v&dmp.PwrDeviceReset != 0 {
				m.powerOn()
				continue
			}
			m.regs[r] = v
		case dmp.RegUserCtrl:
			if v&dmp.UserFIFOReset != 0 {
				m.fifo = m.fifo[:0]
			}
			// Reset bits self-clear.
			m.regs[r] = v &^ (dmp.UserFIFOReset | dmp.UserDMPReset)
		case dmp.RegWhoAmI, dmp.RegFIFOCountH, dmp.RegFIFOCountL, dmp.RegIntStatus:
			// read-only
		default:
			m.regs[r] = v
		}
	}
	return nil
}

func (m *MPU) String() string {
	return fmt.Sprintf("sim.MPU{fifo=%d bytes}", m.Queued())
}

// Motion produces a slow synthetic rotation: a yaw sweep with a gentle
// roll wobble, the sensor otherwise at rest.
type Motion struct {
	Start        time.Time
	AccelLSBPerG float32
}

// At returns the quaternion, accel and gyro counts at time t.
func (mo Motion) At(t time.Time) (math3d.Quaternion, math3d.IntVector3, math3d.IntVector3) {
	el := t.Sub(mo.Start).Seconds()
	yaw := math.Mod(el*0.5, 2*math.Pi)
	roll := 0.3 * math.Sin(el)

	qYaw := math3d.Quaternion{W: float32(math.Cos(yaw / 2)), Z: float32(math.Sin(yaw / 2))}
	qRoll := math3d.Quaternion{W: float32(math.Cos(roll / 2)), X: float32(math.Sin(roll / 2))}
	q := qYaw.Product(qRoll).Normalized()

	g := dmp.Gravity(q)
	accel := g.Scale(mo.AccelLSBPerG)
	return q,
		math3d.IntVector3{X: int16(accel.X), Y: int16(accel.Y), Z: int16(accel.Z)},
		math3d.IntVector3{X: int16(300 * math.Cos(el)), Z: 500}
}

// Packet encodes the state at t in layout l.
func (mo Motion) Packet(l dmp.Layout, t time.Time) []byte {
	q, a, g := mo.At(t)
	return l.Encode(q, a, g)
}

// Generator feeds Motion packets into an MPU at a fixed sample period,
// catching up on simulated time each time Advance is called.
type Generator struct {
	MPU    *MPU
	Layout dmp.Layout
	Motion Motion
	Period time.Duration

	next time.Time
}

// Advance pushes every packet due up to now and returns how many it pushed.
func (g *Generator) Advance(now time.Time) int {
	if g.next.IsZero() {
		g.next = g.Motion.Start
		if g.next.IsZero() {
			g.next = now
			g.Motion.Start = now
		}
	}
	n := 0
	for !g.next.After(now) {
		g.MPU.Push(g.Motion.Packet(g.Layout, g.next))
		g.next = g.next.Add(g.Period)
		n++
	}
	return n
}

// Firmware returns a placeholder DMP image for the simulated MPU. The
// simulator stores but never runs it.
func Firmware(l dmp.Layout) dmp.Firmware {
	img := make([]byte, 2*dmp.MemBankSize)
	for i := range img {
		img[i] = byte(i ^ 0xA5)
	}
	return dmp.Firmware{
		Revision:     l.Revision,
		Image:        img,
		Config:       []byte{0, 0, 0, 0x01},
		StartAddress: dmp.DefaultStartAddress,
	}
}
