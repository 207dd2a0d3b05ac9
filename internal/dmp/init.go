// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"bytes"
	"fmt"
	"time"
)

// Transport is the register bus the sensor hangs off (I2C or SPI). Calls
// block on bus I/O; timeouts are the transport's business.
type Transport interface {
	ReadRegisters(reg byte, buf []byte) error
	WriteRegisters(reg byte, data ...byte) error
}

// Stage names the bring-up step that failed.
type Stage int

const (
	StageFirmwareLoad   Stage = iota + 1 // writing or verifying the DMP image
	StageConfigUpdate                    // applying the DMP configuration set
	StageReset                           // device reset / wake
	StageIdentity                        // WHO_AM_I mismatch
	StageRegisterConfig                  // clock, rate, filter, range, program start
	StageEnable                          // FIFO and DMP enable
)

func (s Stage) String() string {
	switch s {
	case StageFirmwareLoad:
		return "firmware load"
	case StageConfigUpdate:
		return "DMP configuration update"
	case StageReset:
		return "device reset"
	case StageIdentity:
		return "device identity"
	case StageRegisterConfig:
		return "register configuration"
	case StageEnable:
		return "FIFO/DMP enable"
	default:
		return fmt.Sprintf("stage %d", int(s))
	}
}

// InitError reports which bring-up stage failed. Code() is the numeric
// status for callers that log or export a single number.
type InitError struct {
	Stage Stage
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("dmp init: %s (status %d): %v", e.Stage, e.Code(), e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Code returns the status code: 1 firmware load, 2 config update,
// 3 reset, 4 identity, 5 register config, 6 enable.
func (e *InitError) Code() int { return int(e.Stage) }

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &InitError{Stage: s, Err: err}
}

// Options tune bring-up. The zero value is not usable; start from DefaultOptions.
type Options struct {
	// AcceptedIDs lists WHO_AM_I values treated as a compatible device.
	AcceptedIDs []byte
	// SampleRateDiv sets the output rate to 1 kHz / (1 + div).
	SampleRateDiv byte
	// DLPF is the CONFIG register's DLPF_CFG value.
	DLPF byte
	// GyroFullScale is FS_SEL (3 = ±2000 °/s, what the DMP images expect).
	GyroFullScale byte
	// AccelLSBPerG feeds the decoder's gravity removal.
	AccelLSBPerG float32
	// ResetDelay is waited after reset and after wake.
	ResetDelay time.Duration
	// SkipVerify disables read-back of DMP memory writes.
	SkipVerify bool
}

// DefaultOptions mirrors the vendor sample configuration: 200 Hz, 42 Hz DLPF,
// ±2000 °/s.
func DefaultOptions() Options {
	return Options{
		AcceptedIDs:   []byte{WhoAmIMPU6050, 0x70, 0x71, 0x73},
		SampleRateDiv: 4,
		DLPF:          3,
		GyroFullScale: 3,
		AccelLSBPerG:  DefaultAccelLSBPerG,
		ResetDelay:    30 * time.Millisecond,
	}
}

// Initialize resets the sensor, loads the DMP firmware, configures the
// registers the DMP needs and enables the FIFO. On success the returned
// Device owns the packet size and buffer for this sensor; nothing is shared
// between devices. Errors are *InitError.
func Initialize(tr Transport, fw Firmware, layout Layout, opts Options) (*Device, error) {
	if err := layout.Validate(); err != nil {
		return nil, stageErr(StageFirmwareLoad, err)
	}
	if fw.Revision != "" && layout.Revision != "" && fw.Revision != layout.Revision {
		return nil, stageErr(StageFirmwareLoad,
			fmt.Errorf("firmware revision %q does not match layout %q revision %q", fw.Revision, layout.Name, layout.Revision))
	}

	if err := resetDevice(tr, opts.ResetDelay); err != nil {
		return nil, stageErr(StageReset, err)
	}
	if err := checkIdentity(tr, opts.AcceptedIDs); err != nil {
		return nil, stageErr(StageIdentity, err)
	}
	if err := writeMemoryBlock(tr, fw.Image, 0, 0, !opts.SkipVerify); err != nil {
		return nil, stageErr(StageFirmwareLoad, err)
	}
	if err := writeConfigSet(tr, fw.Config, !opts.SkipVerify); err != nil {
		return nil, stageErr(StageConfigUpdate, err)
	}
	if err := configureRegisters(tr, fw.StartAddress, opts); err != nil {
		return nil, stageErr(StageRegisterConfig, err)
	}
	if err := enableDMP(tr); err != nil {
		return nil, stageErr(StageEnable, err)
	}

	return newDevice(tr, layout, opts.AccelLSBPerG), nil
}

func resetDevice(tr Transport, delay time.Duration) error {
	if err := tr.WriteRegisters(RegPwrMgmt1, PwrDeviceReset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	time.Sleep(delay)
	if err := tr.WriteRegisters(RegPwrMgmt1, 0x00); err != nil {
		return fmt.Errorf("wake: %w", err)
	}
	time.Sleep(delay)
	return nil
}

func checkIdentity(tr Transport, accepted []byte) error {
	var id [1]byte
	if err := tr.ReadRegisters(RegWhoAmI, id[:]); err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if bytes.IndexByte(accepted, id[0]) < 0 {
		return fmt.Errorf("unexpected WHO_AM_I 0x%02X", id[0])
	}
	return nil
}

func setMemoryAddress(tr Transport, bank, addr byte) error {
	if err := tr.WriteRegisters(RegBankSel, bank&0x1F); err != nil {
		return fmt.Errorf("select bank %d: %w", bank, err)
	}
	if err := tr.WriteRegisters(RegMemStart, addr); err != nil {
		return fmt.Errorf("set memory address %d:0x%02X: %w", bank, addr, err)
	}
	return nil
}

// writeMemoryBlock writes data into DMP memory starting at bank:addr in
// chunks that never cross a bank boundary, optionally reading each chunk
// back.
func writeMemoryBlock(tr Transport, data []byte, bank, addr byte, verify bool) error {
	if err := setMemoryAddress(tr, bank, addr); err != nil {
		return err
	}
	readBack := make([]byte, MemChunkSize)
	for i := 0; i < len(data); {
		n := MemChunkSize
		if rem := len(data) - i; n > rem {
			n = rem
		}
		if room := MemBankSize - int(addr); n > room {
			n = room
		}
		chunk := data[i : i+n]
		if err := tr.WriteRegisters(RegMemRW, chunk...); err != nil {
			return fmt.Errorf("write memory %d:0x%02X: %w", bank, addr, err)
		}
		if verify {
			if err := setMemoryAddress(tr, bank, addr); err != nil {
				return err
			}
			if err := tr.ReadRegisters(RegMemRW, readBack[:n]); err != nil {
				return fmt.Errorf("verify memory %d:0x%02X: %w", bank, addr, err)
			}
			if !bytes.Equal(chunk, readBack[:n]) {
				return fmt.Errorf("verify memory %d:0x%02X: read-back mismatch", bank, addr)
			}
		}
		i += n
		addr += byte(n)
		if addr == 0 {
			bank++
		}
		if i < len(data) {
			if err := setMemoryAddress(tr, bank, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

const configSpecialIntEnable = 0x01

func writeConfigSet(tr Transport, cfg []byte, verify bool) error {
	for i := 0; i < len(cfg); {
		if i+3 > len(cfg) {
			return fmt.Errorf("config set truncated at byte %d", i)
		}
		bank, offset, length := cfg[i], cfg[i+1], int(cfg[i+2])
		i += 3
		if length == 0 {
			if i >= len(cfg) {
				return fmt.Errorf("config set: special record truncated at byte %d", i)
			}
			special := cfg[i]
			i++
			switch special {
			case configSpecialIntEnable:
				if err := tr.WriteRegisters(RegIntEnable, IntFIFOOverflow|IntDMP); err != nil {
					return fmt.Errorf("config set: enable DMP interrupts: %w", err)
				}
			default:
				return fmt.Errorf("config set: unknown special record 0x%02X", special)
			}
			continue
		}
		if i+length > len(cfg) {
			return fmt.Errorf("config set: record at %d:0x%02X truncated", bank, offset)
		}
		if err := writeMemoryBlock(tr, cfg[i:i+length], bank, offset, verify); err != nil {
			return err
		}
		i += length
	}
	return nil
}

func configureRegisters(tr Transport, start uint16, opts Options) error {
	writes := []struct {
		name string
		reg  byte
		val  byte
	}{
		{"clock source", RegPwrMgmt1, ClockPLLZGyro},
		{"interrupt enable", RegIntEnable, IntFIFOOverflow | IntDMP},
		{"sample rate divider", RegSmplrtDiv, opts.SampleRateDiv},
		{"DLPF", RegConfig, ExtSyncTempOutL | (opts.DLPF & 0x07)},
		{"gyro full scale", RegGyroConfig, (opts.GyroFullScale & 0x03) << 3},
		{"program start high", RegDMPCfg1, byte(start >> 8)},
		{"program start low", RegDMPCfg2, byte(start)},
	}
	for _, w := range writes {
		if err := tr.WriteRegisters(w.reg, w.val); err != nil {
			return fmt.Errorf("%s: %w", w.name, err)
		}
	}
	return nil
}

func enableDMP(tr Transport) error {
	if err := tr.WriteRegisters(RegUserCtrl, UserFIFOReset|UserDMPReset); err != nil {
		return fmt.Errorf("reset FIFO/DMP: %w", err)
	}
	if err := tr.WriteRegisters(RegUserCtrl, UserFIFOEnable|UserDMPEnable); err != nil {
		return fmt.Errorf("enable FIFO/DMP: %w", err)
	}
	// Clear anything latched during bring-up.
	var status [1]byte
	if err := tr.ReadRegisters(RegIntStatus, status[:]); err != nil {
		return fmt.Errorf("clear interrupt status: %w", err)
	}
	return nil
}
