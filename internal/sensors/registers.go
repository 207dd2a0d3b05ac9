// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits" yaml:"bits"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Values      string `json:"values,omitempty" yaml:"values,omitempty"`
}

// RegisterInfo is register metadata for dumps and debugging.
type RegisterInfo struct {
	Address     byte       `json:"address" yaml:"address"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Access      string     `json:"access" yaml:"access"` // "R", "RW"
	Default     byte       `json:"default" yaml:"default"`
	BitFields   []BitField `json:"bit_fields,omitempty" yaml:"bit_fields,omitempty"`
	// Dump is false for registers whose read has side effects
	// (streaming ports, clear-on-read status).
	Dump bool `json:"-" yaml:"-"`
}

// RegisterMap returns the MPU-6050 registers touched by DMP bring-up and
// FIFO draining.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: dmp.RegSmplrtDiv, Name: "SMPLRT_DIV", Description: "Sample rate divider", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Rate = gyro output rate / (1 + SMPLRT_DIV)", Values: "0-255"},
			}},
		{Address: dmp.RegConfig, Name: "CONFIG", Description: "FSYNC and DLPF", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "5:3", Name: "EXT_SYNC_SET", Description: "FSYNC sampling", Values: "0=Disabled, 1=TEMP_OUT_L"},
				{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital low pass filter", Values: "0=260Hz, 1=184Hz, 2=94Hz, 3=44Hz, 4=21Hz, 5=10Hz, 6=5Hz"},
			}},
		{Address: dmp.RegGyroConfig, Name: "GYRO_CONFIG", Description: "Gyroscope configuration", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "4:3", Name: "FS_SEL", Description: "Gyro full scale", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			}},
		{Address: dmp.RegAccelConfig, Name: "ACCEL_CONFIG", Description: "Accelerometer configuration", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "4:3", Name: "AFS_SEL", Description: "Accel full scale", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: dmp.RegIntEnable, Name: "INT_ENABLE", Description: "Interrupt enable", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "4", Name: "FIFO_OFLOW_EN", Description: "FIFO overflow interrupt"},
				{Bits: "1", Name: "DMP_INT_EN", Description: "DMP interrupt"},
				{Bits: "0", Name: "DATA_RDY_EN", Description: "Data ready interrupt"},
			}},
		{Address: dmp.RegIntStatus, Name: "INT_STATUS", Description: "Interrupt status, cleared on read", Access: "R",
			BitFields: []BitField{
				{Bits: "4", Name: "FIFO_OFLOW_INT", Description: "FIFO overflowed"},
				{Bits: "1", Name: "DMP_INT", Description: "DMP interrupt"},
			}},
		{Address: dmp.RegUserCtrl, Name: "USER_CTRL", Description: "User control", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "7", Name: "DMP_EN", Description: "Enable the DMP"},
				{Bits: "6", Name: "FIFO_EN", Description: "Enable the FIFO"},
				{Bits: "3", Name: "DMP_RESET", Description: "Reset the DMP (self-clearing)"},
				{Bits: "2", Name: "FIFO_RESET", Description: "Reset the FIFO (self-clearing)"},
			}},
		{Address: dmp.RegPwrMgmt1, Name: "PWR_MGMT_1", Description: "Power management 1", Access: "RW", Default: dmp.PwrSleep, Dump: true,
			BitFields: []BitField{
				{Bits: "7", Name: "DEVICE_RESET", Description: "Reset all registers (self-clearing)"},
				{Bits: "6", Name: "SLEEP", Description: "Sleep mode"},
				{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 8MHz, 1=PLL X gyro, 2=PLL Y gyro, 3=PLL Z gyro"},
			}},
		{Address: dmp.RegBankSel, Name: "BANK_SEL", Description: "DMP memory bank select", Access: "RW", Dump: true,
			BitFields: []BitField{
				{Bits: "4:0", Name: "BANK", Description: "Memory bank", Values: "0-31"},
			}},
		{Address: dmp.RegMemStart, Name: "MEM_START_ADDR", Description: "DMP memory address within bank", Access: "RW", Dump: true},
		{Address: dmp.RegMemRW, Name: "MEM_R_W", Description: "DMP memory data port", Access: "RW"},
		{Address: dmp.RegDMPCfg1, Name: "DMP_CFG_1", Description: "DMP program start address high byte", Access: "RW", Dump: true},
		{Address: dmp.RegDMPCfg2, Name: "DMP_CFG_2", Description: "DMP program start address low byte", Access: "RW", Dump: true},
		{Address: dmp.RegFIFOCountH, Name: "FIFO_COUNTH", Description: "FIFO byte count high", Access: "R", Dump: true},
		{Address: dmp.RegFIFOCountL, Name: "FIFO_COUNTL", Description: "FIFO byte count low", Access: "R", Dump: true},
		{Address: dmp.RegFIFORW, Name: "FIFO_R_W", Description: "FIFO data port", Access: "RW"},
		{Address: dmp.RegWhoAmI, Name: "WHO_AM_I", Description: "Device identity", Access: "R", Default: dmp.WhoAmIMPU6050, Dump: true,
			BitFields: []BitField{
				{Bits: "6:1", Name: "WHO_AM_I", Description: "Upper 6 bits of the I2C address", Values: "0x68 for MPU-6050"},
			}},
	}
}

// RegisterValue is one register read.
type RegisterValue struct {
	RegisterInfo `yaml:",inline"`
	Value        byte `json:"value" yaml:"value"`
}

// DumpRegisters reads every side-effect free register in RegisterMap.
func DumpRegisters(tr dmp.Transport) ([]RegisterValue, error) {
	var out []RegisterValue
	var b [1]byte
	for _, info := range RegisterMap() {
		if !info.Dump {
			continue
		}
		if err := tr.ReadRegisters(info.Address, b[:]); err != nil {
			return out, fmt.Errorf("read %s: %w", info.Name, err)
		}
		out = append(out, RegisterValue{RegisterInfo: info, Value: b[0]})
	}
	return out, nil
}
