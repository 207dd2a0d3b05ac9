// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

// MPU-6050 register addresses touched by DMP bring-up and FIFO draining.
const (
	RegSmplrtDiv   byte = 0x19
	RegConfig      byte = 0x1A
	RegGyroConfig  byte = 0x1B
	RegAccelConfig byte = 0x1C
	RegIntEnable   byte = 0x38
	RegIntStatus   byte = 0x3A
	RegUserCtrl    byte = 0x6A
	RegPwrMgmt1    byte = 0x6B
	RegBankSel     byte = 0x6D
	RegMemStart    byte = 0x6E
	RegMemRW       byte = 0x6F
	RegDMPCfg1     byte = 0x70
	RegDMPCfg2     byte = 0x71
	RegFIFOCountH  byte = 0x72
	RegFIFOCountL  byte = 0x73
	RegFIFORW      byte = 0x74
	RegWhoAmI      byte = 0x75
)

// Bit values.
const (
	PwrDeviceReset byte = 1 << 7
	PwrSleep       byte = 1 << 6
	ClockPLLZGyro  byte = 0x03

	UserDMPEnable  byte = 1 << 7
	UserFIFOEnable byte = 1 << 6
	UserDMPReset   byte = 1 << 3
	UserFIFOReset  byte = 1 << 2

	IntFIFOOverflow byte = 1 << 4
	IntDMP          byte = 1 << 1

	// EXT_SYNC_SET = TEMP_OUT_L, as the vendor DMP images expect.
	ExtSyncTempOutL byte = 1 << 3
)

// DMP memory geometry.
const (
	MemBankSize  = 256
	MemChunkSize = 16
)

// WhoAmIMPU6050 is the WHO_AM_I value of an MPU-6050 at its default address.
const WhoAmIMPU6050 byte = 0x68
