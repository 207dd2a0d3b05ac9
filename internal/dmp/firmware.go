// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"fmt"
	"os"
)

// Firmware is a vendor DMP image plus its configuration set.
//
// Config is a sequence of records:
//
//	bank, offset, length, data[length]
//
// A record with length 0 carries one "special" byte instead of data; 0x01
// enables the DMP interrupt sources.
type Firmware struct {
	Revision     string
	Image        []byte
	Config       []byte
	StartAddress uint16
}

// DefaultStartAddress is where the vendor images place the DMP program.
const DefaultStartAddress = 0x0400

// LoadFirmware reads the image and configuration set from disk. configPath
// may be empty for images that need no configuration set.
func LoadFirmware(imagePath, configPath, revision string, start uint16) (Firmware, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return Firmware{}, fmt.Errorf("read DMP image: %w", err)
	}
	if len(img) == 0 {
		return Firmware{}, fmt.Errorf("DMP image %s is empty", imagePath)
	}
	fw := Firmware{Revision: revision, Image: img, StartAddress: start}
	if configPath != "" {
		cfg, err := os.ReadFile(configPath)
		if err != nil {
			return Firmware{}, fmt.Errorf("read DMP config set: %w", err)
		}
		fw.Config = cfg
	}
	return fw, nil
}
