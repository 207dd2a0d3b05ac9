// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/dmp/sim"
	"github.com/relabs-tech/inertial_dmp/internal/sensors"
)

// openRegisterTransport opens the register interface of the configured
// source without running DMP bring-up. The sim source is brought up first so
// the dump shows the state a real device would be left in.
func openRegisterTransport(cfg *config.Config) (dmp.Transport, func() error, error) {
	switch cfg.DMPSource {
	case config.SourceI2C:
		t, err := sensors.OpenI2C(cfg.DMPI2CBus, cfg.DMPI2CAddr)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	case config.SourceSPI:
		t, err := sensors.OpenSPI(cfg.DMPSPIDevice, cfg.DMPCSPin)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	case config.SourceSim:
		layout, err := ResolveLayout(cfg)
		if err != nil {
			return nil, nil, err
		}
		mpu := sim.New()
		if _, err := initDevice(mpu, sim.Firmware(layout), layout, cfg); err != nil {
			return nil, nil, err
		}
		return mpu, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("DMP_SOURCE=%s has no register interface", cfg.DMPSource)
}

// writeRegisters prints one row per register.
func writeRegisters(w io.Writer, regs []sensors.RegisterValue) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tNAME\tVALUE\tBINARY\tDEFAULT\tDESCRIPTION")
	for _, r := range regs {
		mark := ""
		if r.Value != r.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "0x%02X\t%s\t0x%02X\t%08b\t0x%02X%s\t%s\n",
			r.Address, r.Name, r.Value, r.Value, r.Default, mark, r.Description)
	}
	return tw.Flush()
}

// RunRegisterDump reads the side-effect free registers of the configured
// device and writes them to w.
func RunRegisterDump(w io.Writer) error {
	cfg := config.Get()
	tr, closeTr, err := openRegisterTransport(cfg)
	if err != nil {
		return err
	}
	defer closeTr()

	regs, err := sensors.DumpRegisters(tr)
	if err != nil {
		return err
	}
	return writeRegisters(w, regs)
}
