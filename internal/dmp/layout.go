// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dmp

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Field locates one packed vector inside a packet: three (accel, gyro) or four
// (quaternion) consecutive big-endian elements starting at Offset, each Width
// bytes wide. Width 0 means the packet does not carry the field.
type Field struct {
	Offset int `yaml:"offset" json:"offset"`
	Width  int `yaml:"width" json:"width"`
}

// Present reports whether the layout carries this field.
func (f Field) Present() bool { return f.Width != 0 }

func (f Field) end(elems int) int { return f.Offset + elems*f.Width }

// Layout describes the packet format produced by one DMP firmware revision.
// Offsets are firmware data, not protocol constants, so they live here
// rather than in the decoder.
type Layout struct {
	Name       string `yaml:"name" json:"name"`
	Revision   string `yaml:"revision,omitempty" json:"revision,omitempty"`
	PacketSize int    `yaml:"packet_size" json:"packet_size"`

	QuaternionField Field `yaml:"quaternion" json:"quaternion"`
	AccelField      Field `yaml:"accel,omitempty" json:"accel,omitempty"`
	GyroField       Field `yaml:"gyro,omitempty" json:"gyro,omitempty"`

	// Framing bytes for stream transports (serial). Empty for FIFO packets.
	Preamble  []byte `yaml:"preamble,omitempty" json:"preamble,omitempty"`
	Postamble []byte `yaml:"postamble,omitempty" json:"postamble,omitempty"`
}

// Built-in layouts.
var (
	// MotionApps20 is the 42-byte packet of the MotionApps 2.0 image:
	// quaternion, gyro and accel all as 32-bit elements.
	MotionApps20 = Layout{
		Name:            "motionapps20",
		Revision:        "2.0",
		PacketSize:      42,
		QuaternionField: Field{Offset: 0, Width: 4},
		GyroField:       Field{Offset: 16, Width: 4},
		AccelField:      Field{Offset: 28, Width: 4},
	}

	// MotionApps612 is the 28-byte packet of the 6.12 image: 32-bit
	// quaternion followed by 16-bit accel and gyro.
	MotionApps612 = Layout{
		Name:            "motionapps612",
		Revision:        "6.12",
		PacketSize:      28,
		QuaternionField: Field{Offset: 0, Width: 4},
		AccelField:      Field{Offset: 16, Width: 2},
		GyroField:       Field{Offset: 22, Width: 2},
	}

	// Teapot is the 14-byte serial frame streamed by the classic demo
	// sketch: "$\x02", four 16-bit quaternion words, a counter, 0x00, "\r\n".
	Teapot = Layout{
		Name:            "teapot",
		PacketSize:      14,
		QuaternionField: Field{Offset: 2, Width: 2},
		Preamble:        []byte{'$', 0x02},
		Postamble:       []byte{'\r', '\n'},
	}
)

var builtinLayouts = map[string]Layout{
	MotionApps20.Name:  MotionApps20,
	MotionApps612.Name: MotionApps612,
	Teapot.Name:        Teapot,
}

// Validate checks that every field fits inside the packet and uses a
// supported element width.
func (l Layout) Validate() error {
	if l.PacketSize <= 0 {
		return fmt.Errorf("layout %q: packet size must be positive, got %d", l.Name, l.PacketSize)
	}
	if !l.QuaternionField.Present() {
		return fmt.Errorf("layout %q: quaternion field is required", l.Name)
	}
	checks := []struct {
		name  string
		f     Field
		elems int
	}{
		{"quaternion", l.QuaternionField, 4},
		{"accel", l.AccelField, 3},
		{"gyro", l.GyroField, 3},
	}
	for _, c := range checks {
		if !c.f.Present() {
			continue
		}
		if c.f.Width != 2 && c.f.Width != 4 {
			return fmt.Errorf("layout %q: %s width must be 2 or 4, got %d", l.Name, c.name, c.f.Width)
		}
		if c.f.Offset < 0 || c.f.end(c.elems) > l.PacketSize {
			return fmt.Errorf("layout %q: %s field [%d,%d) outside %d-byte packet",
				l.Name, c.name, c.f.Offset, c.f.end(c.elems), l.PacketSize)
		}
	}
	if len(l.Preamble)+len(l.Postamble) > l.PacketSize {
		return fmt.Errorf("layout %q: framing bytes exceed packet size", l.Name)
	}
	return nil
}

// LookupLayout returns a layout by name, searching extra before the built-ins.
func LookupLayout(name string, extra map[string]Layout) (Layout, error) {
	if l, ok := extra[name]; ok {
		return l, nil
	}
	if l, ok := builtinLayouts[name]; ok {
		return l, nil
	}
	return Layout{}, fmt.Errorf("unknown packet layout %q", name)
}

// BuiltinLayouts returns the compiled-in layouts sorted by name.
func BuiltinLayouts() []Layout {
	out := make([]Layout, 0, len(builtinLayouts))
	for _, l := range builtinLayouts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// layoutFile is the on-disk YAML shape:
//
//	layouts:
//	  - name: custom
//	    packet_size: 28
//	    quaternion: {offset: 0, width: 4}
type layoutFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// ParseLayouts decodes and validates a YAML layout document.
func ParseLayouts(data []byte) (map[string]Layout, error) {
	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	out := make(map[string]Layout, len(lf.Layouts))
	for i, l := range lf.Layouts {
		if l.Name == "" {
			return nil, fmt.Errorf("layout #%d: name is required", i)
		}
		if _, dup := out[l.Name]; dup {
			return nil, fmt.Errorf("layout %q defined twice", l.Name)
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		out[l.Name] = l
	}
	return out, nil
}

// LoadLayouts reads a YAML layout file from disk.
func LoadLayouts(path string) (map[string]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts: %w", err)
	}
	return ParseLayouts(data)
}

// MarshalLayouts renders layouts in the same YAML shape ParseLayouts reads.
func MarshalLayouts(ls []Layout) ([]byte, error) {
	return yaml.Marshal(layoutFile{Layouts: ls})
}
