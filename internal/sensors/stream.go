// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

// serialPollTimeoutMS bounds how long a poll waits for bytes. go-serial
// needs a multiple of 100 ms when MinimumReadSize is 0.
const serialPollTimeoutMS = 100

// StreamSource frames DMP packets out of a byte stream, such as a
// microcontroller forwarding its FIFO over a serial line. Frames are found by
// the layout's preamble and checked against its postamble; misaligned or
// corrupt bytes are skipped until the stream resynchronises.
//
// It implements dmp.PacketSource. Reads never block longer than one poll of
// the underlying reader.
type StreamSource struct {
	layout  dmp.Layout
	r       io.Reader
	closer  io.Closer
	pending []byte
	frames  [][]byte
	chunk   []byte
	buf     []byte
	dropped int
}

// NewStreamSource frames packets of layout l from r. If r is an io.Closer,
// Close closes it.
func NewStreamSource(r io.Reader, l dmp.Layout) (*StreamSource, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	s := &StreamSource{
		layout: l,
		r:      r,
		chunk:  make([]byte, 4*l.PacketSize),
		buf:    make([]byte, l.PacketSize),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// OpenSerial opens port at baud and frames packets of layout l from it.
func OpenSerial(port string, baud uint, l dmp.Layout) (*StreamSource, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: serialPollTimeoutMS,
		ParityMode:            serial.PARITY_NONE,
	}
	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	log.Infof("DMP stream on %s at %d baud (layout %s)", port, baud, l.Name)
	s, err := NewStreamSource(rwc, l)
	if err != nil {
		rwc.Close()
		return nil, err
	}
	return s, nil
}

// Layout implements dmp.PacketSource.
func (s *StreamSource) Layout() dmp.Layout { return s.layout }

// Dropped returns how many bytes were discarded while resynchronising.
func (s *StreamSource) Dropped() int { return s.dropped }

// PacketsQueued polls the stream once and returns how many complete frames
// are buffered.
func (s *StreamSource) PacketsQueued() (int, error) {
	if err := s.poll(); err != nil {
		return len(s.frames), err
	}
	return len(s.frames), nil
}

// ReadPacket returns the oldest buffered frame, polling once if none is
// buffered. The returned slice is reused by the next call.
func (s *StreamSource) ReadPacket() ([]byte, error) {
	if len(s.frames) == 0 {
		if err := s.poll(); err != nil {
			return nil, err
		}
		if len(s.frames) == 0 {
			return nil, dmp.ErrNoPacket
		}
	}
	copy(s.buf, s.frames[0])
	s.frames = s.frames[1:]
	return s.buf, nil
}

// Close closes the underlying reader when it is closable.
func (s *StreamSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *StreamSource) poll() error {
	n, err := s.r.Read(s.chunk)
	s.pending = append(s.pending, s.chunk[:n]...)
	s.frame()
	// A serial read that times out with nothing to deliver reports io.EOF.
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}

func (s *StreamSource) frame() {
	size := s.layout.PacketSize
	pre, post := s.layout.Preamble, s.layout.Postamble
	for {
		if len(pre) > 0 {
			i := bytes.Index(s.pending, pre)
			if i < 0 {
				// Keep a possible partial preamble at the tail.
				keep := len(pre) - 1
				if keep > len(s.pending) {
					keep = len(s.pending)
				}
				s.discard(len(s.pending) - keep)
				return
			}
			s.discard(i)
		}
		if len(s.pending) < size {
			return
		}
		if len(post) > 0 && !bytes.Equal(s.pending[size-len(post):size], post) {
			s.discard(1)
			continue
		}
		frame := make([]byte, size)
		copy(frame, s.pending[:size])
		s.frames = append(s.frames, frame)
		s.pending = s.pending[size:]
	}
}

func (s *StreamSource) discard(n int) {
	if n <= 0 {
		return
	}
	s.dropped += n
	s.pending = s.pending[n:]
}
