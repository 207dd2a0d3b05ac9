// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/dmp/sim"
	"github.com/relabs-tech/inertial_dmp/internal/imu"
	"github.com/relabs-tech/inertial_dmp/internal/orientation"
	"github.com/relabs-tech/inertial_dmp/internal/sensors"
)

// simSamplePeriod matches the 200 Hz DMP output of DefaultOptions.
const simSamplePeriod = 5 * time.Millisecond

// packetSource is an opened DMP source ready to be drained.
type packetSource struct {
	name    string
	src     dmp.PacketSource
	decoder dmp.Decoder
	device  *dmp.Device    // nil for stream sources
	feed    *sim.Generator // sim only
	period  time.Duration  // packet spacing; 0 when unknown (serial)
	close   func() error
}

// ResolveLayout looks up cfg.DMPLayout among the built-in layouts and those
// in cfg.DMPLayoutFile.
func ResolveLayout(cfg *config.Config) (dmp.Layout, error) {
	var extra map[string]dmp.Layout
	if cfg.DMPLayoutFile != "" {
		var err error
		if extra, err = dmp.LoadLayouts(cfg.DMPLayoutFile); err != nil {
			return dmp.Layout{}, err
		}
	}
	return dmp.LookupLayout(cfg.DMPLayout, extra)
}

func dmpOptions(cfg *config.Config) dmp.Options {
	opts := dmp.DefaultOptions()
	opts.AccelLSBPerG = cfg.DMPAccelLSBPerG
	return opts
}

// outputPeriod is the DMP packet spacing for a 1 kHz base rate.
func outputPeriod(opts dmp.Options) time.Duration {
	return time.Millisecond * time.Duration(1+int(opts.SampleRateDiv))
}

func openPacketSource(cfg *config.Config) (*packetSource, error) {
	layout, err := ResolveLayout(cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("DMP packet layout %s (%d bytes)", layout.Name, layout.PacketSize)

	switch cfg.DMPSource {
	case config.SourceSerial:
		s, err := sensors.OpenSerial(cfg.DMPSerialPort, uint(cfg.DMPBaudRate), layout)
		if err != nil {
			return nil, err
		}
		return &packetSource{
			name:    cfg.DMPSource,
			src:     s,
			decoder: dmp.Decoder{Layout: layout, AccelLSBPerG: cfg.DMPAccelLSBPerG},
			close:   s.Close,
		}, nil

	case config.SourceSim:
		mpu := sim.New()
		dev, err := initDevice(mpu, sim.Firmware(layout), layout, cfg)
		if err != nil {
			return nil, err
		}
		return &packetSource{
			name:    cfg.DMPSource,
			src:     dev,
			decoder: dev.Decoder(),
			device:  dev,
			feed: &sim.Generator{
				MPU:    mpu,
				Layout: layout,
				Motion: sim.Motion{AccelLSBPerG: cfg.DMPAccelLSBPerG},
				Period: simSamplePeriod,
			},
			period: simSamplePeriod,
			close:  func() error { return nil },
		}, nil

	case config.SourceI2C, config.SourceSPI:
		fw, err := dmp.LoadFirmware(cfg.DMPFirmwareImage, cfg.DMPFirmwareConfig, cfg.DMPFirmwareRevision, cfg.DMPStartAddr)
		if err != nil {
			return nil, err
		}
		var (
			tr      dmp.Transport
			closeTr func() error
		)
		if cfg.DMPSource == config.SourceI2C {
			t, err := sensors.OpenI2C(cfg.DMPI2CBus, cfg.DMPI2CAddr)
			if err != nil {
				return nil, err
			}
			tr, closeTr = t, t.Close
		} else {
			t, err := sensors.OpenSPI(cfg.DMPSPIDevice, cfg.DMPCSPin)
			if err != nil {
				return nil, err
			}
			tr, closeTr = t, t.Close
		}
		dev, err := initDevice(tr, fw, layout, cfg)
		if err != nil {
			closeTr()
			return nil, err
		}
		return &packetSource{
			name:    cfg.DMPSource,
			src:     dev,
			decoder: dev.Decoder(),
			device:  dev,
			period:  outputPeriod(dmpOptions(cfg)),
			close:   closeTr,
		}, nil
	}
	return nil, fmt.Errorf("unknown DMP source %q", cfg.DMPSource)
}

func initDevice(tr dmp.Transport, fw dmp.Firmware, layout dmp.Layout, cfg *config.Config) (*dmp.Device, error) {
	start := time.Now()
	dev, err := dmp.Initialize(tr, fw, layout, dmpOptions(cfg))
	if err != nil {
		var ie *dmp.InitError
		if errors.As(err, &ie) {
			log.WithFields(log.Fields{"stage": ie.Stage.String(), "status": ie.Code()}).Error("DMP initialization failed")
		}
		return nil, err
	}
	log.Infof("DMP ready on %s: firmware %d bytes, revision %q, %s", cfg.DMPSource, len(fw.Image), fw.Revision, time.Since(start).Round(time.Millisecond))
	return dev, nil
}

// producer drains one packet source per tick and publishes every sample.
type producer struct {
	cfg    *config.Config
	source *packetSource
	pub    publisher
}

// tick runs one poll: feeds the simulator, recovers from FIFO overflow and
// drains up to DMPMaxPacketsPerTick packets.
func (p *producer) tick(now time.Time) (int, error) {
	if p.source.feed != nil {
		p.source.feed.Advance(now)
	}
	if dev := p.source.device; dev != nil {
		over, err := dev.Overflowed()
		if err != nil {
			return 0, err
		}
		if over {
			log.Warn("DMP FIFO overflow, resetting FIFO")
			return 0, dev.ResetFIFO()
		}
	}
	queued, err := p.source.src.PacketsQueued()
	if err != nil {
		return 0, err
	}
	batch := min(queued, p.cfg.DMPMaxPacketsPerTick)
	return dmp.ReadAndProcessPackets(p.source.src, p.source.decoder, p.cfg.DMPMaxPacketsPerTick, p.handle(now, batch))
}

// stamp returns the capture time of the i-th of batch packets drained at
// now. The FIFO is oldest first and the last packet is taken as current, so
// earlier packets are backdated by one period each.
func (p *producer) stamp(now time.Time, i, batch int) time.Time {
	behind := batch - 1 - i
	if behind <= 0 {
		return now
	}
	return now.Add(-time.Duration(behind) * p.source.period)
}

func (p *producer) handle(now time.Time, batch int) dmp.Handler {
	i := 0
	return func(s dmp.Sample) error {
		t := p.stamp(now, i, batch)
		i++
		q, raw, motion := imu.FromSample(p.source.name, s, t)
		pose := orientation.FromSample(s)

		if err := p.pub.Publish(p.cfg.TopicQuaternion, q); err != nil {
			return err
		}
		if err := p.pub.Publish(p.cfg.TopicPose, pose); err != nil {
			return err
		}
		if err := p.pub.Publish(p.cfg.TopicIMURaw, raw); err != nil {
			return err
		}
		if motion != nil {
			if err := p.pub.Publish(p.cfg.TopicMotion, motion); err != nil {
				return err
			}
		}
		log.Debugf("pose R=%.2f P=%.2f Y=%.2f | accel %d %d %d | gyro %d %d %d",
			pose.Roll, pose.Pitch, pose.Yaw, raw.Ax, raw.Ay, raw.Az, raw.Gx, raw.Gy, raw.Gz)
		return nil
	}
}

// RunDMPProducer opens the configured DMP source, drains its packets on
// every IMU_SAMPLE_INTERVAL tick and publishes quaternion, pose, raw and
// motion payloads to MQTT until interrupted.
func RunDMPProducer() error {
	cfg := config.Get()
	log.Infof("starting DMP producer (source %s)", cfg.DMPSource)

	source, err := openPacketSource(cfg)
	if err != nil {
		return err
	}
	defer source.close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	p := &producer{cfg: cfg, source: source, pub: &mqttPublisher{client: client}}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Info("publishing DMP samples")
	for {
		select {
		case <-sigCh:
			log.Info("producer: shutting down")
			return nil
		case t := <-ticker.C:
			n, err := p.tick(t)
			if err != nil {
				log.Errorf("DMP tick: %v", err)
				continue
			}
			if n == cfg.DMPMaxPacketsPerTick {
				log.Debugf("drained a full batch of %d packets; FIFO may be filling faster than IMU_SAMPLE_INTERVAL", n)
			}
		}
	}
}
