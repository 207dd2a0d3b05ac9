// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/orientation"
)

// consoleLine renders one payload for the terminal. It reads only the fields
// it prints, so producers may add fields without breaking the console.
type consoleLine func(payload []byte) (string, error)

func formatQuaternion(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("invalid JSON")
	}
	r := gjson.ParseBytes(payload)
	return fmt.Sprintf("[QUAT]  w=%7.4f x=%7.4f y=%7.4f z=%7.4f",
		r.Get("w").Float(), r.Get("x").Float(), r.Get("y").Float(), r.Get("z").Float()), nil
}

func formatPose(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("invalid JSON")
	}
	r := gjson.ParseBytes(payload)
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  HDG=%6.2f",
		r.Get("roll").Float(), r.Get("pitch").Float(), r.Get("yaw").Float(), r.Get("heading").Float()), nil
}

func formatRaw(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("invalid JSON")
	}
	r := gjson.ParseBytes(payload)
	if !r.Get("has_accel").Bool() && !r.Get("has_gyro").Bool() {
		return "[RAW ]  quaternion-only packets", nil
	}
	ax, ay, az := r.Get("ax").Float(), r.Get("ay").Float(), r.Get("az").Float()
	tilt := orientation.ComputePoseFromAccel(ax, ay, az)
	return fmt.Sprintf("[RAW ]  ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  tilt R=%6.2f P=%6.2f",
		r.Get("ax").Int(), r.Get("ay").Int(), r.Get("az").Int(),
		r.Get("gx").Int(), r.Get("gy").Int(), r.Get("gz").Int(),
		tilt.Roll, tilt.Pitch), nil
}

func formatMotion(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("invalid JSON")
	}
	r := gjson.ParseBytes(payload)
	return fmt.Sprintf("[MOVE]  body=(%6d %6d %6d)  world=(%6d %6d %6d)",
		r.Get("linear_accel.x").Int(), r.Get("linear_accel.y").Int(), r.Get("linear_accel.z").Int(),
		r.Get("linear_accel_world.x").Int(), r.Get("linear_accel_world.y").Int(), r.Get("linear_accel_world.z").Int()), nil
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	subs := []struct {
		topic  string
		format consoleLine
	}{
		{cfg.TopicQuaternion, formatQuaternion},
		{cfg.TopicPose, formatPose},
		{cfg.TopicIMURaw, formatRaw},
		{cfg.TopicMotion, formatMotion},
	}
	for _, s := range subs {
		format := s.format
		err := subscribe(client, s.topic, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Warnf("console: %s: %v", msg.Topic(), err)
				return
			}
			fmt.Println(line)
		})
		if err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
