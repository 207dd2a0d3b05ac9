// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/imu"
	"github.com/relabs-tech/inertial_dmp/internal/orientation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsQueue is how many pose updates a slow websocket client may lag behind
// before updates are dropped for it.
const wsQueue = 16

var errNoData = errors.New("no data yet")

// apiStatus is the JSON error body.
type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sendStatus(c *gin.Context, code int, err error) {
	c.JSON(code, apiStatus{Code: code, Message: err.Error()})
}

// poseHub keeps the latest payloads and fans pose updates out to websocket
// clients.
type poseHub struct {
	mu       sync.RWMutex
	pose     orientation.Pose
	poseRaw  []byte
	havePose bool
	quat     imu.Quaternion
	haveQuat bool
	clients  map[chan []byte]struct{}
}

func newPoseHub() *poseHub {
	return &poseHub{clients: map[chan []byte]struct{}{}}
}

func (h *poseHub) updatePose(payload []byte) error {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("pose unmarshal: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pose = p
	h.poseRaw = append([]byte(nil), payload...)
	h.havePose = true
	for ch := range h.clients {
		select {
		case ch <- h.poseRaw:
		default:
		}
	}
	return nil
}

func (h *poseHub) updateQuaternion(payload []byte) error {
	var q imu.Quaternion
	if err := json.Unmarshal(payload, &q); err != nil {
		return fmt.Errorf("quaternion unmarshal: %w", err)
	}
	h.mu.Lock()
	h.quat = q
	h.haveQuat = true
	h.mu.Unlock()
	return nil
}

// join registers a client. The latest pose, if any, is queued first.
func (h *poseHub) join() chan []byte {
	ch := make(chan []byte, wsQueue)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.havePose {
		ch <- h.poseRaw
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *poseHub) leave(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *poseHub) handleWS(c *gin.Context) {
	ch := h.join()
	defer h.leave(ch)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// The read side only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debugf("websocket read error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("websocket write error: %v", err)
				return
			}
		}
	}
}

func newWebRouter(h *poseHub, staticDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/orientation", func(c *gin.Context) {
		h.mu.RLock()
		defer h.mu.RUnlock()
		if !h.havePose {
			sendStatus(c, http.StatusServiceUnavailable, errNoData)
			return
		}
		c.JSON(http.StatusOK, h.pose)
	})
	api.GET("/quaternion", func(c *gin.Context) {
		h.mu.RLock()
		defer h.mu.RUnlock()
		if !h.haveQuat {
			sendStatus(c, http.StatusServiceUnavailable, errNoData)
			return
		}
		c.JSON(http.StatusOK, h.quat)
	})
	api.GET("/layouts", func(c *gin.Context) {
		c.JSON(http.StatusOK, dmp.BuiltinLayouts())
	})
	r.GET("/ws", h.handleWS)

	if staticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))
	}
	return r
}

// RunWeb serves the latest orientation over HTTP and streams pose updates
// over a websocket.
func RunWeb() error {
	cfg := config.Get()
	hub := newPoseHub()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicPose, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.updatePose(msg.Payload()); err != nil {
			log.Warnf("web: %v", err)
		}
	}); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicQuaternion, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.updateQuaternion(msg.Payload()); err != nil {
			log.Warnf("web: %v", err)
		}
	}); err != nil {
		return err
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Infof("web server listening on %s", addr)
	return newWebRouter(hub, "web").Run(addr)
}
