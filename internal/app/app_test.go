package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
	"github.com/relabs-tech/inertial_dmp/internal/imu"
	"github.com/relabs-tech/inertial_dmp/internal/math3d"
	"github.com/relabs-tech/inertial_dmp/internal/orientation"
	"github.com/relabs-tech/inertial_dmp/internal/sensors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recorder struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (r *recorder) Publish(topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = map[string][][]byte{}
	}
	r.messages[topic] = append(r.messages[topic], b)
	return nil
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[topic])
}

func simProducer(t *testing.T) (*producer, *recorder) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	src, err := openPacketSource(cfg)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	return &producer{cfg: cfg, source: src, pub: rec}, rec
}

func TestProducerPublishesEverySample(t *testing.T) {
	p, rec := simProducer(t)
	now := time.Now()

	n, err := p.tick(now)
	if err != nil || n != 1 {
		t.Fatalf("first tick: %d, %v", n, err)
	}
	for _, topic := range []string{p.cfg.TopicQuaternion, p.cfg.TopicPose, p.cfg.TopicIMURaw, p.cfg.TopicMotion} {
		if rec.count(topic) != 1 {
			t.Errorf("%s: %d messages", topic, rec.count(topic))
		}
	}

	pose := gjson.GetBytes(rec.messages[p.cfg.TopicPose][0], "roll")
	if !pose.Exists() {
		t.Fatalf("pose payload = %s", rec.messages[p.cfg.TopicPose][0])
	}
	if w := gjson.GetBytes(rec.messages[p.cfg.TopicQuaternion][0], "w").Float(); w < 0.99 {
		t.Fatalf("quaternion w at rest = %v", w)
	}
}

func TestProducerCapsBatch(t *testing.T) {
	p, _ := simProducer(t)
	now := time.Now()
	p.tick(now)

	// 20 samples are due; only DMPMaxPacketsPerTick are drained.
	n, err := p.tick(now.Add(20 * simSamplePeriod))
	if err != nil || n != p.cfg.DMPMaxPacketsPerTick {
		t.Fatalf("tick: %d, %v", n, err)
	}
	total := n
	for i := 0; i < 5; i++ {
		n, _ = p.tick(now.Add(20 * simSamplePeriod))
		total += n
	}
	if total != 20 {
		t.Fatalf("drained %d of 20 samples", total)
	}
}

func TestProducerBackdatesBatch(t *testing.T) {
	p, rec := simProducer(t)
	now := time.Now()
	p.tick(now)

	later := now.Add(4 * simSamplePeriod)
	n, err := p.tick(later)
	if err != nil || n != 4 {
		t.Fatalf("tick: %d, %v", n, err)
	}
	msgs := rec.messages[p.cfg.TopicQuaternion][1:]
	for i, m := range msgs {
		var q imu.Quaternion
		if err := json.Unmarshal(m, &q); err != nil {
			t.Fatal(err)
		}
		want := later.Add(-time.Duration(len(msgs)-1-i) * simSamplePeriod)
		if !q.Time.Equal(want) {
			t.Errorf("packet %d stamped %v, want %v", i, q.Time, want)
		}
	}
}

func TestProducerRecoversFromOverflow(t *testing.T) {
	p, _ := simProducer(t)
	now := time.Now()
	p.tick(now)

	n, err := p.tick(now.Add(10 * time.Second))
	if err != nil || n != 0 {
		t.Fatalf("overflow tick: %d, %v", n, err)
	}
	if q := p.source.feed.MPU.Queued(); q != 0 {
		t.Fatalf("FIFO not reset: %d bytes", q)
	}
	n, err = p.tick(now.Add(10*time.Second + simSamplePeriod))
	if err != nil || n != 1 {
		t.Fatalf("tick after reset: %d, %v", n, err)
	}
}

func TestResolveLayoutFromFile(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.DMPLayout = "nope"
	if _, err := ResolveLayout(cfg); err == nil {
		t.Fatal("expected unknown layout error")
	}
}

func sampleAtRest() dmp.Sample {
	l := dmp.MotionApps612
	return dmp.NewDecoder(l).Decode(l.Encode(math3d.Identity(), math3d.IntVector3{Z: 2048}, math3d.IntVector3{}))
}

func TestConsoleFormats(t *testing.T) {
	q, raw, motion := imu.FromSample("sim", sampleAtRest(), time.Unix(0, 0))

	b, _ := json.Marshal(q)
	line, err := formatQuaternion(b)
	if err != nil || !strings.Contains(line, "w= 1.0000") {
		t.Fatalf("quaternion line %q, %v", line, err)
	}

	b, _ = json.Marshal(raw)
	line, err = formatRaw(b)
	if err != nil || !strings.Contains(line, "az=  2048") || !strings.Contains(line, "tilt R=  0.00") {
		t.Fatalf("raw line %q, %v", line, err)
	}

	b, _ = json.Marshal(motion)
	if line, err = formatMotion(b); err != nil || !strings.HasPrefix(line, "[MOVE]") {
		t.Fatalf("motion line %q, %v", line, err)
	}

	b, _ = json.Marshal(orientation.Pose{Yaw: -90, Heading: 270})
	if line, err = formatPose(b); err != nil || !strings.Contains(line, "HDG=270.00") {
		t.Fatalf("pose line %q, %v", line, err)
	}

	if _, err := formatPose([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if line, _ := formatRaw([]byte(`{"source":"serial"}`)); !strings.Contains(line, "quaternion-only") {
		t.Fatalf("quaternion-only raw line %q", line)
	}
}

func TestWebOrientationAPI(t *testing.T) {
	hub := newPoseHub()
	r := newWebRouter(hub, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orientation", nil))
	if w.Code != http.StatusServiceUnavailable || gjson.Get(w.Body.String(), "code").Int() != 503 {
		t.Fatalf("before data: %d %s", w.Code, w.Body)
	}

	if err := hub.updatePose([]byte(`{"roll":1.5,"pitch":-2,"yaw":30,"heading":30}`)); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orientation", nil))
	if w.Code != http.StatusOK || gjson.Get(w.Body.String(), "yaw").Float() != 30 {
		t.Fatalf("after data: %d %s", w.Code, w.Body)
	}

	if err := hub.updatePose([]byte("garbage")); err == nil {
		t.Fatal("expected unmarshal error")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/layouts", nil))
	if w.Code != http.StatusOK || gjson.Get(w.Body.String(), "#").Int() != 3 {
		t.Fatalf("layouts: %d %s", w.Code, w.Body)
	}
}

func TestWebSocketStreamsPose(t *testing.T) {
	hub := newPoseHub()
	if err := hub.updatePose([]byte(`{"roll":0,"pitch":0,"yaw":10,"heading":10}`)); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newWebRouter(hub, ""))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil || gjson.GetBytes(msg, "yaw").Float() != 10 {
		t.Fatalf("first message %s, %v", msg, err)
	}

	if err := hub.updatePose([]byte(`{"roll":0,"pitch":0,"yaw":20,"heading":20}`)); err != nil {
		t.Fatal(err)
	}
	_, msg, err = conn.ReadMessage()
	if err != nil || gjson.GetBytes(msg, "yaw").Float() != 20 {
		t.Fatalf("update message %s, %v", msg, err)
	}
}

func TestRenderOrientation(t *testing.T) {
	blank := func(img *image1bit.VerticalLSB) bool {
		for _, b := range img.Pix {
			if b != 0 {
				return false
			}
		}
		return true
	}
	if blank(renderOrientation(orientation.Pose{}, false, imu.Motion{}, false)) {
		t.Fatal("waiting screen is blank")
	}
	img := renderOrientation(orientation.Pose{Yaw: 12.5}, true, imu.Motion{LinearAccelWorld: math3d.IntVector3{Z: 40}}, true)
	if blank(img) || img.Bounds().Dx() != displayWidth {
		t.Fatal("orientation screen not drawn")
	}
	if blank(renderSplash()) {
		t.Fatal("splash is blank")
	}
}

func TestRegisterDumpFromSim(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	tr, closeTr, err := openRegisterTransport(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeTr()

	regs, err := sensors.DumpRegisters(tr)
	if err != nil || len(regs) == 0 {
		t.Fatalf("dump: %d registers, %v", len(regs), err)
	}
	var buf bytes.Buffer
	if err := writeRegisters(&buf, regs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ADDR") || !strings.Contains(out, "WHO_AM_I") || !strings.Contains(out, "0x68") {
		t.Fatalf("dump output:\n%s", out)
	}

	cfg.DMPSource = config.SourceSerial
	if _, _, err := openRegisterTransport(cfg); err == nil {
		t.Fatal("expected error for serial source")
	}
}
