package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/engine"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
	"github.com/MRamiBalles/medsim/internal/platform/optimization"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	n := 0
	settings := engine.DefaultSettings()
	settings.Queue.ArrivalBaseSec = 1000
	settings.Queue.ArrivalMinSec = 1000
	e := engine.NewEngine(engine.Options{
		Settings: settings,
		Catalog:  clinical.NewCatalog(clinical.DefaultCases()[:1]),
		Logger:   logger.Discard(),
		Rand:     rand.New(rand.NewSource(1)),
		NewID: func() string {
			n++
			return fmt.Sprintf("p_%d", n)
		},
	})
	e.Boot()
	return e
}

func newTestAPI(t *testing.T) (*API, *engine.Engine) {
	t.Helper()
	e := newTestEngine(t)
	return NewAPI(e, nil, logger.Discard(), metrics.NewCollector()), e
}

func postCommand(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, Ack) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var ack Ack
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v (body %q)", err, rec.Body.String())
	}
	return rec, ack
}

func TestAPIStartAndState(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Routes()

	rec, ack := postCommand(t, h, "/api/commands", `{"type":"start","payload":{"name":"Ana"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ack.Command != CmdStart || ack.Error != nil {
		t.Errorf("ack = %+v", ack)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	srec := httptest.NewRecorder()
	h.ServeHTTP(srec, req)
	var s engine.Snapshot
	if err := json.Unmarshal(srec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if s.Status != engine.StatusRunning {
		t.Errorf("status = %s, want RUNNING", s.Status)
	}
	if s.Profile.Name != "Ana" {
		t.Errorf("profile = %q, want Ana", s.Profile.Name)
	}
	if len(s.Patients) == 0 || s.SelectedID == "" {
		t.Errorf("expected a selected patient, got %d patients, selected %q", len(s.Patients), s.SelectedID)
	}
}

func TestAPIUnknownCommand(t *testing.T) {
	api, _ := newTestAPI(t)

	rec, ack := postCommand(t, api.Routes(), "/api/commands", `{"type":"TELEPORT"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ack.Error == nil || ack.Error.Code != domainerrors.CodeInvalidCommand {
		t.Errorf("error = %+v, want INVALID_COMMAND", ack.Error)
	}
}

func TestAPIUnknownExam(t *testing.T) {
	api, e := newTestAPI(t)
	h := api.Routes()
	e.Start(engine.Profile{Name: "Ana"})

	rec, ack := postCommand(t, h, "/api/commands/exam", `{"payload":{"key":"pet_scan"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if ack.Error == nil || ack.Error.Code != domainerrors.CodeUnknownExam {
		t.Errorf("error = %+v, want UNKNOWN_EXAM", ack.Error)
	}

	_, ack = postCommand(t, h, "/api/commands/exam", `{"payload":{"key":"ecg"}}`)
	if ack.Outcome != engine.OutcomeApplied {
		t.Errorf("ecg outcome = %s, want APPLIED", ack.Outcome)
	}
	_, ack = postCommand(t, h, "/api/commands/exam", `{"payload":{"key":"ecg"}}`)
	if ack.Outcome != engine.OutcomeDuplicate {
		t.Errorf("repeat ecg outcome = %s, want DUPLICATE", ack.Outcome)
	}
}

func TestAPIMissingKey(t *testing.T) {
	api, e := newTestAPI(t)
	e.Start(engine.Profile{Name: "Ana"})

	rec, ack := postCommand(t, api.Routes(), "/api/commands/treatment", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ack.Error == nil || ack.Error.Code != domainerrors.CodeInvalidCommand {
		t.Errorf("error = %+v, want INVALID_COMMAND", ack.Error)
	}
}

func TestAPIDiagnoseReturnsReport(t *testing.T) {
	api, e := newTestAPI(t)
	h := api.Routes()
	e.Start(engine.Profile{Name: "Ana"})

	_, ack := postCommand(t, h, "/api/commands/diagnose", `{"payload":{"text":"pneumonia"}}`)
	if ack.Outcome != engine.OutcomeApplied {
		t.Fatalf("outcome = %s, want APPLIED", ack.Outcome)
	}
	if ack.Report == nil || ack.Report.Correct {
		t.Errorf("report = %+v, want a wrong diagnosis", ack.Report)
	}
}

func TestAPIPerformOnNamedPatient(t *testing.T) {
	api, e := newTestAPI(t)
	e.Start(engine.Profile{Name: "Ana"})

	_, ack := postCommand(t, api.Routes(), "/api/commands/history", `{"patient_id":"p_1"}`)
	if ack.Outcome != engine.OutcomeApplied {
		t.Errorf("outcome = %s, want APPLIED", ack.Outcome)
	}
	_, ack = postCommand(t, api.Routes(), "/api/commands/history", `{"patient_id":"nobody"}`)
	if ack.Outcome != engine.OutcomeIgnored || ack.Error != nil {
		t.Errorf("unknown patient ack = %+v, want silent IGNORED", ack)
	}
}

func TestJournalEndpoint(t *testing.T) {
	api, e := newTestAPI(t)
	h := api.Routes()
	e.Start(engine.Profile{Name: "Ana"})
	e.SetMode("training")

	get := func(url string) JournalResponse {
		t.Helper()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", url, rec.Code)
		}
		var resp JournalResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode journal: %v", err)
		}
		return resp
	}

	all := get("/api/journal")
	if all.Total == 0 {
		t.Fatal("journal is empty after start")
	}
	modes := get("/api/journal?type=mode_changed")
	if modes.Total != 1 {
		t.Errorf("MODE_CHANGED entries = %d, want 1", modes.Total)
	}
	newer := get(fmt.Sprintf("/api/journal?since=%d", all.LastSeq))
	if newer.Total != 0 || newer.LastSeq != all.LastSeq {
		t.Errorf("since last = %+v, want nothing new", newer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal?since=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	if !bytes.Contains(rec.Body.Bytes(), []byte("medsim_tick_count")) {
		t.Errorf("prometheus output missing tick counter:\n%s", rec.Body.String())
	}
}

func TestClientRateLimit(t *testing.T) {
	cfg := optimization.LowResourceConfig()
	cfg.MaxMessagesPerSecond = 2
	hub := NewHub(newTestEngine(t), cfg, logger.Discard(), nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}

	now := time.Now()
	if !c.allow(now) || !c.allow(now) {
		t.Fatal("first two commands should pass")
	}
	if c.allow(now.Add(500 * time.Millisecond)) {
		t.Error("third command in the same second should be limited")
	}
	if !c.allow(now.Add(1100 * time.Millisecond)) {
		t.Error("window should reset after a second")
	}
}

func TestWebSocketStateAndCommands(t *testing.T) {
	e := newTestEngine(t)
	m := metrics.NewCollector()
	hub := NewHub(e, optimization.DefaultConfig(), logger.Discard(), m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewAPI(e, hub, logger.Discard(), m).Routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first StateMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first.Type != "state" || first.State.Status != engine.StatusStart {
		t.Fatalf("initial frame = %s/%s, want state/START", first.Type, first.State.Status)
	}

	if err := conn.WriteJSON(PlayerAction{Type: CmdStart, RequestID: "r1", Payload: json.RawMessage(`{"name":"Ana"}`)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sawAck, sawRunning bool
	for !(sawAck && sawRunning) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var frame struct {
			Type string `json:"type"`
		}
		json.Unmarshal(raw, &frame)
		switch frame.Type {
		case "ack":
			var ack Ack
			json.Unmarshal(raw, &ack)
			if ack.RequestID != "r1" || ack.Error != nil {
				t.Fatalf("ack = %+v", ack)
			}
			sawAck = true
		case "state":
			var sm StateMessage
			json.Unmarshal(raw, &sm)
			if sm.State.Status == engine.StatusRunning {
				sawRunning = true
			}
		}
	}

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("clients = %d, want 1", got)
	}
}

func TestAPIPreflightAllowsAnyOrigin(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/commands", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if rec.Code >= 300 {
		t.Errorf("preflight status = %d", rec.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	get.Header.Set("Origin", "http://localhost:5173")
	grec := httptest.NewRecorder()
	api.Routes().ServeHTTP(grec, get)
	if got := grec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("simple request Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestAPICriticalFlag(t *testing.T) {
	api, e := newTestAPI(t)
	h := api.Routes()
	e.Start(engine.Profile{Name: "Ana"})

	_, ack := postCommand(t, h, "/api/commands/flag", `{"payload":{"key":"send_home"}}`)
	if ack.Outcome != engine.OutcomeApplied {
		t.Fatalf("flag outcome = %s, want APPLIED", ack.Outcome)
	}
	_, ack = postCommand(t, h, "/api/commands/flag", `{"payload":{"key":"send_home"}}`)
	if ack.Outcome != engine.OutcomeDuplicate {
		t.Errorf("repeat flag outcome = %s, want DUPLICATE", ack.Outcome)
	}
	rec, ack := postCommand(t, h, "/api/commands/flag", `{"payload":{"key":"lost_chart"}}`)
	if rec.Code != http.StatusUnprocessableEntity || ack.Error == nil || ack.Error.Code != domainerrors.CodeUnknownFlag {
		t.Errorf("unknown flag: status %d, error %+v", rec.Code, ack.Error)
	}
	_, ack = postCommand(t, h, "/api/commands/flag", `{"payload":{"key":"send_home","set":false}}`)
	if ack.Outcome != engine.OutcomeApplied {
		t.Errorf("withdraw outcome = %s, want APPLIED", ack.Outcome)
	}
	if flags := e.Snapshot().Selected().CriticalFlags; len(flags) != 0 {
		t.Errorf("flags = %v, want none after withdrawal", flags)
	}
}

func TestHubShutdownReleasesConnections(t *testing.T) {
	m := metrics.NewCollector()
	hub := NewHub(newTestEngine(t), optimization.DefaultConfig(), logger.Discard(), m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- c
	cancel()

	select {
	case <-hub.done:
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
	if got := m.Snapshot().WebSocket.ActiveConnections; got != 0 {
		t.Errorf("active connections = %d, want 0 after shutdown", got)
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("clients = %d, want 0", got)
	}
	for range c.send {
	}
}
