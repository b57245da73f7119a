// Package metrics provides observability for the simulation server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and gameplay metrics. All Record methods are
// safe on a nil receiver so tests can pass nil.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Simulation metrics
	PatientsSpawned int64
	PatientsDied    int64
	CasesCorrect    int64
	CasesWrong      int64
	ActionsApplied  int64
	ActionsRejected int64
	EffectsResolved int64

	// Persistence metrics
	SavesWritten int64
	SaveLatSum   int64
	SaveLatMax   int64
	SaveErrors   int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector returns an empty collector with its uptime clock started.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordSpawn records a patient arrival.
func (c *Collector) RecordSpawn() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.PatientsSpawned, 1)
}

// RecordDeath records a patient death.
func (c *Collector) RecordDeath() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.PatientsDied, 1)
}

// RecordEvaluation records a finished case.
func (c *Collector) RecordEvaluation(correct bool) {
	if c == nil {
		return
	}
	if correct {
		atomic.AddInt64(&c.CasesCorrect, 1)
	} else {
		atomic.AddInt64(&c.CasesWrong, 1)
	}
}

// RecordAction records a player action; rejected covers duplicates and unknown keys.
func (c *Collector) RecordAction(applied bool) {
	if c == nil {
		return
	}
	if applied {
		atomic.AddInt64(&c.ActionsApplied, 1)
	} else {
		atomic.AddInt64(&c.ActionsRejected, 1)
	}
}

// RecordEffects records scheduled effects that fired.
func (c *Collector) RecordEffects(n int) {
	if c == nil || n == 0 {
		return
	}
	atomic.AddInt64(&c.EffectsResolved, int64(n))
}

// RecordSave records a save store write.
func (c *Collector) RecordSave(latency time.Duration, err error) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.SavesWritten, 1)
	atomic.AddInt64(&c.SaveLatSum, int64(latency))
	storeMax(&c.SaveLatMax, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	Tick struct {
		Count        int64   `json:"count"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
		MaxLatencyMs float64 `json:"max_latency_ms"`
		LastTick     string  `json:"last_tick"`
	} `json:"tick"`

	Sim struct {
		Spawned         int64 `json:"spawned"`
		Died            int64 `json:"died"`
		Correct         int64 `json:"correct"`
		Wrong           int64 `json:"wrong"`
		ActionsApplied  int64 `json:"actions_applied"`
		ActionsRejected int64 `json:"actions_rejected"`
		EffectsResolved int64 `json:"effects_resolved"`
	} `json:"sim"`

	Saves struct {
		Written      int64   `json:"written"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
		MaxLatencyMs float64 `json:"max_latency_ms"`
		Errors       int64   `json:"errors"`
	} `json:"saves"`

	WebSocket struct {
		ActiveConnections int64 `json:"active_connections"`
		MessagesIn        int64 `json:"messages_in"`
		MessagesOut       int64 `json:"messages_out"`
		Errors            int64 `json:"errors"`
	} `json:"websocket"`
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Snapshot
	s.UptimeSeconds = time.Since(c.StartTime).Seconds()

	s.Tick.Count = atomic.LoadInt64(&c.TickCount)
	if s.Tick.Count > 0 {
		s.Tick.AvgLatencyMs = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(s.Tick.Count) / 1e6
	}
	s.Tick.MaxLatencyMs = float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6
	if !c.LastTickTime.IsZero() {
		s.Tick.LastTick = c.LastTickTime.Format(time.RFC3339)
	}

	s.Sim.Spawned = atomic.LoadInt64(&c.PatientsSpawned)
	s.Sim.Died = atomic.LoadInt64(&c.PatientsDied)
	s.Sim.Correct = atomic.LoadInt64(&c.CasesCorrect)
	s.Sim.Wrong = atomic.LoadInt64(&c.CasesWrong)
	s.Sim.ActionsApplied = atomic.LoadInt64(&c.ActionsApplied)
	s.Sim.ActionsRejected = atomic.LoadInt64(&c.ActionsRejected)
	s.Sim.EffectsResolved = atomic.LoadInt64(&c.EffectsResolved)

	s.Saves.Written = atomic.LoadInt64(&c.SavesWritten)
	if s.Saves.Written > 0 {
		s.Saves.AvgLatencyMs = float64(atomic.LoadInt64(&c.SaveLatSum)) / float64(s.Saves.Written) / 1e6
	}
	s.Saves.MaxLatencyMs = float64(atomic.LoadInt64(&c.SaveLatMax)) / 1e6
	s.Saves.Errors = atomic.LoadInt64(&c.SaveErrors)

	s.WebSocket.ActiveConnections = atomic.LoadInt64(&c.WSConnectionsActive)
	s.WebSocket.MessagesIn = atomic.LoadInt64(&c.WSMessagesIn)
	s.WebSocket.MessagesOut = atomic.LoadInt64(&c.WSMessagesOut)
	s.WebSocket.Errors = atomic.LoadInt64(&c.WSErrors)

	return s
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s := c.Snapshot()

		fmt.Fprintf(w, "# HELP medsim_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE medsim_tick_count counter\n")
		fmt.Fprintf(w, "medsim_tick_count %d\n\n", s.Tick.Count)

		fmt.Fprintf(w, "# HELP medsim_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE medsim_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "medsim_tick_latency_max_ms %.2f\n\n", s.Tick.MaxLatencyMs)

		fmt.Fprintf(w, "# HELP medsim_patients_total Patients by fate\n")
		fmt.Fprintf(w, "# TYPE medsim_patients_total counter\n")
		fmt.Fprintf(w, "medsim_patients_total{fate=\"spawned\"} %d\n", s.Sim.Spawned)
		fmt.Fprintf(w, "medsim_patients_total{fate=\"died\"} %d\n\n", s.Sim.Died)

		fmt.Fprintf(w, "# HELP medsim_cases_total Evaluated cases by diagnosis correctness\n")
		fmt.Fprintf(w, "# TYPE medsim_cases_total counter\n")
		fmt.Fprintf(w, "medsim_cases_total{result=\"correct\"} %d\n", s.Sim.Correct)
		fmt.Fprintf(w, "medsim_cases_total{result=\"wrong\"} %d\n\n", s.Sim.Wrong)

		fmt.Fprintf(w, "# HELP medsim_actions_total Player actions\n")
		fmt.Fprintf(w, "# TYPE medsim_actions_total counter\n")
		fmt.Fprintf(w, "medsim_actions_total{result=\"applied\"} %d\n", s.Sim.ActionsApplied)
		fmt.Fprintf(w, "medsim_actions_total{result=\"rejected\"} %d\n\n", s.Sim.ActionsRejected)

		fmt.Fprintf(w, "# HELP medsim_save_errors Total save store errors\n")
		fmt.Fprintf(w, "# TYPE medsim_save_errors counter\n")
		fmt.Fprintf(w, "medsim_save_errors %d\n\n", s.Saves.Errors)

		fmt.Fprintf(w, "# HELP medsim_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE medsim_ws_connections gauge\n")
		fmt.Fprintf(w, "medsim_ws_connections %d\n\n", s.WebSocket.ActiveConnections)

		fmt.Fprintf(w, "# HELP medsim_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE medsim_ws_messages_total counter\n")
		fmt.Fprintf(w, "medsim_ws_messages_total{direction=\"in\"} %d\n", s.WebSocket.MessagesIn)
		fmt.Fprintf(w, "medsim_ws_messages_total{direction=\"out\"} %d\n", s.WebSocket.MessagesOut)
	}
}
