package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
)

// JournalSource is the read side of the session journal.
type JournalSource interface {
	JournalSince(seq int64) []events.GameEvent
}

// JournalHandler serves the session journal for replay after a shift.
type JournalHandler struct {
	source JournalSource
	logger *logger.Logger
}

func NewJournalHandler(src JournalSource, log *logger.Logger) *JournalHandler {
	return &JournalHandler{source: src, logger: log}
}

// JournalEntry is an event formatted for the shift review screen.
type JournalEntry struct {
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"`
	Clock     string `json:"clock"` // session clock as mm:ss
	Type      string `json:"type"`
	PatientID string `json:"patient_id,omitempty"`
	Message   string `json:"message"`
	Impact    string `json:"impact"`
}

// JournalResponse is the API response for GET /api/journal.
type JournalResponse struct {
	Total       int            `json:"total"`
	LastSeq     int64          `json:"last_seq"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []JournalEntry `json:"events"`
}

// HandleJournal returns entries newer than ?since, optionally filtered.
// GET /api/journal?since=N&type=PATIENT_DIED&patient=p_1
func (jh *JournalHandler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since int64
	if s := q.Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			jsonError(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = v
	}
	eventType := strings.ToUpper(q.Get("type"))
	patientID := q.Get("patient")

	var filters []string
	if eventType != "" {
		filters = append(filters, "type "+eventType)
	}
	if patientID != "" {
		filters = append(filters, "patient "+patientID)
	}

	resp := JournalResponse{
		FilteredBy:  strings.Join(filters, ", "),
		GeneratedAt: time.Now().Format(time.RFC3339),
		LastSeq:     since,
		Events:      []JournalEntry{},
	}
	for _, e := range jh.source.JournalSince(since) {
		resp.LastSeq = e.Seq
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if patientID != "" && e.ActorID != patientID {
			continue
		}
		resp.Events = append(resp.Events, toJournalEntry(e))
	}
	resp.Total = len(resp.Events)

	writeJSON(w, http.StatusOK, resp)
}

// HandleStats returns counts per entry type over the retained journal.
// GET /api/journal/stats
func (jh *JournalHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	all := jh.source.JournalSince(0)

	stats := map[string]int{
		"total_events": len(all),
		"arrivals":     0,
		"deteriorated": 0,
		"deaths":       0,
		"evaluations":  0,
	}
	for _, e := range all {
		switch e.Type {
		case events.EventTypePatientArrived:
			stats["arrivals"]++
		case events.EventTypePatientDeteriorated:
			stats["deteriorated"]++
		case events.EventTypePatientDied:
			stats["deaths"]++
		case events.EventTypeCaseEvaluated:
			stats["evaluations"]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

func toJournalEntry(e events.GameEvent) JournalEntry {
	return JournalEntry{
		Seq:       e.Seq,
		Timestamp: e.Timestamp.Format("15:04:05"),
		Clock:     fmt.Sprintf("%02d:%02d", e.SimSec/60, e.SimSec%60),
		Type:      string(e.Type),
		PatientID: e.ActorID,
		Message:   e.Message,
		Impact:    determineImpact(e.Type),
	}
}

// determineImpact classifies an entry for colouring in the UI.
func determineImpact(t events.EventType) string {
	switch t {
	case events.EventTypePatientDeteriorated, events.EventTypePatientDied:
		return "NEGATIVE"
	case events.EventTypeTreatmentEffect, events.EventTypeLevelUp:
		return "POSITIVE"
	default:
		return "NEUTRAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
