// Package events provides the session journal: a bounded, append-only log of
// what happened during a shift, shown to the player and exposed over the API.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a journal entry.
type EventType string

const (
	EventTypeSessionStarted      EventType = "SESSION_STARTED"
	EventTypePatientArrived      EventType = "PATIENT_ARRIVED"
	EventTypePatientSelected     EventType = "PATIENT_SELECTED"
	EventTypeHistoryTaken        EventType = "HISTORY_TAKEN"
	EventTypePhysicalDone        EventType = "PHYSICAL_DONE"
	EventTypeExamRequested       EventType = "EXAM_REQUESTED"
	EventTypeExamResultReady     EventType = "EXAM_RESULT_READY"
	EventTypeTreatmentGiven      EventType = "TREATMENT_GIVEN"
	EventTypeTreatmentEffect     EventType = "TREATMENT_EFFECT"
	EventTypeCriticalFlag        EventType = "CRITICAL_FLAG"
	EventTypeDiagnosisSubmitted  EventType = "DIAGNOSIS_SUBMITTED"
	EventTypeCaseEvaluated       EventType = "CASE_EVALUATED"
	EventTypePatientDeteriorated EventType = "PATIENT_DETERIORATED"
	EventTypePatientDied         EventType = "PATIENT_DIED"
	EventTypeLevelUp             EventType = "LEVEL_UP"
	EventTypeModeChanged         EventType = "MODE_CHANGED"
	EventTypeContentChanged      EventType = "CONTENT_CHANGED"
)

// DefaultCapacity is how many entries a journal keeps.
const DefaultCapacity = 250

// GameEvent is an immutable journal entry.
type GameEvent struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SimSec    int64     `json:"sim_sec"` // session clock at the time of the entry
	Type      EventType `json:"type"`
	ActorID   string    `json:"actor_id,omitempty"` // patient the entry is about
	Message   string    `json:"message"`
}

// Journal is the bounded in-memory log. When full, the oldest entry is
// dropped. Safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	events   []GameEvent
	capacity int
	seq      int64
	now      func() time.Time
}

// NewJournal creates a journal that keeps at most capacity entries.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{
		events:   make([]GameEvent, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Append stamps and stores an entry, returning the stored copy.
func (j *Journal) Append(simSec int64, typ EventType, actorID, message string) GameEvent {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e := GameEvent{
		Seq:       j.seq,
		ID:        uuid.NewString(),
		Timestamp: j.now(),
		SimSec:    simSec,
		Type:      typ,
		ActorID:   actorID,
		Message:   message,
	}
	if len(j.events) == j.capacity {
		copy(j.events, j.events[1:])
		j.events = j.events[:len(j.events)-1]
	}
	j.events = append(j.events, e)
	return e
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

// Replay returns a copy of every retained entry, oldest first.
func (j *Journal) Replay() []GameEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]GameEvent, len(j.events))
	copy(out, j.events)
	return out
}

// Recent returns up to n of the newest entries, oldest first.
func (j *Journal) Recent(n int) []GameEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if n <= 0 || n > len(j.events) {
		n = len(j.events)
	}
	out := make([]GameEvent, n)
	copy(out, j.events[len(j.events)-n:])
	return out
}

// Since returns entries with a sequence number greater than seq.
func (j *Journal) Since(seq int64) []GameEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []GameEvent
	for _, e := range j.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// GetByActor returns the retained entries about one patient.
func (j *Journal) GetByActor(actorID string) []GameEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []GameEvent
	for _, e := range j.events {
		if e.ActorID == actorID {
			out = append(out, e)
		}
	}
	return out
}

// GetByType returns the retained entries of one type.
func (j *Journal) GetByType(typ EventType) []GameEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []GameEvent
	for _, e := range j.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every entry. Sequence numbers keep increasing.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = j.events[:0]
}
