// Package patient defines the live patient entity spawned from a case template.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package patient

import (
	"fmt"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
)

// Triage is the arrival priority. Lower is more urgent.
type Triage int

const (
	TriageRed    Triage = 1
	TriageOrange Triage = 2
	TriageYellow Triage = 3
)

func (t Triage) String() string {
	switch t {
	case TriageRed:
		return "RED"
	case TriageOrange:
		return "ORANGE"
	case TriageYellow:
		return "YELLOW"
	}
	return "UNKNOWN"
}

// Stage is the severity band a patient is in.
type Stage string

const (
	StageStable   Stage = "STABLE"
	StageUnstable Stage = "UNSTABLE"
	StageCritical Stage = "CRITICAL"
)

// Status is the lifecycle of an encounter.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInCare     Status = "IN_CARE"
	StatusDischarged Status = "DISCHARGED"
	StatusDead       Status = "DEAD"
)

// Terminal reports whether the status admits no further ticks or actions.
func (s Status) Terminal() bool {
	return s == StatusDischarged || s == StatusDead
}

// Vitals is the cached vital-sign readout. Derived from severity on every tick.
type Vitals struct {
	HR   int     `json:"hr"`   // bpm
	RR   int     `json:"rr"`   // breaths/min
	SpO2 int     `json:"spo2"` // %
	SBP  int     `json:"sbp"`  // mmHg
	Temp float64 `json:"temp"` // °C
}

func (v Vitals) String() string {
	return fmt.Sprintf("HR %d bpm, RR %d/min, SpO2 %d%%, SBP %d mmHg, T %.1f °C", v.HR, v.RR, v.SpO2, v.SBP, v.Temp)
}

// ExamResult tracks an ordered exam until its text is revealed.
type ExamResult struct {
	Text       string  `json:"text,omitempty"`
	ReadyAtSec float64 `json:"ready_at_sec"`
	Ready      bool    `json:"ready"`
}

// Patient is one live encounter in the queue.
type Patient struct {
	ID             string `json:"id"`
	TemplateID     string `json:"template_id"`
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Sex            string `json:"sex"`
	ChiefComplaint string `json:"chief_complaint"`
	Specialty      string `json:"specialty"`
	Difficulty     int    `json:"difficulty"`
	ArrivalLevel   int    `json:"arrival_level"`
	Triage         Triage `json:"triage"`

	// Clinical state
	Severity   float64 `json:"severity"` // 0..1, source of truth for stage and vitals
	Stage      Stage   `json:"stage"`
	Status     Status  `json:"status"`
	Vitals     Vitals  `json:"vitals"`
	ElapsedSec float64 `json:"elapsed_sec"` // tick seconds plus action time costs

	// Encounter record
	HistoryTaken    bool                             `json:"history_taken"`
	PhysicalDone    bool                             `json:"physical_done"`
	ExamsOrdered    []clinical.ExamKey               `json:"exams_ordered"`
	TreatmentsGiven []clinical.TreatmentKey          `json:"treatments_given"`
	ExamResults     map[clinical.ExamKey]*ExamResult `json:"exam_results"`
	Revealed        []string                         `json:"revealed"`
	CriticalFlags   []clinical.FlagKey               `json:"critical_flags"`
	FinalDiagnosis  *string                          `json:"final_diagnosis,omitempty"`
	Pending         []ScheduledEffect                `json:"pending"`
	Timings         clinical.Deterioration           `json:"timings"`

	nextSeq uint64
}

// IsTerminal reports whether the patient has left the simulation.
func (p *Patient) IsTerminal() bool {
	return p.Status.Terminal()
}

// HasOrdered reports whether the exam was already requested.
func (p *Patient) HasOrdered(key clinical.ExamKey) bool {
	for _, k := range p.ExamsOrdered {
		if k == key {
			return true
		}
	}
	return false
}

// HasGiven reports whether the treatment was already administered.
func (p *Patient) HasGiven(key clinical.TreatmentKey) bool {
	for _, k := range p.TreatmentsGiven {
		if k == key {
			return true
		}
	}
	return false
}

// HasFlag reports whether a critical error was recorded.
func (p *Patient) HasFlag(key clinical.FlagKey) bool {
	for _, k := range p.CriticalFlags {
		if k == key {
			return true
		}
	}
	return false
}

// Reveal appends lines to the revealed findings.
func (p *Patient) Reveal(lines ...string) {
	p.Revealed = append(p.Revealed, lines...)
}

// Schedule queues an effect and stamps its insertion sequence.
func (p *Patient) Schedule(e ScheduledEffect) {
	p.nextSeq++
	e.Seq = p.nextSeq
	p.Pending = append(p.Pending, e)
}

// Clone returns a deep copy that shares no mutable memory with p.
func (p *Patient) Clone() *Patient {
	c := *p
	c.ExamsOrdered = append([]clinical.ExamKey(nil), p.ExamsOrdered...)
	c.TreatmentsGiven = append([]clinical.TreatmentKey(nil), p.TreatmentsGiven...)
	c.Revealed = append([]string(nil), p.Revealed...)
	c.CriticalFlags = append([]clinical.FlagKey(nil), p.CriticalFlags...)
	c.Pending = append([]ScheduledEffect(nil), p.Pending...)
	if p.ExamResults != nil {
		c.ExamResults = make(map[clinical.ExamKey]*ExamResult, len(p.ExamResults))
		for k, v := range p.ExamResults {
			r := *v
			c.ExamResults[k] = &r
		}
	}
	if p.FinalDiagnosis != nil {
		d := *p.FinalDiagnosis
		c.FinalDiagnosis = &d
	}
	return &c
}
