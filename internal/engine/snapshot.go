package engine

import (
	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
)

// Status is the session lifecycle.
type Status string

const (
	StatusBoot     Status = "BOOT"
	StatusStart    Status = "START"
	StatusRunning  Status = "RUNNING"
	StatusFeedback Status = "FEEDBACK"
)

// Profile identifies the player.
type Profile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// RunAggregate is the persisted progress of the current shift.
type RunAggregate struct {
	Level          int `json:"level"`
	XP             int `json:"xp"`
	ScoreTotal     int `json:"scoreTotal"`
	CasesCompleted int `json:"casesCompleted"`
	CorrectCount   int `json:"correctCount"`
	WrongCount     int `json:"wrongCount"`
	Deaths         int `json:"deaths"`
}

// NewRun returns the aggregate of a fresh shift.
func NewRun() RunAggregate {
	return RunAggregate{Level: 1}
}

// PatientView is a patient plus what can still be ordered for it.
type PatientView struct {
	patient.Patient
	AvailableExams      []clinical.ExamKey      `json:"available_exams"`
	AvailableTreatments []clinical.TreatmentKey `json:"available_treatments"`
	AvailableFlags      []clinical.FlagKey      `json:"available_flags"`
}

// Snapshot is a by-value projection of the engine. It shares no mutable
// memory with the engine or with other snapshots.
type Snapshot struct {
	Status         Status             `json:"status"`
	Paused         bool               `json:"paused"`
	Mode           rules.Mode         `json:"mode"`
	SimSec         int64              `json:"sim_sec"`
	Profile        Profile            `json:"profile"`
	Run            RunAggregate       `json:"run"`
	Rank           string             `json:"rank"`
	Capacity       int                `json:"capacity"`
	NextArrivalSec float64            `json:"next_arrival_sec"`
	Patients       []PatientView      `json:"patients"`
	SelectedID     string             `json:"selected_id,omitempty"`
	Feedback       *rules.Report      `json:"feedback,omitempty"`
	RecentReports  []rules.Report     `json:"recent_reports"`
	Content        clinical.Filter    `json:"content"`
	Specialties    []string           `json:"specialties"`
	Journal        []events.GameEvent `json:"journal"`
}

// Selected returns the selected patient view, or nil.
func (s Snapshot) Selected() *PatientView {
	for i := range s.Patients {
		if s.Patients[i].ID == s.SelectedID {
			return &s.Patients[i]
		}
	}
	return nil
}

func cloneReport(r rules.Report) rules.Report {
	c := r
	c.MissingExams = append([]clinical.ExamKey(nil), r.MissingExams...)
	c.MissingTreatments = append([]clinical.TreatmentKey(nil), r.MissingTreatments...)
	c.HarmfulExams = append([]clinical.ExamKey(nil), r.HarmfulExams...)
	c.HarmfulTreatments = append([]clinical.TreatmentKey(nil), r.HarmfulTreatments...)
	c.HelpfulExamsDone = append([]clinical.ExamKey(nil), r.HelpfulExamsDone...)
	c.CriticalErrors = append([]clinical.FlagKey(nil), r.CriticalErrors...)
	c.Positives = append([]string(nil), r.Positives...)
	c.Errors = append([]string(nil), r.Errors...)
	c.Education.KeyPoints = append([]string(nil), r.Education.KeyPoints...)
	return c
}

// snapshotLocked builds a snapshot. Caller holds e.mu.
func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:         e.status,
		Paused:         e.paused,
		Mode:           e.mode,
		SimSec:         e.simSec,
		Profile:        e.profile,
		Run:            e.run,
		Rank:           rules.RankTitle(e.run.Level),
		Capacity:       rules.Capacity(e.run.Level, e.settings.Queue),
		NextArrivalSec: e.arrivals.Countdown(),
		Patients:       make([]PatientView, 0, len(e.patients)),
		SelectedID:     e.selectedID,
		RecentReports:  make([]rules.Report, 0, len(e.recent)),
		Content:        e.content,
		Specialties:    e.arrivals.Catalog().Specialties(),
		Journal:        e.journal.Replay(),
	}
	for _, p := range e.patients {
		v := PatientView{Patient: *p.Clone()}
		// Results and treatment deltas stay hidden until the effect fires.
		for i := range v.Pending {
			v.Pending[i] = v.Pending[i].Outline()
		}
		if tpl := e.templates[p.ID]; tpl != nil {
			v.AvailableExams = tpl.ExamKeys()
			v.AvailableTreatments = tpl.TreatmentKeys()
			v.AvailableFlags = tpl.FlagKeys()
		}
		s.Patients = append(s.Patients, v)
	}
	if e.feedback != nil {
		r := cloneReport(*e.feedback)
		s.Feedback = &r
	}
	for _, r := range e.recent {
		s.RecentReports = append(s.RecentReports, cloneReport(r))
	}
	return s
}
