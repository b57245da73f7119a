package engine

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
)

// IDGenerator produces patient identifiers.
type IDGenerator func() string

// NewPatientID is the default generator.
func NewPatientID() string {
	return "p_" + uuid.NewString()
}

// DifficultyContext is the session state a new patient is created under.
type DifficultyContext struct {
	Level int
	Mode  rules.Mode
}

// Factory turns case templates into live patients.
type Factory struct {
	settings *Settings
	newID    IDGenerator
	rng      *rand.Rand
}

// NewFactory creates a factory. A nil generator falls back to NewPatientID.
func NewFactory(settings *Settings, newID IDGenerator, rng *rand.Rand) *Factory {
	if newID == nil {
		newID = NewPatientID
	}
	return &Factory{settings: settings, newID: newID, rng: rng}
}

// ResolveTriage uses the template's triage or derives one from difficulty.
func ResolveTriage(tpl *clinical.CaseTemplate) patient.Triage {
	if tpl.Triage >= 1 && tpl.Triage <= 3 {
		return patient.Triage(tpl.Triage)
	}
	if tpl.Difficulty >= 2 {
		return patient.TriageOrange
	}
	return patient.TriageYellow
}

// Create builds a WAITING patient. The template is only read.
func (f *Factory) Create(tpl *clinical.CaseTemplate, dc DifficultyContext) *patient.Patient {
	det := f.settings.Deterioration

	severity := det.DefaultInitialSeverity
	if tpl.InitialSeverity != nil {
		severity = rules.ApplyDelta(*tpl.InitialSeverity, 0)
	}

	p := &patient.Patient{
		ID:              f.newID(),
		TemplateID:      tpl.ID,
		Name:            tpl.Patient.Name,
		Age:             tpl.Patient.Age,
		Sex:             tpl.Patient.Sex,
		ChiefComplaint:  tpl.ChiefComplaint,
		Specialty:       tpl.Specialty,
		Difficulty:      tpl.Difficulty,
		ArrivalLevel:    dc.Level,
		Triage:          ResolveTriage(tpl),
		Severity:        severity,
		Stage:           rules.StageFor(severity, det),
		Status:          patient.StatusWaiting,
		Vitals:          rules.Vitals(severity, f.rng),
		ExamsOrdered:    []clinical.ExamKey{},
		TreatmentsGiven: []clinical.TreatmentKey{},
		ExamResults:     map[clinical.ExamKey]*patient.ExamResult{},
		Revealed:        []string{},
		Pending:         []patient.ScheduledEffect{},
		Timings:         tpl.Deterioration.Merge(det.Timings()),
	}
	return p
}
