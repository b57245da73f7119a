package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
)

type memSaver struct {
	data    SaveData
	has     bool
	saves   int
	cleared int
}

func (m *memSaver) Load() (SaveData, bool) { return m.data, m.has }

func (m *memSaver) Save(d SaveData) {
	m.data, m.has = d, true
	m.saves++
}

func (m *memSaver) Clear() {
	m.data, m.has = SaveData{}, false
	m.cleared++
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("p_%d", n)
	}
}

// chestPain is a case that starts at zero severity and dies after 30+22+18 s untouched.
func chestPain() clinical.CaseTemplate {
	sev := 0.0
	return clinical.CaseTemplate{
		ID:               "mi",
		Title:            "Chest pain",
		Specialty:        "Cardiology",
		Difficulty:       1,
		Triage:           2,
		Patient:          clinical.Demographics{Name: "Carlos", Age: 58, Sex: "M"},
		ChiefComplaint:   "Crushing chest pain",
		History:          []string{"Pain for 40 minutes, radiating to the left arm"},
		PhysicalFindings: []string{"Diaphoretic, anxious"},
		Exams: map[clinical.ExamKey]string{
			"ecg":           "ST elevation V1-V4",
			"troponin_labs": "Troponin elevated",
			"chest_ct":      "No dissection",
		},
		Treatments: map[clinical.TreatmentKey]clinical.TreatmentEffect{
			"aspirin":     {Text: "Aspirin chewed", SeverityDelta: -0.2, DelaySec: 5},
			"oxygen":      {Text: "Oxygen by mask", SeverityDelta: -0.05, DelaySec: 3},
			"reassurance": {Text: "Patient reassured"},
		},
		Correct: clinical.AnswerKey{
			Diagnosis:          "Acute myocardial infarction",
			RequiredExams:      []clinical.ExamKey{"ecg"},
			HarmfulExams:       []clinical.ExamKey{"chest_ct"},
			RequiredTreatments: []clinical.TreatmentKey{"aspirin"},
		},
		Deterioration:   &clinical.Deterioration{StableToUnstableSec: 30, UnstableToCriticalSec: 22, CriticalToDeadSec: 18},
		InitialSeverity: &sev,
		Education:       clinical.Education{Summary: "Time is muscle."},
	}
}

// quietSettings disables timed arrivals so tests control the queue.
func quietSettings() Settings {
	s := DefaultSettings()
	s.Queue.ArrivalBaseSec = 1000
	s.Queue.ArrivalMinSec = 1000
	return s
}

func newTestEngine(t *testing.T, settings Settings) (*Engine, *memSaver) {
	t.Helper()
	saver := &memSaver{}
	e := NewEngine(Options{
		Settings: settings,
		Catalog:  clinical.NewCatalog([]clinical.CaseTemplate{chestPain()}),
		Saver:    saver,
		Logger:   logger.Discard(),
		Rand:     rand.New(rand.NewSource(1)),
		NewID:    sequentialIDs(),
	})
	e.Boot()
	return e, saver
}
