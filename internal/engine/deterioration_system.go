package engine

import (
	"fmt"
	"math/rand"

	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
)

// DeteriorationSystem advances the clinical state of a patient by one tick.
// It owns stage transitions, vitals refresh and the death check.
type DeteriorationSystem struct {
	settings  *Settings
	scheduler *EffectScheduler
	journal   *events.Journal
	logger    *logger.Logger
	rng       *rand.Rand
}

func NewDeteriorationSystem(settings *Settings, scheduler *EffectScheduler, journal *events.Journal, log *logger.Logger, rng *rand.Rand) *DeteriorationSystem {
	return &DeteriorationSystem{
		settings:  settings,
		scheduler: scheduler,
		journal:   journal,
		logger:    log,
		rng:       rng,
	}
}

var stageRank = map[patient.Stage]int{
	patient.StageStable:   0,
	patient.StageUnstable: 1,
	patient.StageCritical: 2,
}

// Tick runs elapsed, deterioration, due effects and the death check on p.
// It reports whether the patient died on this tick. Terminal patients are
// left untouched.
func (ds *DeteriorationSystem) Tick(p *patient.Patient, dt float64, mode rules.Mode, simSec int64) bool {
	if p.IsTerminal() {
		return false
	}
	det := ds.settings.Deterioration

	p.ElapsedSec += dt
	p.Severity = rules.Deteriorate(p.Severity, dt, p.Timings, det, ds.settings.Modes.For(mode))
	ds.scheduler.Fire(p, simSec)

	prev := p.Stage
	p.Stage = rules.StageFor(p.Severity, det)
	p.Vitals = rules.Vitals(p.Severity, ds.rng)

	if stageRank[p.Stage] > stageRank[prev] {
		ds.journal.Append(simSec, events.EventTypePatientDeteriorated, p.ID,
			fmt.Sprintf("%s worsened: %s -> %s", p.Name, prev, p.Stage))
		ds.logger.Event(string(events.EventTypePatientDeteriorated), p.ID, string(prev)+" -> "+string(p.Stage))
	}

	if rules.IsDead(p.Severity, p.ElapsedSec, det) {
		p.Status = patient.StatusDead
		ds.journal.Append(simSec, events.EventTypePatientDied, p.ID,
			fmt.Sprintf("%s arrested and did not survive", p.Name))
		ds.logger.Event(string(events.EventTypePatientDied), p.ID, p.TemplateID)
		return true
	}
	return false
}
