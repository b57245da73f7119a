package engine

import (
	"fmt"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// EvaluationSystem grades a diagnosed encounter and closes it.
type EvaluationSystem struct {
	settings *Settings
	journal  *events.Journal
	logger   *logger.Logger
	metrics  *metrics.Collector
}

func NewEvaluationSystem(settings *Settings, journal *events.Journal, log *logger.Logger, m *metrics.Collector) *EvaluationSystem {
	return &EvaluationSystem{settings: settings, journal: journal, logger: log, metrics: m}
}

// Close evaluates p against tpl and moves the patient to its terminal status.
func (es *EvaluationSystem) Close(p *patient.Patient, tpl *clinical.CaseTemplate, mode rules.Mode, simSec int64) rules.Report {
	r := rules.Evaluate(p, tpl, es.settings.Scoring, es.settings.Modes.For(mode))

	if r.Outcome == rules.OutcomeDeath {
		p.Status = patient.StatusDead
		es.metrics.RecordDeath()
	} else {
		p.Status = patient.StatusDischarged
	}
	es.metrics.RecordEvaluation(r.Correct)

	verdict := "wrong"
	if r.Correct {
		verdict = "correct"
	}
	es.journal.Append(simSec, events.EventTypeCaseEvaluated, p.ID,
		fmt.Sprintf("%s: %s diagnosis, %+d points, outcome %s", tpl.Title, verdict, r.Points, r.Outcome))
	es.logger.Info("case evaluated", "patient", p.ID, "case", tpl.ID, "correct", r.Correct,
		"points", r.Points, "outcome", r.Outcome)
	return r
}
