package engine

import (
	"fmt"
	"strings"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// EffectScheduler fires the delayed consequences of actions once they are due.
type EffectScheduler struct {
	journal *events.Journal
	logger  *logger.Logger
	metrics *metrics.Collector
}

func NewEffectScheduler(journal *events.Journal, log *logger.Logger, m *metrics.Collector) *EffectScheduler {
	return &EffectScheduler{journal: journal, logger: log, metrics: m}
}

// Fire applies every effect due at the patient's elapsed time, in the order
// they were scheduled, and returns how many fired.
func (es *EffectScheduler) Fire(p *patient.Patient, simSec int64) int {
	ready := p.TakeReady()
	for _, e := range ready {
		switch e.Kind {
		case patient.EffectExamResult:
			key := clinical.ExamKey(e.Key)
			r, ok := p.ExamResults[key]
			if !ok {
				r = &patient.ExamResult{ReadyAtSec: e.ReadyAtSec}
				p.ExamResults[key] = r
			}
			r.Ready = true
			r.Text = e.Text
			p.Reveal(strings.ToUpper(e.Key) + ": " + e.Text)
			es.journal.Append(simSec, events.EventTypeExamResultReady, p.ID,
				fmt.Sprintf("Result ready: %s (%s)", strings.ToUpper(e.Key), p.Name))

		case patient.EffectTreatmentEffect:
			before := p.Severity
			p.Severity = rules.ApplyDelta(p.Severity, e.SeverityDelta)
			if e.Text != "" {
				p.Reveal(e.Text)
			}
			es.journal.Append(simSec, events.EventTypeTreatmentEffect, p.ID,
				fmt.Sprintf("%s took effect on %s", e.Key, p.Name))
			es.logger.Info("treatment effect", "patient", p.ID, "treatment", e.Key,
				"severity_before", before, "severity_after", p.Severity)
		}
	}
	es.metrics.RecordEffects(len(ready))
	return len(ready)
}
