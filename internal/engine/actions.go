package engine

import (
	"fmt"
	"strings"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// Action is a bedside command. The set of variants is closed.
type Action interface {
	actionName() string
}

// TakeHistory reveals the case history.
type TakeHistory struct{}

// PhysicalExam reveals the physical findings and a vitals readout.
type PhysicalExam struct{}

// RequestExam orders a complementary exam.
type RequestExam struct {
	Key clinical.ExamKey
}

// GiveTreatment administers a treatment.
type GiveTreatment struct {
	Key clinical.TreatmentKey
}

// SetCriticalFlag records (Set true) or withdraws a critical error against
// the encounter.
type SetCriticalFlag struct {
	Key clinical.FlagKey
	Set bool
}

// FinalDiagnosis closes the encounter.
type FinalDiagnosis struct {
	Text string
}

func (TakeHistory) actionName() string     { return "history" }
func (PhysicalExam) actionName() string    { return "physical" }
func (RequestExam) actionName() string     { return "exam" }
func (GiveTreatment) actionName() string   { return "treatment" }
func (SetCriticalFlag) actionName() string { return "flag" }
func (FinalDiagnosis) actionName() string  { return "diagnosis" }

// Outcome tells the caller what an action did.
type Outcome string

const (
	OutcomeApplied   Outcome = "APPLIED"
	OutcomeIgnored   Outcome = "IGNORED"   // terminal patient
	OutcomeDuplicate Outcome = "DUPLICATE" // already done this encounter
)

// ActionContext is the session state an action runs under.
type ActionContext struct {
	Mode   rules.Mode
	SimSec int64
}

// ActionProcessor validates and applies bedside actions to one patient.
type ActionProcessor struct {
	settings *Settings
	journal  *events.Journal
	logger   *logger.Logger
	metrics  *metrics.Collector
}

func NewActionProcessor(settings *Settings, journal *events.Journal, log *logger.Logger, m *metrics.Collector) *ActionProcessor {
	return &ActionProcessor{settings: settings, journal: journal, logger: log, metrics: m}
}

// Perform applies a to p. Terminal patients are ignored without error.
// Unknown exam and treatment keys fail with a coded error and change nothing.
func (ap *ActionProcessor) Perform(p *patient.Patient, tpl *clinical.CaseTemplate, a Action, ac ActionContext) (Outcome, error) {
	if p == nil || p.IsTerminal() {
		return OutcomeIgnored, nil
	}

	var (
		out Outcome
		err error
	)
	switch act := a.(type) {
	case TakeHistory:
		out = ap.history(p, tpl, ac)
	case PhysicalExam:
		out = ap.physical(p, tpl, ac)
	case RequestExam:
		out, err = ap.exam(p, tpl, act.Key, ac)
	case GiveTreatment:
		out, err = ap.treatment(p, tpl, act.Key, ac)
	case SetCriticalFlag:
		out, err = ap.flag(p, tpl, act, ac)
	case FinalDiagnosis:
		out = ap.diagnosis(p, act.Text, ac)
	default:
		err = domainerrors.New(domainerrors.CodeInvalidCommand, fmt.Sprintf("unsupported action %T", a))
	}

	ap.metrics.RecordAction(err == nil && out == OutcomeApplied)
	if err != nil {
		ap.logger.Warn("action rejected", "patient", p.ID, "action", actionName(a), "error", err)
	}
	return out, err
}

func actionName(a Action) string {
	if a == nil {
		return "none"
	}
	return a.actionName()
}

func (ap *ActionProcessor) history(p *patient.Patient, tpl *clinical.CaseTemplate, ac ActionContext) Outcome {
	if p.HistoryTaken {
		return OutcomeDuplicate
	}
	p.HistoryTaken = true
	p.Reveal(tpl.History...)
	p.ElapsedSec += ap.settings.Costs.HistorySec
	ap.journal.Append(ac.SimSec, events.EventTypeHistoryTaken, p.ID, "History taken: "+p.Name)
	return OutcomeApplied
}

func (ap *ActionProcessor) physical(p *patient.Patient, tpl *clinical.CaseTemplate, ac ActionContext) Outcome {
	if p.PhysicalDone {
		return OutcomeDuplicate
	}
	p.PhysicalDone = true
	p.Reveal(tpl.PhysicalFindings...)
	p.Reveal("Vitals: " + p.Vitals.String())
	p.ElapsedSec += ap.settings.Costs.PhysicalSec
	ap.journal.Append(ac.SimSec, events.EventTypePhysicalDone, p.ID, "Physical exam done: "+p.Name)
	return OutcomeApplied
}

func (ap *ActionProcessor) exam(p *patient.Patient, tpl *clinical.CaseTemplate, key clinical.ExamKey, ac ActionContext) (Outcome, error) {
	text, ok := tpl.Exams[key]
	if !ok {
		return OutcomeIgnored, domainerrors.WithMetadata(domainerrors.CodeUnknownExam,
			"exam not offered by case", map[string]string{"case": tpl.ID, "exam": string(key)})
	}
	if p.HasOrdered(key) {
		return OutcomeDuplicate, nil
	}

	// The exam's own time is spent before the delay starts counting.
	p.ElapsedSec += ap.settings.Costs.ExamSec
	delay := rules.ExamDelay(key, ap.settings.Modes.For(ac.Mode), ap.settings.Modes.ExamDelayFloorSec)
	readyAt := p.ElapsedSec + delay

	p.ExamsOrdered = append(p.ExamsOrdered, key)
	p.ExamResults[key] = &patient.ExamResult{ReadyAtSec: readyAt}
	p.Schedule(patient.ScheduledEffect{
		Kind:       patient.EffectExamResult,
		Key:        string(key),
		Text:       text,
		ReadyAtSec: readyAt,
	})

	ap.journal.Append(ac.SimSec, events.EventTypeExamRequested, p.ID,
		fmt.Sprintf("Exam requested: %s (ready in %.0fs)", strings.ToUpper(string(key)), delay))
	return OutcomeApplied, nil
}

func (ap *ActionProcessor) treatment(p *patient.Patient, tpl *clinical.CaseTemplate, key clinical.TreatmentKey, ac ActionContext) (Outcome, error) {
	eff, ok := tpl.Treatments[key]
	if !ok {
		return OutcomeIgnored, domainerrors.WithMetadata(domainerrors.CodeUnknownTreatment,
			"treatment not offered by case", map[string]string{"case": tpl.ID, "treatment": string(key)})
	}
	if p.HasGiven(key) {
		return OutcomeDuplicate, nil
	}

	p.TreatmentsGiven = append(p.TreatmentsGiven, key)
	switch {
	case eff.SeverityDelta != 0:
		p.Schedule(patient.ScheduledEffect{
			Kind:          patient.EffectTreatmentEffect,
			Key:           string(key),
			Text:          eff.Text,
			SeverityDelta: eff.SeverityDelta,
			ReadyAtSec:    p.ElapsedSec + rules.TreatmentDelay(eff),
		})
	case eff.Text != "":
		p.Reveal(eff.Text)
	}
	p.ElapsedSec += ap.settings.Costs.TreatmentSec

	ap.journal.Append(ac.SimSec, events.EventTypeTreatmentGiven, p.ID, "Treatment given: "+string(key))
	return OutcomeApplied, nil
}

func (ap *ActionProcessor) flag(p *patient.Patient, tpl *clinical.CaseTemplate, act SetCriticalFlag, ac ActionContext) (Outcome, error) {
	msg, ok := tpl.CriticalFlag(act.Key)
	if !ok {
		return OutcomeIgnored, domainerrors.WithMetadata(domainerrors.CodeUnknownFlag,
			"critical flag not accepted by case", map[string]string{"case": tpl.ID, "flag": string(act.Key)})
	}
	if p.HasFlag(act.Key) == act.Set {
		return OutcomeDuplicate, nil
	}

	if act.Set {
		p.CriticalFlags = append(p.CriticalFlags, act.Key)
		ap.journal.Append(ac.SimSec, events.EventTypeCriticalFlag, p.ID, "Critical error recorded: "+msg)
		return OutcomeApplied, nil
	}
	kept := p.CriticalFlags[:0]
	for _, k := range p.CriticalFlags {
		if k != act.Key {
			kept = append(kept, k)
		}
	}
	p.CriticalFlags = kept
	ap.journal.Append(ac.SimSec, events.EventTypeCriticalFlag, p.ID, "Critical error withdrawn: "+msg)
	return OutcomeApplied, nil
}

func (ap *ActionProcessor) diagnosis(p *patient.Patient, text string, ac ActionContext) Outcome {
	if p.FinalDiagnosis != nil {
		return OutcomeDuplicate
	}
	d := strings.TrimSpace(text)
	p.FinalDiagnosis = &d
	ap.journal.Append(ac.SimSec, events.EventTypeDiagnosisSubmitted, p.ID, "Diagnosis submitted: "+d)
	return OutcomeApplied
}
