// Package test holds headless shift drills: scripted students play the
// built-in cases against a real engine and the outcomes are checked.
package test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/engine"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// ShiftDrill runs every scenario over a set of cases.
type ShiftDrill struct {
	cases    []clinical.CaseTemplate
	settings engine.Settings
	logger   *logger.Logger
	metrics  *metrics.Collector
	seed     int64
	results  []TestResult
}

// TestResult captures the outcome of one scenario.
type TestResult struct {
	ScenarioName string
	CaseID       string
	Expected     string
	Actual       string
	Points       int
	Passed       bool
	Reason       string
}

// NewShiftDrill creates a drill over cases. Timed arrivals are disabled so
// each scenario sees only the patients it started with.
func NewShiftDrill(cases []clinical.CaseTemplate, settings engine.Settings, log *logger.Logger, m *metrics.Collector) *ShiftDrill {
	if len(cases) == 0 {
		cases = clinical.DefaultCases()
	}
	settings.Queue.ArrivalBaseSec = 1e6
	settings.Queue.ArrivalMinSec = 1e6
	return &ShiftDrill{
		cases:    cases,
		settings: settings,
		logger:   log,
		metrics:  m,
		seed:     1,
	}
}

// RunTest plays the model, careless and neglect scenarios on every case.
func (d *ShiftDrill) RunTest(ctx context.Context) {
	for i := range d.cases {
		tpl := d.cases[i]
		tpl.Normalize()
		if ctx.Err() != nil {
			return
		}

		fmt.Println("\n" + strings.Repeat("=", 60))
		fmt.Printf("🩺 CASE %s: %s\n", tpl.ID, tpl.Title)
		fmt.Println(strings.Repeat("=", 60))

		model := d.modelStudent(tpl)
		d.record(model)
		d.record(d.carelessStudent(tpl, model.Points))
		d.record(d.neglect(tpl))
	}
}

// GetResults returns all scenario results.
func (d *ShiftDrill) GetResults() []TestResult {
	return d.results
}

func (d *ShiftDrill) record(r TestResult) {
	d.results = append(d.results, r)
	mark := "✅"
	if !r.Passed {
		mark = "❌"
	}
	fmt.Printf("   %s %-16s expected %-28s got %s\n", mark, r.ScenarioName, r.Expected, r.Actual)
	if !r.Passed {
		fmt.Println("      " + r.Reason)
		d.logger.Warn("drill scenario failed", "scenario", r.ScenarioName, "case", r.CaseID, "reason", r.Reason)
	}
}

func (d *ShiftDrill) newEngine(tpl clinical.CaseTemplate) *engine.Engine {
	d.seed++
	e := engine.NewEngine(engine.Options{
		Settings: d.settings,
		Catalog:  clinical.NewCatalog([]clinical.CaseTemplate{tpl}),
		Logger:   d.logger,
		Metrics:  d.metrics,
		Rand:     rand.New(rand.NewSource(d.seed)),
	})
	e.Boot()
	e.Start(engine.Profile{Name: "drill"})
	return e
}

// modelStudent works the case up by the book and gives the right answer.
func (d *ShiftDrill) modelStudent(tpl clinical.CaseTemplate) TestResult {
	res := TestResult{ScenarioName: "model student", CaseID: tpl.ID, Expected: "correct, IMPROVED, points > 0"}
	e := d.newEngine(tpl)

	e.DoHistory()
	e.DoPhysical()
	keys := append(append([]clinical.ExamKey{}, tpl.Correct.RequiredExams...), tpl.Correct.HelpfulExams...)
	for _, k := range keys {
		if _, err := e.RequestExam(k); err != nil {
			res.Reason = "exam rejected: " + err.Error()
			return res
		}
	}
	for _, k := range tpl.Correct.RequiredTreatments {
		if _, err := e.ApplyTreatment(k); err != nil {
			res.Reason = "treatment rejected: " + err.Error()
			return res
		}
	}

	r := e.Diagnose(tpl.Correct.Diagnosis)
	if r == nil {
		res.Actual = "no report"
		res.Reason = "diagnosis was not accepted"
		return res
	}
	res.Points = r.Points
	res.Actual = fmt.Sprintf("correct=%v, %s, %+d", r.Correct, r.Outcome, r.Points)
	res.Passed = r.Correct && r.Outcome == rules.OutcomeImproved && r.Points > 0
	if !res.Passed {
		res.Reason = strings.Join(r.Errors, " ")
	}
	return res
}

// carelessStudent guesses immediately without any workup.
func (d *ShiftDrill) carelessStudent(tpl clinical.CaseTemplate, modelPoints int) TestResult {
	res := TestResult{ScenarioName: "careless student", CaseID: tpl.ID, Expected: "wrong, fewer points than model"}
	e := d.newEngine(tpl)

	r := e.Diagnose("no idea")
	if r == nil {
		res.Actual = "no report"
		res.Reason = "diagnosis was not accepted"
		return res
	}
	res.Points = r.Points
	res.Actual = fmt.Sprintf("correct=%v, %s, %+d", r.Correct, r.Outcome, r.Points)
	res.Passed = !r.Correct && r.Points < modelPoints
	if !res.Passed {
		res.Reason = fmt.Sprintf("careless run scored %d against model %d", r.Points, modelPoints)
	}
	return res
}

// neglect leaves the queue untouched until the case's timings run out.
func (d *ShiftDrill) neglect(tpl clinical.CaseTemplate) TestResult {
	res := TestResult{ScenarioName: "neglect", CaseID: tpl.ID, Expected: "at least one death"}
	e := d.newEngine(tpl)

	timings := tpl.Deterioration.Merge(d.settings.Deterioration.Timings())
	limit := int(timings.Total()) + 5
	for i := 0; i < limit; i++ {
		e.Advance(1)
		if e.Snapshot().Run.Deaths > 0 {
			res.Actual = fmt.Sprintf("death after %ds", i+1)
			res.Passed = true
			return res
		}
	}
	res.Actual = "no death"
	res.Reason = fmt.Sprintf("nobody died within %ds", limit)
	return res
}
