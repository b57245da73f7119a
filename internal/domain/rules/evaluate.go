package rules

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
)

// Outcome is the clinical result of a finished encounter.
type Outcome string

const (
	OutcomeStable   Outcome = "STABLE"
	OutcomeImproved Outcome = "IMPROVED"
	OutcomeDeath    Outcome = "DEATH"
)

// Report is the immutable result of evaluating one encounter.
type Report struct {
	PatientID         string                  `json:"patient_id"`
	CaseID            string                  `json:"case_id"`
	CaseTitle         string                  `json:"case_title"`
	GivenDiagnosis    string                  `json:"given_diagnosis"`
	CorrectDiagnosis  string                  `json:"correct_diagnosis"`
	Correct           bool                    `json:"correct"`
	Points            int                     `json:"points"`
	TimeBonus         int                     `json:"time_bonus"`
	ElapsedSec        float64                 `json:"elapsed_sec"`
	MissingExams      []clinical.ExamKey      `json:"missing_exams"`
	MissingTreatments []clinical.TreatmentKey `json:"missing_treatments"`
	HarmfulExams      []clinical.ExamKey      `json:"harmful_exams"`
	HarmfulTreatments []clinical.TreatmentKey `json:"harmful_treatments"`
	HelpfulExamsDone  []clinical.ExamKey      `json:"helpful_exams_done"`
	CriticalErrors    []clinical.FlagKey      `json:"critical_errors"`
	Outcome           Outcome                 `json:"outcome"`
	Positives         []string                `json:"positives"`
	Errors            []string                `json:"errors"`
	Education         clinical.Education      `json:"education"`
}

// NormalizeDiagnosis folds case and collapses whitespace for comparison.
// No fuzzy matching: a typo is a wrong diagnosis.
func NormalizeDiagnosis(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// DiagnosisMatches compares a submitted diagnosis with the canonical one.
func DiagnosisMatches(given, canonical string) bool {
	g := NormalizeDiagnosis(given)
	return g != "" && g == NormalizeDiagnosis(canonical)
}

// TimeBonus decays linearly from the full bonus at zero elapsed to nothing at
// the end of the window.
func TimeBonus(elapsedSec float64, p ScoringParams) int {
	if elapsedSec <= 0 {
		return int(p.TimeBonusMax)
	}
	if p.TimeBonusWindowSec <= 0 || elapsedSec >= p.TimeBonusWindowSec {
		return 0
	}
	return int(math.Round(p.TimeBonusMax * (1 - elapsedSec/p.TimeBonusWindowSec)))
}

// Evaluate grades a finished encounter. Deterministic: the same patient and
// template always produce the same report.
func Evaluate(p *patient.Patient, tpl *clinical.CaseTemplate, sp ScoringParams, mp ModeParams) Report {
	given := ""
	if p.FinalDiagnosis != nil {
		given = *p.FinalDiagnosis
	}
	pm := mp.PenaltyMult

	r := Report{
		PatientID:        p.ID,
		CaseID:           tpl.ID,
		CaseTitle:        tpl.Title,
		GivenDiagnosis:   given,
		CorrectDiagnosis: tpl.Correct.Diagnosis,
		Correct:          DiagnosisMatches(given, tpl.Correct.Diagnosis),
		ElapsedSec:       p.ElapsedSec,
		Education:        tpl.Education,
	}

	var requiredExamsDone, requiredTreatmentsDone int
	for _, k := range tpl.Correct.RequiredExams {
		if p.HasOrdered(k) {
			requiredExamsDone++
		} else {
			r.MissingExams = append(r.MissingExams, k)
		}
	}
	for _, k := range tpl.Correct.RequiredTreatments {
		if p.HasGiven(k) {
			requiredTreatmentsDone++
		} else {
			r.MissingTreatments = append(r.MissingTreatments, k)
		}
	}
	for _, k := range tpl.Correct.HelpfulExams {
		if p.HasOrdered(k) {
			r.HelpfulExamsDone = append(r.HelpfulExamsDone, k)
		}
	}
	for _, k := range tpl.Correct.HarmfulExams {
		if p.HasOrdered(k) {
			r.HarmfulExams = append(r.HarmfulExams, k)
		}
	}
	for _, k := range tpl.Correct.HarmfulTreatments {
		if p.HasGiven(k) {
			r.HarmfulTreatments = append(r.HarmfulTreatments, k)
		}
	}

	for _, k := range p.CriticalFlags {
		if _, ok := tpl.CriticalFlag(k); ok {
			r.CriticalErrors = append(r.CriticalErrors, k)
		}
	}

	points := 0.0
	if r.Correct {
		points += sp.CorrectPoints
	} else {
		points -= sp.WrongPenalty * pm
	}
	points += float64(requiredExamsDone) * sp.RequiredExamPoints
	points += float64(requiredTreatmentsDone) * sp.RequiredTreatmentPoints
	points -= float64(len(r.HarmfulExams)) * sp.HarmfulExamPenalty * pm
	points -= float64(len(r.HarmfulTreatments)) * sp.HarmfulTreatmentPenalty * pm
	points -= float64(len(r.CriticalErrors)) * sp.CriticalPenalty * pm

	r.TimeBonus = TimeBonus(p.ElapsedSec, sp)
	points += float64(r.TimeBonus)

	switch {
	case !r.Correct && (len(r.HarmfulTreatments) > 0 || len(r.MissingTreatments) > 1) && p.Severity > sp.DeathSeverity:
		r.Outcome = OutcomeDeath
		points -= sp.DeathPenalty * pm
	case r.Correct && len(r.MissingTreatments) == 0:
		r.Outcome = OutcomeImproved
	default:
		r.Outcome = OutcomeStable
	}

	r.Points = int(math.Round(points))
	r.Positives, r.Errors = feedbackLines(p, tpl, &r)
	return r
}

func feedbackLines(p *patient.Patient, tpl *clinical.CaseTemplate, r *Report) (positives, errs []string) {
	if r.Correct {
		positives = append(positives, "Correct diagnosis.")
	} else {
		errs = append(errs, fmt.Sprintf("Wrong diagnosis. Expected: %s.", tpl.Correct.Diagnosis))
	}

	if p.HistoryTaken {
		positives = append(positives, "History taken.")
	} else {
		errs = append(errs, "History not taken.")
	}
	if p.PhysicalDone {
		positives = append(positives, "Physical exam performed.")
	} else {
		errs = append(errs, "Physical exam not performed.")
	}

	if len(r.MissingExams) > 0 {
		errs = append(errs, "Essential exams not ordered: "+joinKeys(r.MissingExams))
	} else if len(tpl.Correct.RequiredExams) > 0 {
		positives = append(positives, "Essential exams ordered.")
	}
	if len(r.HelpfulExamsDone) > 0 {
		positives = append(positives, "Helpful exams ordered: "+joinKeys(r.HelpfulExamsDone))
	}
	if len(r.MissingTreatments) > 0 {
		errs = append(errs, "Essential treatments missing: "+joinKeys(r.MissingTreatments))
	} else if len(tpl.Correct.RequiredTreatments) > 0 {
		positives = append(positives, "Essential treatments given.")
	}
	if len(r.HarmfulExams) > 0 {
		errs = append(errs, "Harmful exams ordered: "+joinKeys(r.HarmfulExams))
	}
	if len(r.HarmfulTreatments) > 0 {
		errs = append(errs, "Harmful treatments given: "+joinKeys(r.HarmfulTreatments))
	}
	for _, k := range r.CriticalErrors {
		msg, _ := tpl.CriticalFlag(k)
		errs = append(errs, "Critical error: "+msg+".")
	}
	if r.Outcome == OutcomeDeath {
		errs = append(errs, "The patient died.")
	}
	return positives, errs
}

func joinKeys[K ~string](keys []K) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
