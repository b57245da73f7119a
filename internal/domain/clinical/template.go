// Package clinical defines the case templates that patients are spawned from.
// This package is PURE and must NOT import any infrastructure packages.
package clinical

import (
	"sort"
	"strings"
)

// ExamKey identifies an exam a case can answer (e.g. "ecg", "xray").
type ExamKey string

// TreatmentKey identifies a treatment a case reacts to (e.g. "aspirin").
type TreatmentKey string

// FlagKey names a critical error recorded against an encounter
// (e.g. "send_home").
type FlagKey string

const (
	FlagSendHome      FlagKey = "send_home"
	FlagNoAntibiotics FlagKey = "no_antibiotics"
	FlagDelayEpi      FlagKey = "delay_epi"
)

// StandardCriticalFlags returns the flags every case accepts, each with the
// error line it adds to the feedback.
func StandardCriticalFlags() map[FlagKey]string {
	return map[FlagKey]string{
		FlagSendHome:      "discharged a potentially serious case",
		FlagNoAntibiotics: "pneumonia left without antibiotics",
		FlagDelayEpi:      "epinephrine was not given promptly",
	}
}

// Demographics is a hint for how the spawned patient is presented.
type Demographics struct {
	Name string `json:"name"`
	Age  int    `json:"age" jsonschema:"minimum=1,maximum=119"`
	Sex  string `json:"sex" jsonschema:"enum=M,enum=F,enum=O"`
}

// TreatmentEffect is what a treatment does to the patient once it kicks in.
type TreatmentEffect struct {
	Text          string  `json:"text"`
	SeverityDelta float64 `json:"severityDelta,omitempty" jsonschema:"description=Added to severity when the effect fires; negative improves the patient"`
	DelaySec      float64 `json:"delaySec,omitempty" jsonschema:"minimum=0"`
}

// Deterioration overrides the global stage durations for one case.
// Zero fields fall back to the global defaults.
type Deterioration struct {
	StableToUnstableSec   float64 `json:"stableToUnstableSec,omitempty" jsonschema:"minimum=0"`
	UnstableToCriticalSec float64 `json:"unstableToCriticalSec,omitempty" jsonschema:"minimum=0"`
	CriticalToDeadSec     float64 `json:"criticalToDeadSec,omitempty" jsonschema:"minimum=0"`
}

// Merge fills unset fields from base.
func (d *Deterioration) Merge(base Deterioration) Deterioration {
	out := base
	if d == nil {
		return out
	}
	if d.StableToUnstableSec > 0 {
		out.StableToUnstableSec = d.StableToUnstableSec
	}
	if d.UnstableToCriticalSec > 0 {
		out.UnstableToCriticalSec = d.UnstableToCriticalSec
	}
	if d.CriticalToDeadSec > 0 {
		out.CriticalToDeadSec = d.CriticalToDeadSec
	}
	return out
}

// Total is the time an untreated patient needs to walk from zero severity to death.
func (d Deterioration) Total() float64 {
	return d.StableToUnstableSec + d.UnstableToCriticalSec + d.CriticalToDeadSec
}

// AnswerKey is what the evaluator grades the encounter against.
type AnswerKey struct {
	Diagnosis          string         `json:"diagnosis" jsonschema:"required,minLength=1"`
	RequiredExams      []ExamKey      `json:"requiredExams,omitempty"`
	HelpfulExams       []ExamKey      `json:"helpfulExams,omitempty"`
	HarmfulExams       []ExamKey      `json:"harmfulExams,omitempty"`
	RequiredTreatments []TreatmentKey `json:"requiredTreatments,omitempty"`
	HarmfulTreatments  []TreatmentKey `json:"harmfulTreatments,omitempty"`
}

// Education is shown with the case feedback.
type Education struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints,omitempty"`
}

// CaseTemplate is an author-provided clinical scenario. Treated as immutable
// once it is inside a Catalog.
type CaseTemplate struct {
	ID               string                           `json:"id" jsonschema:"required,minLength=1"`
	Title            string                           `json:"title"`
	Specialty        string                           `json:"specialty"`
	Difficulty       int                              `json:"difficulty" jsonschema:"minimum=1,maximum=5"`
	Triage           int                              `json:"triage,omitempty" jsonschema:"minimum=1,maximum=3,description=1=red 2=orange 3=yellow"`
	Patient          Demographics                     `json:"patient"`
	ChiefComplaint   string                           `json:"chiefComplaint"`
	History          []string                         `json:"history,omitempty"`
	PhysicalFindings []string                         `json:"physicalFindings,omitempty"`
	Exams            map[ExamKey]string               `json:"exams,omitempty"`
	Treatments       map[TreatmentKey]TreatmentEffect `json:"treatments,omitempty"`
	Correct          AnswerKey                        `json:"correct"`
	Deterioration    *Deterioration                   `json:"deterioration,omitempty"`
	InitialSeverity  *float64                         `json:"initialSeverity,omitempty" jsonschema:"minimum=0,maximum=1"`
	CriticalFlags    map[FlagKey]string               `json:"criticalFlags,omitempty" jsonschema:"description=Case-specific critical errors on top of the standard ones; the value is the feedback line"`
	Education        Education                        `json:"education"`
}

// Normalize replaces missing optional fields with safe empty values.
func (c *CaseTemplate) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	if c.Difficulty <= 0 {
		c.Difficulty = 1
	}
	if c.History == nil {
		c.History = []string{}
	}
	if c.PhysicalFindings == nil {
		c.PhysicalFindings = []string{}
	}
	if c.Exams == nil {
		c.Exams = map[ExamKey]string{}
	}
	if c.Treatments == nil {
		c.Treatments = map[TreatmentKey]TreatmentEffect{}
	}
	if c.Correct.RequiredExams == nil {
		c.Correct.RequiredExams = []ExamKey{}
	}
	if c.Correct.HelpfulExams == nil {
		c.Correct.HelpfulExams = []ExamKey{}
	}
	if c.Correct.HarmfulExams == nil {
		c.Correct.HarmfulExams = []ExamKey{}
	}
	if c.Correct.RequiredTreatments == nil {
		c.Correct.RequiredTreatments = []TreatmentKey{}
	}
	if c.Correct.HarmfulTreatments == nil {
		c.Correct.HarmfulTreatments = []TreatmentKey{}
	}
	if c.CriticalFlags == nil {
		c.CriticalFlags = map[FlagKey]string{}
	}
	if c.Education.KeyPoints == nil {
		c.Education.KeyPoints = []string{}
	}
}

// HasExam reports whether the case can answer the exam.
func (c *CaseTemplate) HasExam(key ExamKey) bool {
	_, ok := c.Exams[key]
	return ok
}

// HasTreatment reports whether the case knows the treatment.
func (c *CaseTemplate) HasTreatment(key TreatmentKey) bool {
	_, ok := c.Treatments[key]
	return ok
}

// CriticalFlag returns the feedback line of a flag the case accepts. Case
// entries win over the standard set.
func (c *CaseTemplate) CriticalFlag(key FlagKey) (string, bool) {
	if msg, ok := c.CriticalFlags[key]; ok {
		return msg, true
	}
	msg, ok := StandardCriticalFlags()[key]
	return msg, ok
}

// FlagKeys returns every flag the case accepts in a stable order.
func (c *CaseTemplate) FlagKeys() []FlagKey {
	set := StandardCriticalFlags()
	for k, v := range c.CriticalFlags {
		set[k] = v
	}
	keys := make([]FlagKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ExamKeys returns the exam menu in a stable order.
func (c *CaseTemplate) ExamKeys() []ExamKey {
	keys := make([]ExamKey, 0, len(c.Exams))
	for k := range c.Exams {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// TreatmentKeys returns the treatment menu in a stable order.
func (c *CaseTemplate) TreatmentKeys() []TreatmentKey {
	keys := make([]TreatmentKey, 0, len(c.Treatments))
	for k := range c.Treatments {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
