package clinical

import (
	"fmt"
	"strings"
)

// Problem is one validation failure found in a case file.
type Problem struct {
	CaseID  string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.CaseID, p.Message)
}

// Validate checks one template against the authoring rules. It does not
// normalize the template first, so missing fields are reported.
func Validate(c CaseTemplate) []string {
	var errs []string

	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, "id is required")
	}
	if c.Difficulty < 1 || c.Difficulty > 5 {
		errs = append(errs, fmt.Sprintf("difficulty must be 1..5, got %d", c.Difficulty))
	}
	if c.Triage != 0 && (c.Triage < 1 || c.Triage > 3) {
		errs = append(errs, fmt.Sprintf("triage must be 1..3, got %d", c.Triage))
	}
	if c.Patient.Age <= 0 || c.Patient.Age >= 120 {
		errs = append(errs, fmt.Sprintf("patient.age out of range: %d", c.Patient.Age))
	}
	switch c.Patient.Sex {
	case "M", "F", "O":
	default:
		errs = append(errs, "patient.sex must be M, F or O")
	}
	if strings.TrimSpace(c.Correct.Diagnosis) == "" {
		errs = append(errs, "correct.diagnosis is required")
	}
	if strings.TrimSpace(c.Education.Summary) == "" {
		errs = append(errs, "education.summary is required")
	}
	if c.InitialSeverity != nil && (*c.InitialSeverity < 0 || *c.InitialSeverity > 1) {
		errs = append(errs, "initialSeverity must be within [0,1]")
	}

	for _, k := range c.Correct.RequiredExams {
		if _, ok := c.Exams[k]; !ok {
			errs = append(errs, fmt.Sprintf("required exam %q has no result text", k))
		}
	}
	for _, k := range c.Correct.RequiredTreatments {
		if _, ok := c.Treatments[k]; !ok {
			errs = append(errs, fmt.Sprintf("required treatment %q is not offered", k))
		}
	}
	for k, eff := range c.Treatments {
		if eff.DelaySec < 0 {
			errs = append(errs, fmt.Sprintf("treatment %q has negative delay", k))
		}
	}
	for k, msg := range c.CriticalFlags {
		if strings.TrimSpace(string(k)) == "" {
			errs = append(errs, "critical flag with empty key")
		} else if strings.TrimSpace(msg) == "" {
			errs = append(errs, fmt.Sprintf("critical flag %q has no feedback line", k))
		}
	}

	return errs
}

// ValidateAll validates every template and reports duplicate ids.
func ValidateAll(templates []CaseTemplate) []Problem {
	var out []Problem
	seen := make(map[string]bool, len(templates))
	for i, c := range templates {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = fmt.Sprintf("<case #%d>", i)
		} else if seen[id] {
			out = append(out, Problem{CaseID: id, Message: "duplicate id"})
		}
		seen[id] = true
		for _, msg := range Validate(c) {
			out = append(out, Problem{CaseID: id, Message: msg})
		}
	}
	return out
}
