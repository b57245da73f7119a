// Package rules contains the pure calculation logic for the simulation.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import "github.com/MRamiBalles/medsim/internal/domain/clinical"

// Mode selects the pacing and penalty profile of a session.
type Mode string

const (
	ModeShift    Mode = "shift"
	ModeTraining Mode = "training"
)

// ParseMode maps free text to a mode, defaulting to shift.
func ParseMode(s string) Mode {
	if Mode(s) == ModeTraining {
		return ModeTraining
	}
	return ModeShift
}

// DeteriorationParams drives the severity model.
type DeteriorationParams struct {
	UnstableThreshold      float64 `env:"UNSTABLE_THRESHOLD"`
	CriticalThreshold      float64 `env:"CRITICAL_THRESHOLD"`
	DeathThreshold         float64 `env:"DEATH_THRESHOLD"`
	MinDeathElapsedSec     float64 `env:"MIN_DEATH_ELAPSED_SEC"`
	CriticalExtraRate      float64 `env:"CRITICAL_EXTRA_RATE"` // added per second while critical
	DefaultInitialSeverity float64 `env:"DEFAULT_INITIAL_SEVERITY"`
	StableToUnstableSec    float64 `env:"STABLE_TO_UNSTABLE_SEC"`
	UnstableToCriticalSec  float64 `env:"UNSTABLE_TO_CRITICAL_SEC"`
	CriticalToDeadSec      float64 `env:"CRITICAL_TO_DEAD_SEC"`
}

// DefaultDeteriorationParams returns the stock severity model.
func DefaultDeteriorationParams() DeteriorationParams {
	return DeteriorationParams{
		UnstableThreshold:      0.65,
		CriticalThreshold:      0.90,
		DeathThreshold:         0.98,
		MinDeathElapsedSec:     30,
		CriticalExtraRate:      0,
		DefaultInitialSeverity: 0.25,
		StableToUnstableSec:    35,
		UnstableToCriticalSec:  25,
		CriticalToDeadSec:      20,
	}
}

// Timings returns the global stage durations templates fall back to.
func (p DeteriorationParams) Timings() clinical.Deterioration {
	return clinical.Deterioration{
		StableToUnstableSec:   p.StableToUnstableSec,
		UnstableToCriticalSec: p.UnstableToCriticalSec,
		CriticalToDeadSec:     p.CriticalToDeadSec,
	}
}

// ScoringParams holds the evaluator's point table.
type ScoringParams struct {
	CorrectPoints           float64 `env:"CORRECT_POINTS"`
	WrongPenalty            float64 `env:"WRONG_PENALTY"`
	RequiredExamPoints      float64 `env:"REQUIRED_EXAM_POINTS"`
	RequiredTreatmentPoints float64 `env:"REQUIRED_TREATMENT_POINTS"`
	HarmfulExamPenalty      float64 `env:"HARMFUL_EXAM_PENALTY"`
	HarmfulTreatmentPenalty float64 `env:"HARMFUL_TREATMENT_PENALTY"`
	CriticalPenalty         float64 `env:"CRITICAL_PENALTY"` // per critical flag
	TimeBonusMax            float64 `env:"TIME_BONUS_MAX"`
	TimeBonusWindowSec      float64 `env:"TIME_BONUS_WINDOW_SEC"`
	DeathPenalty            float64 `env:"DEATH_PENALTY"`
	DeathSeverity           float64 `env:"DEATH_SEVERITY"` // severity above which a botched case dies
}

// DefaultScoringParams returns the stock point table.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		CorrectPoints:           120,
		WrongPenalty:            90,
		RequiredExamPoints:      12,
		RequiredTreatmentPoints: 18,
		HarmfulExamPenalty:      10,
		HarmfulTreatmentPenalty: 18,
		CriticalPenalty:         80,
		TimeBonusMax:            40,
		TimeBonusWindowSec:      45,
		DeathPenalty:            120,
		DeathSeverity:           0.85,
	}
}

// ModeParams are the multipliers one mode applies.
type ModeParams struct {
	DeteriorationMult float64 `env:"DETERIORATION_MULT"`
	PenaltyMult       float64 `env:"PENALTY_MULT"`
	ExamDelayMult     float64 `env:"EXAM_DELAY_MULT"`
}

// ModeTable holds the multipliers for both modes.
type ModeTable struct {
	Shift             ModeParams `envPrefix:"SHIFT_"`
	Training          ModeParams `envPrefix:"TRAINING_"`
	ExamDelayFloorSec float64    `env:"EXAM_DELAY_FLOOR_SEC"`
}

// DefaultModeTable returns the stock multipliers.
func DefaultModeTable() ModeTable {
	return ModeTable{
		Shift:             ModeParams{DeteriorationMult: 1.0, PenaltyMult: 1.0, ExamDelayMult: 1.0},
		Training:          ModeParams{DeteriorationMult: 0.35, PenaltyMult: 0.35, ExamDelayMult: 0.55},
		ExamDelayFloorSec: 2,
	}
}

// For returns the multipliers of mode m.
func (t ModeTable) For(m Mode) ModeParams {
	if m == ModeTraining {
		return t.Training
	}
	return t.Shift
}
