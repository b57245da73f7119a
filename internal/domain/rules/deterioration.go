package rules

import (
	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
)

// epsilon absorbs float drift when severity is compared to a threshold.
const epsilon = 1e-9

// StageFor maps severity to its band. Monotone step function.
func StageFor(severity float64, p DeteriorationParams) patient.Stage {
	switch {
	case severity+epsilon >= p.CriticalThreshold:
		return patient.StageCritical
	case severity+epsilon >= p.UnstableThreshold:
		return patient.StageUnstable
	default:
		return patient.StageStable
	}
}

// BandRate is the severity gained per second inside a band, before the mode
// multiplier. Rates are chosen so that each band takes exactly its configured
// duration.
func BandRate(stage patient.Stage, t clinical.Deterioration, p DeteriorationParams) float64 {
	switch stage {
	case patient.StageStable:
		return perSecond(p.UnstableThreshold, t.StableToUnstableSec)
	case patient.StageUnstable:
		return perSecond(p.CriticalThreshold-p.UnstableThreshold, t.UnstableToCriticalSec)
	default:
		return perSecond(p.DeathThreshold-p.CriticalThreshold, t.CriticalToDeadSec)
	}
}

func perSecond(span, sec float64) float64 {
	if sec <= 0 {
		return span
	}
	return span / sec
}

// Deteriorate advances severity by dt seconds. A step that crosses a band
// boundary spends the remaining time at the next band's rate.
func Deteriorate(severity, dt float64, t clinical.Deterioration, p DeteriorationParams, m ModeParams) float64 {
	s := clamp01(severity)
	remaining := dt
	for remaining > epsilon && s < 1 {
		stage := StageFor(s, p)
		rate := BandRate(stage, t, p) * m.DeteriorationMult
		if stage == patient.StageCritical {
			rate += p.CriticalExtraRate * m.DeteriorationMult
		}
		if rate <= 0 {
			break
		}

		ceiling := 1.0
		switch stage {
		case patient.StageStable:
			ceiling = p.UnstableThreshold
		case patient.StageUnstable:
			ceiling = p.CriticalThreshold
		}

		need := (ceiling - s) / rate
		if need > remaining || ceiling >= 1 {
			s += rate * remaining
			break
		}
		s = ceiling
		remaining -= need
	}
	return clamp01(s)
}

// ApplyDelta applies a treatment severity change, clamped to [0,1].
func ApplyDelta(severity, delta float64) float64 {
	return clamp01(severity + delta)
}

// IsDead reports whether a patient at this severity and elapsed time dies.
func IsDead(severity, elapsedSec float64, p DeteriorationParams) bool {
	return severity+epsilon >= p.DeathThreshold && elapsedSec > p.MinDeathElapsedSec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
