package rules

import (
	"math"
	"math/rand"

	"github.com/MRamiBalles/medsim/internal/domain/patient"
)

// Vitals derives the displayed vital signs from severity. Jitter comes from
// rng and is display-only; a nil rng yields the exact curve.
func Vitals(severity float64, rng *rand.Rand) patient.Vitals {
	s := clamp01(severity)
	jitter := func(n int) int {
		if rng == nil || n == 0 {
			return 0
		}
		return rng.Intn(2*n+1) - n
	}

	temp := 36.7 + 2.2*s
	if rng != nil {
		temp += rng.Float64()*0.4 - 0.2
	}

	v := patient.Vitals{
		HR:   int(math.Round(70+60*s)) + jitter(3),
		RR:   int(math.Round(14+14*s)) + jitter(2),
		SpO2: int(math.Round(98-18*s)) + jitter(1),
		SBP:  int(math.Round(125-40*s)) + jitter(3),
		Temp: math.Round(temp*10) / 10,
	}
	if v.SpO2 > 100 {
		v.SpO2 = 100
	}
	return v
}
