package rules

import (
	"math"
	"strings"
	"unicode"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
)

// DefaultExamDelaySec applies when no keyword matches.
const DefaultExamDelaySec = 12

type delayRule struct {
	keywords []string
	sec      float64
}

// Slowest first so "ct_chest" is not caught by a cheaper keyword.
var examDelayTable = []delayRule{
	{keywords: []string{"ct", "tc", "tomo", "mri", "rm", "resson"}, sec: 40},
	{keywords: []string{"ultra", "usg", "us", "eco", "echo", "doppler"}, sec: 25},
	{keywords: []string{"xray", "rx", "radio"}, sec: 18},
	{keywords: []string{"lab", "gaso", "abg", "blood", "hemo", "tropo", "cultur", "urin"}, sec: 15},
	{keywords: []string{"ecg", "ekg", "poc", "glic", "gluc", "dextro"}, sec: 10},
}

// BaseExamDelay looks the exam key up in the keyword table.
func BaseExamDelay(key clinical.ExamKey) float64 {
	tokens := strings.FieldsFunc(strings.ToLower(string(key)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range examDelayTable {
		for _, tok := range tokens {
			for _, kw := range rule.keywords {
				if tok == kw || (len(kw) >= 3 && strings.HasPrefix(tok, kw)) {
					return rule.sec
				}
			}
		}
	}
	return DefaultExamDelaySec
}

// ExamDelay is the time until an exam result is ready in the given mode.
func ExamDelay(key clinical.ExamKey, m ModeParams, floorSec float64) float64 {
	d := BaseExamDelay(key)
	if m.ExamDelayMult > 0 && m.ExamDelayMult != 1 {
		d = math.Max(floorSec, math.Round(d*m.ExamDelayMult))
	}
	return d
}

// TreatmentDelay is the time until a treatment effect fires.
func TreatmentDelay(eff clinical.TreatmentEffect) float64 {
	return math.Max(1, eff.DelaySec)
}
