package rules

import (
	"testing"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
)

func TestExamDelayKeywords(t *testing.T) {
	tests := []struct {
		key  clinical.ExamKey
		want float64
	}{
		{"ecg", 10},
		{"labs", 15},
		{"xray", 18},
		{"rx_torax", 18},
		{"ultrasound", 25},
		{"ct_head", 40},
		{"mri", 40},
		{"biopsy", DefaultExamDelaySec},
	}
	for _, tt := range tests {
		if got := BaseExamDelay(tt.key); got != tt.want {
			t.Errorf("BaseExamDelay(%s) = %v, want %v", tt.key, got, tt.want)
		}
	}
	if BaseExamDelay("ct") <= BaseExamDelay("ecg") {
		t.Errorf("Expected imaging slower than point-of-care")
	}
}

func TestExamDelayTrainingFloor(t *testing.T) {
	modes := DefaultModeTable()
	if got := ExamDelay("ecg", modes.Shift, modes.ExamDelayFloorSec); got != 10 {
		t.Errorf("shift ecg = %v, want 10", got)
	}
	if got := ExamDelay("ct", modes.Training, modes.ExamDelayFloorSec); got != 22 {
		t.Errorf("training ct = %v, want 22", got)
	}
	fast := ModeParams{ExamDelayMult: 0.05}
	if got := ExamDelay("ecg", fast, 2); got != 2 {
		t.Errorf("Expected floor of 2s, got %v", got)
	}
}

func TestTreatmentDelayMinimum(t *testing.T) {
	if got := TreatmentDelay(clinical.TreatmentEffect{}); got != 1 {
		t.Errorf("Expected 1s minimum, got %v", got)
	}
	if got := TreatmentDelay(clinical.TreatmentEffect{DelaySec: 5}); got != 5 {
		t.Errorf("Expected 5s, got %v", got)
	}
}

func TestGainXPLoopsLevels(t *testing.T) {
	p := DefaultProgressionParams()

	level, xp := GainXP(1, 250, true, p)
	if level != 2 || xp != 50 {
		t.Errorf("Expected level 2 with 50xp, got %d/%d", level, xp)
	}

	p.XPCorrect = 700
	level, xp = GainXP(1, 0, true, p)
	if level != 3 || xp != 100 {
		t.Errorf("Expected two level-ups, got %d/%d", level, xp)
	}

	level, xp = GainXP(4, 10, false, DefaultProgressionParams())
	if level != 4 || xp != 35 {
		t.Errorf("Expected 25xp for a wrong case, got %d/%d", level, xp)
	}
}

func TestCapacityAndArrival(t *testing.T) {
	q := DefaultQueueParams()
	capacity := map[int]int{1: 1, 2: 1, 3: 2, 5: 3, 7: 4, 20: 4}
	for level, want := range capacity {
		if got := Capacity(level, q); got != want {
			t.Errorf("Capacity(%d) = %d, want %d", level, got, want)
		}
	}
	interval := map[int]float64{1: 18, 2: 17, 10: 9, 13: 6, 30: 6}
	for level, want := range interval {
		if got := ArrivalInterval(level, q); got != want {
			t.Errorf("ArrivalInterval(%d) = %v, want %v", level, got, want)
		}
	}
	if StartCount(1, q) != 1 || StartCount(5, q) != 2 {
		t.Errorf("Expected start count max(1, min(2, capacity))")
	}
}

func TestSpawnDifficultyCap(t *testing.T) {
	q := DefaultQueueParams()
	if got := SpawnDifficultyCap(1, 5, q); got != 1 {
		t.Errorf("level 1 cap = %d, want 1", got)
	}
	if got := SpawnDifficultyCap(9, 0, q); got != 5 {
		t.Errorf("level 9 cap = %d, want 5", got)
	}
	if got := SpawnDifficultyCap(4, 2, q); got != 2 {
		t.Errorf("user cap = %d, want 2", got)
	}
}

func TestRankTitle(t *testing.T) {
	if RankTitle(0) != "Interno" || RankTitle(1) != "Interno" {
		t.Errorf("Expected Interno at the bottom")
	}
	if RankTitle(2) != "Residente R1" {
		t.Errorf("Expected Residente R1 at level 2")
	}
	if RankTitle(99) != "Preceptor" {
		t.Errorf("Expected Preceptor at the top")
	}
}
