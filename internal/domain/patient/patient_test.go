package patient

import (
	"testing"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
)

func TestTakeReadyKeepsInsertionOrder(t *testing.T) {
	p := &Patient{ElapsedSec: 10}
	p.Schedule(ScheduledEffect{Kind: EffectExamResult, Key: "ct", ReadyAtSec: 40})
	p.Schedule(ScheduledEffect{Kind: EffectTreatmentEffect, Key: "aspirin", ReadyAtSec: 8})
	p.Schedule(ScheduledEffect{Kind: EffectExamResult, Key: "ecg", ReadyAtSec: 10})

	ready := p.TakeReady()
	if len(ready) != 2 {
		t.Fatalf("Expected 2 ready effects, got %d", len(ready))
	}
	if ready[0].Key != "aspirin" || ready[1].Key != "ecg" {
		t.Errorf("Expected insertion order aspirin, ecg; got %s, %s", ready[0].Key, ready[1].Key)
	}
	if ready[0].Seq >= ready[1].Seq {
		t.Errorf("Expected increasing sequence numbers, got %d then %d", ready[0].Seq, ready[1].Seq)
	}
	if len(p.Pending) != 1 || p.Pending[0].Key != "ct" {
		t.Errorf("Expected only ct pending, got %+v", p.Pending)
	}
	if again := p.TakeReady(); len(again) != 0 {
		t.Errorf("Effects must fire once, got %+v", again)
	}
}

func TestCloneSharesNoMemory(t *testing.T) {
	dx := "Anafilaxia"
	p := &Patient{
		ID:           "p_1",
		ExamsOrdered: []clinical.ExamKey{"ecg"},
		ExamResults:  map[clinical.ExamKey]*ExamResult{"ecg": {ReadyAtSec: 20}},
		FinalDiagnosis: &dx,
	}
	c := p.Clone()

	c.ExamsOrdered[0] = "xray"
	c.ExamResults["ecg"].Ready = true
	*c.FinalDiagnosis = "other"

	if p.ExamsOrdered[0] != "ecg" {
		t.Errorf("Clone leaked exam slice")
	}
	if p.ExamResults["ecg"].Ready {
		t.Errorf("Clone leaked exam result pointer")
	}
	if *p.FinalDiagnosis != "Anafilaxia" {
		t.Errorf("Clone leaked diagnosis pointer")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusWaiting, StatusInCare} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusDischarged, StatusDead} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
