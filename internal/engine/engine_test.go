package engine

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
)

func TestStartSpawnsAndSaves(t *testing.T) {
	e, saver := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "  Ana  "})

	s := e.Snapshot()
	if s.Status != StatusRunning {
		t.Fatalf("Expected RUNNING, got %s", s.Status)
	}
	if len(s.Patients) != 1 || s.SelectedID != "p_1" {
		t.Fatalf("Expected one selected patient, got %d (selected %q)", len(s.Patients), s.SelectedID)
	}
	if s.Profile.Name != "Ana" {
		t.Errorf("Expected trimmed profile name, got %q", s.Profile.Name)
	}
	if saver.saves != 1 {
		t.Errorf("Expected one save on start, got %d", saver.saves)
	}
	if s.Rank != "Interno" {
		t.Errorf("Expected level 1 rank, got %q", s.Rank)
	}
}

func TestUntouchedPatientDiesExactlyOnce(t *testing.T) {
	e, saver := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.mu.Lock()
	e.run.ScoreTotal = 200
	e.mu.Unlock()

	e.Advance(69)
	if s := e.Snapshot(); len(s.Patients) != 1 || s.Patients[0].ID != "p_1" {
		t.Fatalf("Expected p_1 alive after 69s, got %+v", s.Patients)
	}

	e.Advance(1)
	s := e.Snapshot()
	if s.Run.Deaths != 1 {
		t.Fatalf("Expected one death at 70s, got %d", s.Run.Deaths)
	}
	if s.Run.ScoreTotal != 80 {
		t.Errorf("Expected death penalty of 120, score now %d", s.Run.ScoreTotal)
	}
	for _, p := range s.Patients {
		if p.ID == "p_1" {
			t.Fatalf("Dead patient still in queue")
		}
	}
	if s.SelectedID != "p_2" {
		t.Errorf("Expected replacement patient to be selected, got %q", s.SelectedID)
	}
	if saver.saves != 2 {
		t.Errorf("Expected a save after the death, got %d saves", saver.saves)
	}

	e.Advance(30)
	died := 0
	for _, ev := range e.journal.GetByActor("p_1") {
		if ev.Type == events.EventTypePatientDied {
			died++
		}
	}
	if died != 1 {
		t.Errorf("Expected exactly one death entry for p_1, got %d", died)
	}
}

func TestDuplicateExamSchedulesOnce(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	if out, err := e.RequestExam("ecg"); err != nil || out != OutcomeApplied {
		t.Fatalf("first request: %s, %v", out, err)
	}
	if out, err := e.RequestExam("ecg"); err != nil || out != OutcomeDuplicate {
		t.Fatalf("second request: %s, %v", out, err)
	}

	p := e.Snapshot().Selected()
	if len(p.Pending) != 1 || len(p.ExamsOrdered) != 1 {
		t.Errorf("Expected one pending effect and one order, got %d and %d", len(p.Pending), len(p.ExamsOrdered))
	}
	if got := len(e.journal.GetByType(events.EventTypeExamRequested)); got != 1 {
		t.Errorf("Expected one journal entry, got %d", got)
	}
}

func TestExamResultArrivesAfterDelay(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.RequestExam("chest_ct") // ordering costs 15s, then imaging takes 40s

	if r := e.Snapshot().Selected().ExamResults["chest_ct"]; r.ReadyAtSec != 55 {
		t.Fatalf("Expected result due at elapsed 55, got %v", r.ReadyAtSec)
	}
	e.Advance(39)
	if r := e.Snapshot().Selected().ExamResults["chest_ct"]; r.Ready {
		t.Fatalf("Result ready too early")
	}
	e.Advance(1)
	r := e.Snapshot().Selected().ExamResults["chest_ct"]
	if !r.Ready || r.Text != "No dissection" {
		t.Errorf("Expected ready CT result, got %+v", r)
	}
	if got := len(e.journal.GetByType(events.EventTypeExamResultReady)); got != 1 {
		t.Errorf("Expected one result entry, got %d", got)
	}
}

func TestUnknownExamIsCodedError(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	_, err := e.RequestExam("mri_brain")
	if domainerrors.CodeOf(err) != domainerrors.CodeUnknownExam {
		t.Fatalf("Expected UNKNOWN_EXAM, got %v", err)
	}
	_, err = e.ApplyTreatment("thrombolysis")
	if domainerrors.CodeOf(err) != domainerrors.CodeUnknownTreatment {
		t.Fatalf("Expected UNKNOWN_TREATMENT, got %v", err)
	}
	if p := e.Snapshot().Selected(); len(p.ExamsOrdered) != 0 || len(p.TreatmentsGiven) != 0 {
		t.Errorf("Rejected actions must not change the patient")
	}
}

func TestNoSpawnAtCapacityResetsCountdown(t *testing.T) {
	s := DefaultSettings()
	s.Queue.ArrivalBaseSec = 5
	s.Queue.ArrivalMinSec = 5
	e, _ := newTestEngine(t, s)
	e.Start(Profile{Name: "Ana"})

	e.Advance(5)
	snap := e.Snapshot()
	if len(snap.Patients) != 1 {
		t.Errorf("Expected queue to stay at capacity 1, got %d", len(snap.Patients))
	}
	if snap.NextArrivalSec != 5 {
		t.Errorf("Expected countdown reset to 5, got %v", snap.NextArrivalSec)
	}
}

func TestArrivalFillsFreeSlot(t *testing.T) {
	s := DefaultSettings()
	s.Queue.ArrivalBaseSec = 5
	s.Queue.ArrivalMinSec = 5
	s.Queue.CapacityBase = 2
	s.Queue.StartPatients = 1
	e, _ := newTestEngine(t, s)
	e.Start(Profile{Name: "Ana"})

	e.Advance(4)
	if n := len(e.Snapshot().Patients); n != 1 {
		t.Fatalf("Expected 1 patient before the countdown ends, got %d", n)
	}
	e.Advance(1)
	if n := len(e.Snapshot().Patients); n != 2 {
		t.Errorf("Expected an arrival into the free slot, got %d patients", n)
	}
}

func TestCorrectDiagnosisPausesForFeedbackAtLowLevels(t *testing.T) {
	e, saver := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.RequestExam("ecg")
	e.ApplyTreatment("aspirin")

	r := e.Diagnose("  acute   MYOCARDIAL infarction ")
	if r == nil || !r.Correct {
		t.Fatalf("Expected a correct report, got %+v", r)
	}

	s := e.Snapshot()
	if s.Status != StatusFeedback || s.Feedback == nil {
		t.Fatalf("Expected FEEDBACK with a report, got %s", s.Status)
	}
	if s.Run.CasesCompleted != 1 || s.Run.CorrectCount != 1 || s.Run.XP != 100 {
		t.Errorf("Unexpected run aggregate %+v", s.Run)
	}
	if s.Run.ScoreTotal != r.Points {
		t.Errorf("Expected score %d, got %d", r.Points, s.Run.ScoreTotal)
	}
	if saver.saves != 2 {
		t.Errorf("Expected a save after the diagnosis, got %d", saver.saves)
	}

	if n := e.Advance(5); n != 0 {
		t.Errorf("Expected no ticks during feedback, got %d", n)
	}

	if len(s.Patients) != 1 || s.SelectedID != "p_2" {
		t.Errorf("Expected the emptied queue to refill at once, got %d patients (selected %q)", len(s.Patients), s.SelectedID)
	}

	e.ContinueAfterFeedback()
	if s := e.Snapshot(); s.Status != StatusRunning || s.SelectedID != "p_2" {
		t.Fatalf("Expected RUNNING with p_2 selected after feedback, got %s %q", s.Status, s.SelectedID)
	}
}

func TestLevelUpLoopsAndSkipsFeedbackPause(t *testing.T) {
	s := quietSettings()
	s.Progression.XPCorrect = 700
	e, _ := newTestEngine(t, s)
	e.Start(Profile{Name: "Ana"})

	e.Diagnose("Acute myocardial infarction")

	snap := e.Snapshot()
	if snap.Run.Level != 3 || snap.Run.XP != 100 {
		t.Fatalf("Expected level 3 with 100 xp, got level %d xp %d", snap.Run.Level, snap.Run.XP)
	}
	if snap.Status != StatusRunning || snap.Feedback != nil {
		t.Errorf("Expected no feedback pause above level 2, got %s", snap.Status)
	}
	if len(snap.RecentReports) != 1 {
		t.Errorf("Expected report in recent list, got %d", len(snap.RecentReports))
	}
	if got := len(e.journal.GetByType(events.EventTypeLevelUp)); got != 2 {
		t.Errorf("Expected two level-up entries, got %d", got)
	}
}

func TestWrongDiagnosisCountsAsWrong(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	r := e.Diagnose("Pericarditis")
	if r == nil || r.Correct {
		t.Fatalf("Expected a wrong report, got %+v", r)
	}
	s := e.Snapshot()
	if s.Run.WrongCount != 1 || s.Run.XP != 25 {
		t.Errorf("Unexpected run aggregate %+v", s.Run)
	}
	if s.Run.ScoreTotal < 0 {
		t.Errorf("Run total must not go negative, got %d", s.Run.ScoreTotal)
	}
	if e.Diagnose("again") != nil {
		t.Errorf("Expected no diagnosis while feedback is shown")
	}
	if out, _ := e.DoHistory(); out != OutcomeIgnored {
		t.Errorf("Expected bedside commands ignored during feedback, got %s", out)
	}

	e.ContinueAfterFeedback()
	if out, _ := e.DoHistory(); out != OutcomeApplied {
		t.Errorf("Expected the replacement patient to accept commands, got %s", out)
	}
}

func TestSnapshotSharesNoMemory(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.DoHistory()
	e.RequestExam("ecg")

	snap := e.Snapshot()
	p := snap.Selected()
	p.Revealed[0] = "tampered"
	p.ExamResults["ecg"].Ready = true
	p.Pending[0].ReadyAtSec = -1
	p.Severity = 1
	snap.Journal[0].Message = "tampered"

	fresh := e.Snapshot().Selected()
	if fresh.Revealed[0] == "tampered" || fresh.ExamResults["ecg"].Ready || fresh.Pending[0].ReadyAtSec == -1 {
		t.Errorf("Snapshot leaked patient memory")
	}
	if fresh.Severity == 1 {
		t.Errorf("Snapshot leaked severity")
	}
	if e.Snapshot().Journal[0].Message == "tampered" {
		t.Errorf("Snapshot leaked journal memory")
	}
}

func TestPauseGate(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.Pause()

	if n := e.Advance(3); n != 0 {
		t.Errorf("Expected no ticks while paused, got %d", n)
	}
	if out, _ := e.DoHistory(); out != OutcomeIgnored {
		t.Errorf("Expected commands ignored while paused, got %s", out)
	}
	if e.Snapshot().SimSec != 0 {
		t.Errorf("Clock moved while paused")
	}

	e.Resume()
	if n := e.Advance(1); n != 1 {
		t.Errorf("Expected one tick after resume, got %d", n)
	}
}

func TestAdvanceCarriesFractions(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	ticks := e.Advance(0.4) + e.Advance(0.4) + e.Advance(0.4)
	if ticks != 1 || e.Snapshot().SimSec != 1 {
		t.Errorf("Expected one tick from 1.2s, got %d (sim %d)", ticks, e.Snapshot().SimSec)
	}
}

func TestOnStateNotifiesUntilUnsubscribed(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	calls := 0
	unsubscribe := e.OnState(func(Snapshot) { calls++ })

	e.Start(Profile{Name: "Ana"})
	e.DoHistory()
	if calls != 2 {
		t.Fatalf("Expected 2 notifications, got %d", calls)
	}

	unsubscribe()
	e.DoPhysical()
	if calls != 2 {
		t.Errorf("Expected no notification after unsubscribe, got %d", calls)
	}
}

func TestBootLoadsSaveAndResetClears(t *testing.T) {
	saver := &memSaver{has: true, data: SaveData{Profile: Profile{Name: "Ana"}, Run: RunAggregate{Level: 3, XP: 50}}}
	e := NewEngine(Options{Settings: DefaultSettings(), Saver: saver})

	if !e.Boot() {
		t.Fatalf("Expected save to load")
	}
	s := e.Snapshot()
	if s.Status != StatusStart || s.Run.Level != 3 || s.Profile.Name != "Ana" {
		t.Fatalf("Unexpected boot state %+v", s)
	}
	if s.NextArrivalSec != rules.ArrivalInterval(3, DefaultSettings().Queue) {
		t.Errorf("Expected countdown for level 3, got %v", s.NextArrivalSec)
	}

	e.ResetSave()
	s = e.Snapshot()
	if saver.cleared != 1 || s.Run.Level != 1 || s.Profile.Name != "" || s.Status != StatusStart {
		t.Errorf("Expected a cleared save, got %+v", s)
	}
}

func TestSetCasesKeepsLiveTemplates(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	if !e.SetCases(nil) {
		t.Errorf("Expected built-in cases for an empty set")
	}
	if out, err := e.RequestExam("troponin_labs"); err != nil || out != OutcomeApplied {
		t.Errorf("Expected live patient to keep its case, got %s, %v", out, err)
	}
	if len(e.Snapshot().Specialties) < 2 {
		t.Errorf("Expected the built-in specialties after the swap")
	}
}

func TestContentFilters(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.SetContentFilters(clinical.Filter{Specialty: "  ", MaxDifficulty: 9})
	if c := e.Snapshot().Content; c.Specialty != clinical.AllSpecialties || c.MaxDifficulty != 5 {
		t.Errorf("Expected defaults, got %+v", c)
	}

	e.SetContentFilters(clinical.Filter{Specialty: "Pediatrics"})
	e.Start(Profile{Name: "Ana"})
	if s := e.Snapshot(); len(s.Patients) != 1 || s.Patients[0].TemplateID != "mi" {
		t.Errorf("Expected the whole catalog when the filter matches nothing, got %+v", s.Patients)
	}

	e.SetCases(clinical.DefaultCases())
	for i := 0; i < 10; i++ {
		e.SetContentFilters(clinical.Filter{Specialty: "Cardiologia"})
		e.Start(Profile{Name: "Ana"})
		if s := e.Snapshot(); len(s.Patients) != 1 || s.Patients[0].Specialty != "Cardiologia" {
			t.Fatalf("Expected only cardiology arrivals, got %+v", s.Patients)
		}
	}
}

func TestSpawnFallsBackWhenLevelCapExcludesEveryCase(t *testing.T) {
	hard := chestPain()
	hard.ID = "hard_mi"
	hard.Difficulty = 3
	e := NewEngine(Options{
		Settings: quietSettings(),
		Catalog:  clinical.NewCatalog([]clinical.CaseTemplate{hard}),
		Logger:   logger.Discard(),
		Rand:     rand.New(rand.NewSource(1)),
		NewID:    sequentialIDs(),
	})
	e.Boot()
	e.Start(Profile{Name: "Ana"})

	s := e.Snapshot()
	if len(s.Patients) != 1 || s.SelectedID != "p_1" || s.Patients[0].TemplateID != "hard_mi" {
		t.Fatalf("Expected a level-1 shift to still get the only case, got %+v", s.Patients)
	}
	if r := e.Diagnose("Acute myocardial infarction"); r == nil || !r.Correct {
		t.Fatalf("Expected the case to be playable, got %+v", r)
	}
}

func TestPendingEffectsHideResults(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})
	e.RequestExam("chest_ct")
	e.ApplyTreatment("aspirin")

	p := e.Snapshot().Selected()
	if len(p.Pending) != 2 {
		t.Fatalf("Expected two pending effects, got %d", len(p.Pending))
	}
	for _, eff := range p.Pending {
		if eff.Text != "" || eff.SeverityDelta != 0 {
			t.Errorf("Pending %s %s leaks its payload: %+v", eff.Kind, eff.Key, eff)
		}
		if eff.ReadyAtSec == 0 || eff.Key == "" {
			t.Errorf("Pending effect should keep key and due time, got %+v", eff)
		}
	}
	raw, err := json.Marshal(e.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if strings.Contains(string(raw), "No dissection") {
		t.Errorf("Snapshot JSON contains an unready exam result")
	}

	e.mu.Lock()
	internal := e.patients[0].Pending[0].Text
	e.mu.Unlock()
	if internal != "No dissection" {
		t.Errorf("Engine lost the pending result text, got %q", internal)
	}
}

func TestAdvanceIsBounded(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	if n := e.Advance(1e12); n != MaxTicksPerAdvance {
		t.Errorf("Expected %d ticks, got %d", MaxTicksPerAdvance, n)
	}
	if n := e.Advance(1); n != 1 {
		t.Errorf("Expected the clamped time to be dropped, got %d ticks", n)
	}
}

// lockCheckSaver records whether the engine lock was held during Save.
type lockCheckSaver struct {
	memSaver
	e          *Engine
	heldOnSave bool
}

func (s *lockCheckSaver) Save(d SaveData) {
	if s.e.mu.TryLock() {
		s.e.mu.Unlock()
	} else {
		s.heldOnSave = true
	}
	s.memSaver.Save(d)
}

func TestSavesRunOutsideEngineLock(t *testing.T) {
	saver := &lockCheckSaver{}
	e := NewEngine(Options{
		Settings: quietSettings(),
		Catalog:  clinical.NewCatalog([]clinical.CaseTemplate{chestPain()}),
		Saver:    saver,
		Logger:   logger.Discard(),
		NewID:    sequentialIDs(),
	})
	saver.e = e
	e.Boot()

	e.Start(Profile{Name: "Ana"})
	e.Diagnose("Acute myocardial infarction")
	if saver.saves != 2 {
		t.Fatalf("Expected saves on start and diagnosis, got %d", saver.saves)
	}
	if saver.heldOnSave {
		t.Errorf("Save ran while the engine lock was held")
	}
	if saver.data.Run.CasesCompleted != 1 {
		t.Errorf("Expected the latest run to be saved, got %+v", saver.data.Run)
	}
}

func TestCriticalFlagRecordedAndScored(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	if out, err := e.SetCriticalFlag(clinical.FlagSendHome, true); err != nil || out != OutcomeApplied {
		t.Fatalf("set flag: %s, %v", out, err)
	}
	if out, _ := e.SetCriticalFlag(clinical.FlagSendHome, true); out != OutcomeDuplicate {
		t.Errorf("Expected repeated flag to be a duplicate, got %s", out)
	}
	if _, err := e.SetCriticalFlag("wrong_side_surgery", true); domainerrors.CodeOf(err) != domainerrors.CodeUnknownFlag {
		t.Errorf("Expected UNKNOWN_FLAG, got %v", err)
	}
	if flags := e.Snapshot().Selected().CriticalFlags; len(flags) != 1 {
		t.Fatalf("Expected one recorded flag, got %v", flags)
	}

	r := e.Diagnose("Acute myocardial infarction")
	if r == nil || len(r.CriticalErrors) != 1 {
		t.Fatalf("Expected the flag in the report, got %+v", r)
	}
	if got := len(e.journal.GetByType(events.EventTypeCriticalFlag)); got != 1 {
		t.Errorf("Expected one flag journal entry, got %d", got)
	}
}

func TestCriticalFlagCanBeWithdrawn(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.Start(Profile{Name: "Ana"})

	e.SetCriticalFlag(clinical.FlagDelayEpi, true)
	if out, _ := e.SetCriticalFlag(clinical.FlagDelayEpi, false); out != OutcomeApplied {
		t.Fatalf("Expected withdrawal to apply, got %s", out)
	}
	if r := e.Diagnose("Acute myocardial infarction"); r == nil || len(r.CriticalErrors) != 0 {
		t.Errorf("Expected no critical errors after withdrawal, got %+v", r)
	}
}

func TestSetModeSwitchesPacing(t *testing.T) {
	e, _ := newTestEngine(t, quietSettings())
	e.SetMode(rules.ModeTraining)
	e.Start(Profile{Name: "Ana"})

	e.Advance(70)
	if d := e.Snapshot().Run.Deaths; d != 0 {
		t.Errorf("Expected training pace to outlast shift timings, got %d deaths", d)
	}
	if got := len(e.journal.GetByType(events.EventTypeModeChanged)); got != 0 {
		t.Errorf("Start resets the journal, got %d mode entries", got)
	}
}
