package engine

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// SaveData is the progress persisted between sessions.
type SaveData struct {
	Profile Profile
	Run     RunAggregate
}

// Saver persists progress. Implementations swallow their own failures and
// report them as "no save".
type Saver interface {
	Load() (SaveData, bool)
	Save(SaveData)
	Clear()
}

type nopSaver struct{}

func (nopSaver) Load() (SaveData, bool) { return SaveData{}, false }
func (nopSaver) Save(SaveData)          {}
func (nopSaver) Clear()                 {}

// Options wires an engine. Zero values get working defaults, except
// Settings which callers normally take from DefaultSettings.
type Options struct {
	Settings Settings
	Catalog  *clinical.Catalog
	Saver    Saver
	Logger   *logger.Logger
	Metrics  *metrics.Collector
	Rand     *rand.Rand
	NewID    IDGenerator
	Mode     rules.Mode
}

// Engine is the session and queue controller. Every mutation goes through
// it under a single mutex, so ticks and player commands interleave strictly.
type Engine struct {
	mu sync.Mutex

	settings *Settings
	journal  *events.Journal
	logger   *logger.Logger
	metrics  *metrics.Collector
	saver    Saver

	// Sub-systems
	factory       *Factory
	actions       *ActionProcessor
	effects       *EffectScheduler
	deterioration *DeteriorationSystem
	arrivals      *ArrivalSystem
	evaluation    *EvaluationSystem

	// State
	status     Status
	paused     bool
	mode       rules.Mode
	profile    Profile
	run        RunAggregate
	patients   []*patient.Patient
	templates  map[string]*clinical.CaseTemplate // by patient id
	selectedID string
	feedback   *rules.Report
	recent     []rules.Report
	content    clinical.Filter
	simSec     int64
	carry      float64 // fractional seconds not yet ticked

	subs    map[int]func(Snapshot)
	nextSub int

	// Save store I/O runs after e.mu is released, in mutation order.
	pending *persistOp
	opSeq   uint64
	saveMu  sync.Mutex
	doneSeq uint64
}

// persistOp is a save or clear decided under e.mu and carried out after it.
type persistOp struct {
	seq   uint64
	clear bool
	data  SaveData
}

// NewEngine initializes the sub-systems. The engine starts in BOOT; call
// Boot to load saved progress.
func NewEngine(opts Options) *Engine {
	settings := opts.Settings
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Saver == nil {
		opts.Saver = nopSaver{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		opts.Catalog = clinical.NewCatalog(clinical.DefaultCases())
	}

	e := &Engine{
		settings: &settings,
		journal:  events.NewJournal(settings.JournalCapacity),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		saver:    opts.Saver,

		status:    StatusBoot,
		mode:      rules.ParseMode(string(opts.Mode)),
		run:       NewRun(),
		templates: make(map[string]*clinical.CaseTemplate),
		content:   clinical.Filter{Specialty: clinical.AllSpecialties, MaxDifficulty: settings.Queue.MaxDifficulty},
		subs:      make(map[int]func(Snapshot)),
	}
	e.factory = NewFactory(e.settings, opts.NewID, opts.Rand)
	e.actions = NewActionProcessor(e.settings, e.journal, e.logger, e.metrics)
	e.effects = NewEffectScheduler(e.journal, e.logger, e.metrics)
	e.deterioration = NewDeteriorationSystem(e.settings, e.effects, e.journal, e.logger, opts.Rand)
	e.arrivals = NewArrivalSystem(e.settings, e.factory, opts.Catalog, opts.Rand, e.journal, e.logger, e.metrics)
	e.evaluation = NewEvaluationSystem(e.settings, e.journal, e.logger, e.metrics)
	return e
}

// mutate runs fn under the lock and, when it reports a change, pushes a
// fresh snapshot to every subscriber after the lock is released.
func (e *Engine) mutate(fn func() bool) {
	e.mu.Lock()
	changed := fn()
	op := e.pending
	e.pending = nil
	var (
		subs  []func(Snapshot)
		snaps []Snapshot
	)
	if changed {
		for _, s := range e.subs {
			subs = append(subs, s)
			snaps = append(snaps, e.snapshotLocked())
		}
	}
	e.mu.Unlock()

	e.persist(op)
	for i, s := range subs {
		s(snaps[i])
	}
}

// persist runs a save or clear outside the engine lock. An op older than
// one already written is dropped so a slow writer never rolls progress back.
func (e *Engine) persist(op *persistOp) {
	if op == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if op.seq <= e.doneSeq {
		return
	}
	e.doneSeq = op.seq
	if op.clear {
		e.saver.Clear()
		return
	}
	e.saver.Save(op.data)
}

// OnState registers a listener called after every mutation. The returned
// function unsubscribes it.
func (e *Engine) OnState(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Snapshot returns the current state by value.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// JournalSince returns journal entries newer than seq.
func (e *Engine) JournalSince(seq int64) []events.GameEvent {
	return e.journal.Since(seq)
}

// Boot loads saved progress and moves to START. Reports whether a save was found.
func (e *Engine) Boot() bool {
	loaded := false
	e.mutate(func() bool {
		e.status = StatusBoot
		if data, ok := e.saver.Load(); ok {
			e.profile = data.Profile
			e.run = data.Run
			if e.run.Level < 1 {
				e.run.Level = 1
			}
			loaded = true
		}
		e.arrivals.Reset(e.run.Level)
		e.status = StatusStart
		e.logger.Info("engine booted", "save_found", loaded, "level", e.run.Level)
		return true
	})
	return loaded
}

// Start opens a new shift for profile.
func (e *Engine) Start(profile Profile) {
	e.mutate(func() bool {
		e.profile = Profile{Name: strings.TrimSpace(profile.Name), AvatarURL: profile.AvatarURL}
		e.resetRunLocked()
		e.status = StatusRunning
		e.journal.Append(e.simSec, events.EventTypeSessionStarted, "", "Shift started as "+rules.RankTitle(e.run.Level))
		for n := rules.StartCount(e.run.Level, e.settings.Queue); len(e.patients) < n; {
			if e.spawnLocked() == nil {
				break
			}
		}
		e.saveLocked()
		e.logger.Info("shift started", "profile", e.profile.Name, "mode", e.mode, "patients", len(e.patients))
		return true
	})
}

func (e *Engine) resetRunLocked() {
	e.run = NewRun()
	e.patients = nil
	e.templates = make(map[string]*clinical.CaseTemplate)
	e.selectedID = ""
	e.feedback = nil
	e.recent = nil
	e.simSec = 0
	e.carry = 0
	e.arrivals.Reset(e.run.Level)
	e.journal.Reset()
}

func (e *Engine) saveLocked() {
	e.opSeq++
	e.pending = &persistOp{seq: e.opSeq, data: SaveData{Profile: e.profile, Run: e.run}}
}

func (e *Engine) clearSaveLocked() {
	e.opSeq++
	e.pending = &persistOp{seq: e.opSeq, clear: true}
}

// bedsideLocked reports whether player actions are accepted: the shift is
// running and not paused.
func (e *Engine) bedsideLocked() bool {
	return e.status == StatusRunning && !e.paused
}

func (e *Engine) spawnLocked() *patient.Patient {
	p, tpl := e.arrivals.Spawn(DifficultyContext{Level: e.run.Level, Mode: e.mode}, e.content, e.simSec)
	if p == nil {
		return nil
	}
	e.patients = append(e.patients, p)
	e.templates[p.ID] = tpl
	if e.selectedID == "" {
		e.selectedID = p.ID
	}
	return p
}

func (e *Engine) findLocked(id string) *patient.Patient {
	for _, p := range e.patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (e *Engine) removeLocked(id string) {
	for i, p := range e.patients {
		if p.ID == id {
			e.patients = append(e.patients[:i], e.patients[i+1:]...)
			break
		}
	}
	delete(e.templates, id)
	e.reselectLocked()
	if len(e.patients) == 0 && (e.status == StatusRunning || e.status == StatusFeedback) {
		e.spawnLocked()
	}
}

func (e *Engine) reselectLocked() {
	if e.selectedID != "" && e.findLocked(e.selectedID) != nil {
		return
	}
	e.selectedID = ""
	if len(e.patients) > 0 {
		e.selectedID = e.patients[0].ID
	}
}

// SelectPatient focuses the player on a patient. Unknown ids are ignored.
func (e *Engine) SelectPatient(id string) {
	e.mutate(func() bool {
		p := e.findLocked(id)
		if p == nil || !e.bedsideLocked() {
			return false
		}
		e.selectedID = id
		if p.Status == patient.StatusWaiting {
			p.Status = patient.StatusInCare
			e.journal.Append(e.simSec, events.EventTypePatientSelected, p.ID, "Now attending "+p.Name)
		}
		return true
	})
}

// DoHistory takes the history of the selected patient.
func (e *Engine) DoHistory() (Outcome, error) {
	return e.performSelected(TakeHistory{})
}

// DoPhysical examines the selected patient.
func (e *Engine) DoPhysical() (Outcome, error) {
	return e.performSelected(PhysicalExam{})
}

// RequestExam orders an exam for the selected patient.
func (e *Engine) RequestExam(key clinical.ExamKey) (Outcome, error) {
	return e.performSelected(RequestExam{Key: key})
}

// ApplyTreatment treats the selected patient.
func (e *Engine) ApplyTreatment(key clinical.TreatmentKey) (Outcome, error) {
	return e.performSelected(GiveTreatment{Key: key})
}

// SetCriticalFlag records or withdraws a critical error on the selected patient.
func (e *Engine) SetCriticalFlag(key clinical.FlagKey, set bool) (Outcome, error) {
	return e.performSelected(SetCriticalFlag{Key: key, Set: set})
}

// Diagnose closes the selected patient's encounter and returns the report,
// or nil when there was nothing to diagnose.
func (e *Engine) Diagnose(text string) *rules.Report {
	var report *rules.Report
	e.mutate(func() bool {
		p := e.findLocked(e.selectedID)
		if p == nil || !e.bedsideLocked() {
			return false
		}
		report = e.diagnoseLocked(p, text)
		return report != nil
	})
	return report
}

func (e *Engine) performSelected(a Action) (Outcome, error) {
	e.mu.Lock()
	id := e.selectedID
	e.mu.Unlock()
	return e.Perform(id, a)
}

// Perform applies a to the patient with the given id. Unknown patients, a
// paused session and the feedback screen make it a silent no-op.
func (e *Engine) Perform(patientID string, a Action) (Outcome, error) {
	out := OutcomeIgnored
	var err error
	e.mutate(func() bool {
		p := e.findLocked(patientID)
		if p == nil || !e.bedsideLocked() {
			return false
		}
		if d, ok := a.(FinalDiagnosis); ok {
			if e.diagnoseLocked(p, d.Text) != nil {
				out = OutcomeApplied
			}
			return out == OutcomeApplied
		}
		tpl := e.templates[p.ID]
		if tpl == nil {
			return false
		}
		if p.Status == patient.StatusWaiting {
			p.Status = patient.StatusInCare
		}
		out, err = e.actions.Perform(p, tpl, a, ActionContext{Mode: e.mode, SimSec: e.simSec})
		return out == OutcomeApplied
	})
	return out, err
}

func (e *Engine) diagnoseLocked(p *patient.Patient, text string) *rules.Report {
	tpl := e.templates[p.ID]
	if tpl == nil || p.IsTerminal() {
		return nil
	}
	ac := ActionContext{Mode: e.mode, SimSec: e.simSec}
	if out, _ := e.actions.Perform(p, tpl, FinalDiagnosis{Text: text}, ac); out != OutcomeApplied {
		return nil
	}
	r := e.evaluation.Close(p, tpl, e.mode, e.simSec)

	e.run.CasesCompleted++
	e.run.ScoreTotal = max(0, e.run.ScoreTotal+r.Points)
	if r.Correct {
		e.run.CorrectCount++
	} else {
		e.run.WrongCount++
	}
	if r.Outcome == rules.OutcomeDeath {
		e.run.Deaths++
	}

	prevLevel := e.run.Level
	e.run.Level, e.run.XP = rules.GainXP(e.run.Level, e.run.XP, r.Correct, e.settings.Progression)
	for lv := prevLevel + 1; lv <= e.run.Level; lv++ {
		e.journal.Append(e.simSec, events.EventTypeLevelUp, "",
			fmt.Sprintf("Promotion! Now level %d (%s)", lv, rules.RankTitle(lv)))
	}

	e.removeLocked(p.ID)
	e.arrivals.Hasten(e.run.Level)

	if e.run.Level <= e.settings.Queue.FeedbackPauseMax {
		e.feedback = &r
		e.status = StatusFeedback
	} else {
		e.recent = append([]rules.Report{r}, e.recent...)
		if keep := e.settings.Queue.RecentReports; keep > 0 && len(e.recent) > keep {
			e.recent = e.recent[:keep]
		}
		e.feedback = nil
		e.status = StatusRunning
	}

	e.saveLocked()
	return &r
}

// ContinueAfterFeedback dismisses the feedback screen and resumes the shift.
func (e *Engine) ContinueAfterFeedback() {
	e.mutate(func() bool {
		if e.status != StatusFeedback {
			return false
		}
		e.feedback = nil
		e.status = StatusRunning
		return true
	})
}

// ResetSave wipes saved progress and returns to START.
func (e *Engine) ResetSave() {
	e.mutate(func() bool {
		e.clearSaveLocked()
		e.profile = Profile{}
		e.resetRunLocked()
		e.status = StatusStart
		e.logger.Warn("save reset")
		return true
	})
}

// SetMode switches between shift and training pacing.
func (e *Engine) SetMode(m rules.Mode) {
	e.mutate(func() bool {
		m = rules.ParseMode(string(m))
		if m == e.mode {
			return false
		}
		e.mode = m
		e.journal.Append(e.simSec, events.EventTypeModeChanged, "", "Mode: "+string(m))
		return true
	})
}

// SetContentFilters restricts which cases future arrivals are drawn from.
func (e *Engine) SetContentFilters(f clinical.Filter) {
	e.mutate(func() bool {
		f.Specialty = strings.TrimSpace(f.Specialty)
		if f.Specialty == "" {
			f.Specialty = clinical.AllSpecialties
		}
		maxDiff := e.settings.Queue.MaxDifficulty
		if f.MaxDifficulty <= 0 || (maxDiff > 0 && f.MaxDifficulty > maxDiff) {
			f.MaxDifficulty = maxDiff
		}
		e.content = f
		e.journal.Append(e.simSec, events.EventTypeContentChanged, "",
			fmt.Sprintf("Filters: specialty %s, max difficulty %d", f.Specialty, f.MaxDifficulty))
		return true
	})
}

// SetCases replaces the catalog used for future arrivals. Patients already in
// the queue keep their templates. Reports whether the built-in cases were
// used because templates held nothing usable.
func (e *Engine) SetCases(templates []clinical.CaseTemplate) bool {
	cat, usedDefaults := clinical.CatalogOrDefault(templates)
	e.mutate(func() bool {
		e.arrivals.SetCatalog(cat)
		e.journal.Append(e.simSec, events.EventTypeContentChanged, "",
			fmt.Sprintf("Content updated: %d cases available for new patients", cat.Len()))
		e.logger.Info("catalog replaced", "cases", cat.Len(), "defaults", usedDefaults)
		return true
	})
	return usedDefaults
}

// Pause freezes the simulation. Ticks and bedside commands are ignored until Resume.
func (e *Engine) Pause() {
	e.mutate(func() bool {
		if e.paused {
			return false
		}
		e.paused = true
		return true
	})
}

// Resume lifts the pause gate.
func (e *Engine) Resume() {
	e.mutate(func() bool {
		if !e.paused {
			return false
		}
		e.paused = false
		return true
	})
}

// MaxTicksPerAdvance bounds how much simulated time one Advance call runs
// under the engine lock. Time beyond it is dropped.
const MaxTicksPerAdvance = 3600

// Advance moves simulated time forward. Whole seconds are ticked and the
// fraction carries over. It returns the number of ticks run.
func (e *Engine) Advance(deltaSec float64) int {
	ticks := 0
	e.mutate(func() bool {
		if e.paused || deltaSec <= 0 || math.IsNaN(deltaSec) || math.IsInf(deltaSec, 0) {
			return false
		}
		e.carry += deltaSec
		n := int(math.Floor(e.carry))
		e.carry -= float64(n)
		if n > MaxTicksPerAdvance {
			e.logger.Warn("advance clamped", "requested_sec", n, "ticked_sec", MaxTicksPerAdvance)
			n = MaxTicksPerAdvance
		}
		for i := 0; i < n; i++ {
			if e.tickLocked() {
				ticks++
			}
		}
		return ticks > 0
	})
	return ticks
}

// tickLocked runs one simulated second. Only a RUNNING session ticks.
func (e *Engine) tickLocked() bool {
	if e.status != StatusRunning {
		return false
	}
	started := time.Now()
	e.simSec++

	if e.arrivals.Tick(e.run.Level) && len(e.patients) < rules.Capacity(e.run.Level, e.settings.Queue) {
		e.spawnLocked()
	}

	died := false
	for _, p := range append([]*patient.Patient(nil), e.patients...) {
		if e.deterioration.Tick(p, 1, e.mode, e.simSec) {
			e.onDeathLocked(p)
			died = true
		}
	}

	e.reselectLocked()
	if len(e.patients) == 0 {
		e.spawnLocked()
	}
	if died {
		e.saveLocked()
	}
	e.metrics.RecordTick(time.Since(started))
	return true
}

func (e *Engine) onDeathLocked(p *patient.Patient) {
	e.run.Deaths++
	e.run.ScoreTotal = max(0, e.run.ScoreTotal-int(e.settings.Scoring.DeathPenalty))
	e.metrics.RecordDeath()
	e.logger.Warn("patient died", "patient", p.ID, "case", p.TemplateID, "elapsed_sec", p.ElapsedSec)
	e.removeLocked(p.ID)
}
