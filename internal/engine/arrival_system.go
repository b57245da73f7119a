package engine

import (
	"fmt"
	"math/rand"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/patient"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// ArrivalSystem owns the arrival countdown and picks the next case.
type ArrivalSystem struct {
	settings  *Settings
	factory   *Factory
	catalog   *clinical.Catalog
	rng       *rand.Rand
	journal   *events.Journal
	logger    *logger.Logger
	metrics   *metrics.Collector
	countdown float64
}

func NewArrivalSystem(settings *Settings, factory *Factory, catalog *clinical.Catalog, rng *rand.Rand, journal *events.Journal, log *logger.Logger, m *metrics.Collector) *ArrivalSystem {
	as := &ArrivalSystem{
		settings: settings,
		factory:  factory,
		catalog:  catalog,
		rng:      rng,
		journal:  journal,
		logger:   log,
		metrics:  m,
	}
	as.Reset(1)
	return as
}

// Countdown returns the seconds until the next arrival attempt.
func (as *ArrivalSystem) Countdown() float64 {
	return as.countdown
}

// Reset restarts the countdown at the interval for level.
func (as *ArrivalSystem) Reset(level int) {
	as.countdown = rules.ArrivalInterval(level, as.settings.Queue)
}

// Hasten pulls the countdown in to at most one interval for level.
func (as *ArrivalSystem) Hasten(level int) {
	if iv := rules.ArrivalInterval(level, as.settings.Queue); iv < as.countdown {
		as.countdown = iv
	}
}

// Tick counts down one second. When the countdown runs out it is reset and
// Tick reports that an arrival is due; the caller decides whether the queue
// has room.
func (as *ArrivalSystem) Tick(level int) bool {
	as.countdown--
	if as.countdown > 0 {
		return false
	}
	as.Reset(level)
	return true
}

// SetCatalog swaps the case source for future arrivals.
func (as *ArrivalSystem) SetCatalog(c *clinical.Catalog) {
	as.catalog = c
}

// Catalog returns the current case source.
func (as *ArrivalSystem) Catalog() *clinical.Catalog {
	return as.catalog
}

// Spawn picks a case for a new patient. It prefers cases allowed at the
// player's level under filter, then anything filter allows, then any case at
// all, so the queue never starves. Returns nils only for an empty catalog.
func (as *ArrivalSystem) Spawn(dc DifficultyContext, filter clinical.Filter, simSec int64) (*patient.Patient, *clinical.CaseTemplate) {
	tpl := as.pick(dc.Level, filter)
	if tpl == nil {
		return nil, nil
	}

	p := as.factory.Create(tpl, dc)
	as.metrics.RecordSpawn()
	as.journal.Append(simSec, events.EventTypePatientArrived, p.ID,
		fmt.Sprintf("New patient (%s): %s (%dy)", p.Triage, p.Name, p.Age))
	return p, tpl
}

func (as *ArrivalSystem) pick(level int, filter clinical.Filter) *clinical.CaseTemplate {
	capped := clinical.Filter{
		Specialty:     filter.Specialty,
		MaxDifficulty: rules.SpawnDifficultyCap(level, filter.MaxDifficulty, as.settings.Queue),
	}
	if tpl := as.catalog.Random(as.rng, capped.Matches); tpl != nil {
		return tpl
	}
	if tpl := as.catalog.Random(as.rng, filter.Matches); tpl != nil {
		as.logger.Info("no case at level cap, using content filter", "level", level, "max_difficulty", capped.MaxDifficulty)
		return tpl
	}
	tpl := as.catalog.Random(as.rng, nil)
	if tpl != nil {
		as.logger.Warn("no case matches content filter, using whole catalog", "specialty", filter.Specialty, "max_difficulty", filter.MaxDifficulty)
	}
	return tpl
}
