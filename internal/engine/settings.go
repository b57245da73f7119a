package engine

import (
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/events"
)

// ActionCosts is the encounter time each bedside action consumes.
type ActionCosts struct {
	HistorySec   float64 `env:"HISTORY_SEC"`
	PhysicalSec  float64 `env:"PHYSICAL_SEC"`
	ExamSec      float64 `env:"EXAM_SEC"`
	TreatmentSec float64 `env:"TREATMENT_SEC"`
}

// Settings holds every tunable constant of the simulation.
type Settings struct {
	Deterioration   rules.DeteriorationParams `envPrefix:"DET_"`
	Scoring         rules.ScoringParams       `envPrefix:"SCORE_"`
	Modes           rules.ModeTable           `envPrefix:"MODE_"`
	Progression     rules.ProgressionParams   `envPrefix:"PROG_"`
	Queue           rules.QueueParams         `envPrefix:"QUEUE_"`
	Costs           ActionCosts               `envPrefix:"COST_"`
	JournalCapacity int                       `env:"JOURNAL_CAPACITY"`
}

// DefaultSettings returns the stock balance.
func DefaultSettings() Settings {
	return Settings{
		Deterioration: rules.DefaultDeteriorationParams(),
		Scoring:       rules.DefaultScoringParams(),
		Modes:         rules.DefaultModeTable(),
		Progression:   rules.DefaultProgressionParams(),
		Queue:         rules.DefaultQueueParams(),
		Costs: ActionCosts{
			HistorySec:   10,
			PhysicalSec:  10,
			ExamSec:      15,
			TreatmentSec: 12,
		},
		JournalCapacity: events.DefaultCapacity,
	}
}
