package rules

// ProgressionParams controls experience and levels.
type ProgressionParams struct {
	XPCorrect  int `env:"XP_CORRECT"`
	XPWrong    int `env:"XP_WRONG"`
	XPPerLevel int `env:"XP_PER_LEVEL"`
}

// DefaultProgressionParams returns the stock progression.
func DefaultProgressionParams() ProgressionParams {
	return ProgressionParams{XPCorrect: 100, XPWrong: 25, XPPerLevel: 300}
}

// GainXP adds the reward for one case and rolls over as many levels as it buys.
func GainXP(level, xp int, correct bool, p ProgressionParams) (newLevel, newXP int) {
	if correct {
		xp += p.XPCorrect
	} else {
		xp += p.XPWrong
	}
	if p.XPPerLevel <= 0 {
		return level, xp
	}
	for xp >= p.XPPerLevel {
		xp -= p.XPPerLevel
		level++
	}
	return level, xp
}

var rankTitles = []string{
	"Interno",
	"Residente R1",
	"Residente R2",
	"Residente R3",
	"Preceptor",
}

// RankTitle names the player's rank at a level.
func RankTitle(level int) string {
	if level < 1 {
		level = 1
	}
	if level > len(rankTitles) {
		level = len(rankTitles)
	}
	return rankTitles[level-1]
}

// QueueParams controls how many patients wait and how fast they arrive.
type QueueParams struct {
	CapacityBase     int     `env:"CAPACITY_BASE"`
	CapacityCap      int     `env:"CAPACITY_CAP"`
	LevelsPerSlot    int     `env:"LEVELS_PER_SLOT"`
	ArrivalBaseSec   float64 `env:"ARRIVAL_BASE_SEC"`
	ArrivalMinSec    float64 `env:"ARRIVAL_MIN_SEC"`
	ArrivalDecaySec  float64 `env:"ARRIVAL_DECAY_SEC"` // per level
	StartPatients    int     `env:"START_PATIENTS"`
	FeedbackPauseMax int     `env:"FEEDBACK_PAUSE_MAX_LEVEL"`
	RecentReports    int     `env:"RECENT_REPORTS"`
	MaxDifficulty    int     `env:"MAX_DIFFICULTY"`
}

// DefaultQueueParams returns the stock pacing.
func DefaultQueueParams() QueueParams {
	return QueueParams{
		CapacityBase:     1,
		CapacityCap:      4,
		LevelsPerSlot:    2,
		ArrivalBaseSec:   18,
		ArrivalMinSec:    6,
		ArrivalDecaySec:  1,
		StartPatients:    2,
		FeedbackPauseMax: 2,
		RecentReports:    5,
		MaxDifficulty:    5,
	}
}

// Capacity is the number of patients allowed in the queue at a level.
func Capacity(level int, p QueueParams) int {
	if level < 1 {
		level = 1
	}
	step := p.LevelsPerSlot
	if step <= 0 {
		step = 1
	}
	n := p.CapacityBase + (level-1)/step
	if n < 1 {
		n = 1
	}
	if p.CapacityCap > 0 && n > p.CapacityCap {
		n = p.CapacityCap
	}
	return n
}

// ArrivalInterval is the countdown between arrivals at a level.
func ArrivalInterval(level int, p QueueParams) float64 {
	if level < 1 {
		level = 1
	}
	v := p.ArrivalBaseSec - float64(level-1)*p.ArrivalDecaySec
	if v < p.ArrivalMinSec {
		v = p.ArrivalMinSec
	}
	if v > p.ArrivalBaseSec {
		v = p.ArrivalBaseSec
	}
	return v
}

// StartCount is how many patients a fresh session opens with.
func StartCount(level int, p QueueParams) int {
	n := Capacity(level, p)
	if p.StartPatients > 0 && n > p.StartPatients {
		n = p.StartPatients
	}
	if n < 1 {
		n = 1
	}
	return n
}

// SpawnDifficultyCap is the hardest case allowed at a level given the
// player's own ceiling.
func SpawnDifficultyCap(level, userMax int, p QueueParams) int {
	lv := level
	if lv < 1 {
		lv = 1
	}
	if p.MaxDifficulty > 0 && lv > p.MaxDifficulty {
		lv = p.MaxDifficulty
	}
	if userMax > 0 && userMax < lv {
		return userMax
	}
	return lv
}
