package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/medsim/internal/platform/logger"
)

// TickRate is how often the real-time loop advances the simulation.
const TickRate = 1 * time.Second

// Ticker drives an Engine from the wall clock.
// It does NOT know about patients - only time progression.
type Ticker struct {
	engine   *Engine
	logger   *logger.Logger
	rate     time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTicker creates a ticker for e at TickRate.
func NewTicker(e *Engine, log *logger.Logger) *Ticker {
	return &Ticker{
		engine:   e,
		logger:   log,
		rate:     TickRate,
		stopChan: make(chan struct{}),
	}
}

// Start runs the loop until ctx is cancelled or Stop is called. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("engine ticker started", "rate", t.rate)

	ticker := time.NewTicker(t.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("engine ticker stopped by context")
			return
		case <-t.stopChan:
			t.logger.Info("engine ticker stopped manually")
			return
		case <-ticker.C:
			t.engine.Advance(t.rate.Seconds())
		}
	}
}

// Stop ends the loop. Pending effects stay with their patients.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}
