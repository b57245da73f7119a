// Package optimization provides concurrency tuning profiles for the server.
package optimization

import (
	"runtime"

	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// Config holds tuned parameters for the websocket fan-out and the save store.
type Config struct {
	// Channel buffer sizes
	BroadcastChannelBuffer int `env:"BROADCAST_BUFFER"`
	ClientSendBuffer       int `env:"CLIENT_SEND_BUFFER"`

	// Save store connection pool
	DBMaxOpenConns int `env:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int `env:"DB_MAX_IDLE_CONNS"`

	// Rate limiting
	MaxMessagesPerSecond int `env:"MAX_MESSAGES_PER_SECOND"` // per client
	MaxClients           int `env:"MAX_CLIENTS"`
}

// Profile picks a tuning profile by name: "stress", "low" or anything else
// for the default.
func Profile(name string) *Config {
	switch name {
	case "stress":
		return StressTestConfig()
	case "low":
		return LowResourceConfig()
	}
	return DefaultConfig()
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		MaxMessagesPerSecond: 20,
		MaxClients:           200,
	}
}

// StressTestConfig returns aggressive settings for load testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       128,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		MaxMessagesPerSecond: 200,
		MaxClients:           1000,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 10,
		MaxClients:           20,
	}
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseBroadcastBuffer bool
	IncreaseDBConnections   bool
	Notes                   []string
}

// Analyze examines a metrics snapshot and returns tuning recommendations.
func Analyze(s metrics.Snapshot) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	if s.Tick.MaxLatencyMs > 100 {
		rec.Notes = append(rec.Notes, "Tick latency exceeds 100ms - check save store latency and subscriber work")
	}

	if s.Saves.MaxLatencyMs > 50 {
		rec.IncreaseDBConnections = true
		rec.Notes = append(rec.Notes, "Save latency exceeds 50ms - increase DB connections")
	}
	if s.Saves.Errors > 0 {
		rec.IncreaseDBConnections = true
		rec.Notes = append(rec.Notes, "Save errors detected - check the save store")
	}

	if s.WebSocket.Errors > 0 {
		rec.IncreaseBroadcastBuffer = true
		rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseBroadcastBuffer {
		config.BroadcastChannelBuffer *= 2
		config.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		config.DBMaxOpenConns = int(float64(config.DBMaxOpenConns) * 1.5)
		config.DBMaxIdleConns = int(float64(config.DBMaxIdleConns) * 1.5)
	}
	return config
}
