package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != StoreSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Sim.Deterioration.StableToUnstableSec != 35 {
		t.Fatalf("expected engine defaults, got %+v", cfg.Sim.Deterioration)
	}
}

func TestLoadOverridesNestedSettings(t *testing.T) {
	t.Setenv("MEDSIM_STORE", "bolt")
	t.Setenv("MEDSIM_SIM_DET_STABLE_TO_UNSTABLE_SEC", "50")
	t.Setenv("MEDSIM_SIM_SCORE_CORRECT_POINTS", "200")
	t.Setenv("MEDSIM_SIM_MODE_TRAINING_PENALTY_MULT", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreBolt {
		t.Errorf("store = %q", cfg.Store)
	}
	if cfg.Sim.Deterioration.StableToUnstableSec != 50 {
		t.Errorf("stable timing = %v", cfg.Sim.Deterioration.StableToUnstableSec)
	}
	if cfg.Sim.Scoring.CorrectPoints != 200 {
		t.Errorf("correct points = %v", cfg.Sim.Scoring.CorrectPoints)
	}
	if cfg.Sim.Modes.Training.PenaltyMult != 0.5 {
		t.Errorf("training penalty = %v", cfg.Sim.Modes.Training.PenaltyMult)
	}
	if cfg.Sim.Deterioration.UnstableToCriticalSec != 25 {
		t.Errorf("unset fields must keep defaults, got %v", cfg.Sim.Deterioration.UnstableToCriticalSec)
	}
}

func TestLoadTuningProfile(t *testing.T) {
	t.Setenv("MEDSIM_TUNING", "low")
	t.Setenv("MEDSIM_NET_CLIENT_SEND_BUFFER", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Net.BroadcastChannelBuffer != 16 {
		t.Errorf("expected low profile buffer, got %d", cfg.Net.BroadcastChannelBuffer)
	}
	if cfg.Net.ClientSendBuffer != 32 {
		t.Errorf("expected env override, got %d", cfg.Net.ClientSendBuffer)
	}
}

func TestLoadRejectsPostgresWithoutURL(t *testing.T) {
	t.Setenv("MEDSIM_STORE", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("MEDSIM_SEED", "not-an-int")

	cfg := Default()
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
