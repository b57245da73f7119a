// Package main runs the headless shift drills and reports pass/fail.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/platform/config"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
	"github.com/MRamiBalles/medsim/internal/platform/optimization"
	"github.com/MRamiBalles/medsim/test"
)

func main() {
	casesPath := flag.String("cases", "", "case catalog JSON file (empty uses built-in cases)")
	verbose := flag.Bool("v", false, "log engine activity to stdout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		config.Exitf("shift-runner: %v", err)
	}

	fmt.Println("🏥 MEDSIM - SHIFT DRILL SUITE")
	fmt.Println("================================================")

	cases := clinical.DefaultCases()
	if *casesPath != "" {
		loaded, err := clinical.LoadFile(*casesPath)
		if err != nil {
			config.Exitf("shift-runner: %v", err)
		}
		if problems := clinical.ValidateAll(loaded); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, p.String())
			}
			config.Exitf("shift-runner: %d invalid case(s) in %s", len(problems), *casesPath)
		}
		cases = loaded
	}

	log := logger.Discard()
	if *verbose {
		log = logger.NewLogger()
	}
	collector := metrics.NewCollector()

	drill := test.NewShiftDrill(cases, cfg.Sim, log, collector)
	drill.RunTest(context.Background())

	passed, failed := 0, 0
	for _, r := range drill.GetResults() {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("📊 DRILL SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   ✅ Passed: %d\n", passed)
	fmt.Printf("   ❌ Failed: %d\n", failed)

	snap := collector.Snapshot()
	fmt.Printf("   Ticks: %d (max %.2fms)  Deaths: %d  Correct: %d  Wrong: %d\n",
		snap.Tick.Count, snap.Tick.MaxLatencyMs, snap.Sim.Died, snap.Sim.Correct, snap.Sim.Wrong)
	rec := optimization.Analyze(snap)
	for _, note := range rec.Notes {
		fmt.Println("   ⚙️  " + note)
	}
	if rec.IncreaseBroadcastBuffer || rec.IncreaseDBConnections {
		tuned := optimization.ApplyRecommendations(&cfg.Net, rec)
		fmt.Printf("   Suggested: MEDSIM_NET_BROADCAST_BUFFER=%d MEDSIM_NET_CLIENT_SEND_BUFFER=%d MEDSIM_NET_DB_MAX_OPEN_CONNS=%d MEDSIM_NET_DB_MAX_IDLE_CONNS=%d\n",
			tuned.BroadcastChannelBuffer, tuned.ClientSendBuffer, tuned.DBMaxOpenConns, tuned.DBMaxIdleConns)
	}

	if failed > 0 {
		fmt.Println("\n⚠️  Case content or tuning needs recalibration")
		os.Exit(1)
	}
	fmt.Println("\n✅ Cases are ready for the next shift")
}
