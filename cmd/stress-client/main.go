// Package main - stress-client
// Load generator: many concurrent websocket clients spamming bedside commands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/medsim/internal/engine"
	"github.com/MRamiBalles/medsim/internal/network"
)

// Config for the stress client
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	OutPath        string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	StateFrames      int64
	CommandErrors    int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

// view is what a client knows about the queue from the last state frame.
type view struct {
	patientIDs []string
	exams      []string
	treatments []string
	status     engine.Status
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 20, "Number of concurrent clients")
	interval := flag.Duration("interval", 200*time.Millisecond, "Command interval per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	outPath := flag.String("out", "stress_test_results.json", "Where to write the JSON results")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		OutPath:        *outPath,
	}

	fmt.Println("=========================================")
	fmt.Println("🚑 MEDSIM STRESS CLIENT")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\n⚠️ Interrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\n🚀 Starting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("✅ All %d clients started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent := atomic.LoadInt64(&stats.MessagesSent)
				recv := atomic.LoadInt64(&stats.MessagesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("📊 Progress: Sent=%d Recv=%d Errors=%d\n", sent, recv, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var (
		mu   sync.Mutex
		last view
	)
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(clientID)))

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			v, isState, cmdErr := decodeFrame(raw)
			if cmdErr {
				atomic.AddInt64(&stats.CommandErrors, 1)
			}
			if isState {
				atomic.AddInt64(&stats.StateFrames, 1)
				mu.Lock()
				last = v
				mu.Unlock()
			}
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			v := last
			mu.Unlock()

			seq++
			action := generateAction(rng, v, fmt.Sprintf("c%d-%d", clientID, seq))
			start := time.Now()

			if err := conn.WriteJSON(action); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}

			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

// decodeFrame reads a server frame. It returns the queue view for state
// frames and whether an ack carried an error.
func decodeFrame(raw []byte) (view, bool, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(raw, &head) != nil {
		return view{}, false, false
	}
	switch head.Type {
	case "ack":
		var ack network.Ack
		json.Unmarshal(raw, &ack)
		return view{}, false, ack.Error != nil
	case "state":
		var msg network.StateMessage
		if json.Unmarshal(raw, &msg) != nil {
			return view{}, false, false
		}
		v := view{status: msg.State.Status}
		for _, p := range msg.State.Patients {
			v.patientIDs = append(v.patientIDs, p.ID)
		}
		if sel := msg.State.Selected(); sel != nil {
			for _, k := range sel.AvailableExams {
				v.exams = append(v.exams, string(k))
			}
			for _, k := range sel.AvailableTreatments {
				v.treatments = append(v.treatments, string(k))
			}
		}
		return v, true, false
	}
	return view{}, false, false
}

func generateAction(rng *rand.Rand, v view, requestID string) network.PlayerAction {
	action := network.PlayerAction{RequestID: requestID}

	switch {
	case v.status != engine.StatusRunning && v.status != engine.StatusFeedback:
		action.Type = network.CmdStart
		action.Payload = mustJSON(map[string]string{"name": "stress-" + requestID})
		return action
	case v.status == engine.StatusFeedback:
		action.Type = network.CmdContinue
		return action
	}

	switch n := rng.Intn(10); {
	case n == 0 && len(v.patientIDs) > 0:
		action.Type = network.CmdSelect
		action.PatientID = v.patientIDs[rng.Intn(len(v.patientIDs))]
	case n <= 2:
		action.Type = network.CmdHistory
	case n <= 4:
		action.Type = network.CmdPhysical
	case n <= 6 && len(v.exams) > 0:
		action.Type = network.CmdExam
		action.Payload = mustJSON(map[string]string{"key": v.exams[rng.Intn(len(v.exams))]})
	case n <= 8 && len(v.treatments) > 0:
		action.Type = network.CmdTreatment
		action.Payload = mustJSON(map[string]string{"key": v.treatments[rng.Intn(len(v.treatments))]})
	default:
		action.Type = network.CmdDiagnose
		action.Payload = mustJSON(map[string]string{"text": "stress guess"})
	}
	return action
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("📊 STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	states := atomic.LoadInt64(&stats.StateFrames)
	cmdErrs := atomic.LoadInt64(&stats.CommandErrors)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d (%d state frames)\n", recv, states)
	fmt.Printf("Rejected Commands: %d\n", cmdErrs)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]

		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}

		avg := total / time.Duration(len(stats.Latencies))

		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", lo)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", hi)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0:
		fmt.Println("✅ TEST PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("⚠️ TEST WARNING: Some errors detected")
	default:
		fmt.Println("❌ TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]any{
		"messages_sent":      sent,
		"messages_received":  recv,
		"state_frames":       states,
		"rejected_commands":  cmdErrs,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]any{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.OutPath, jsonData, 0o644); err != nil {
		log.Printf("failed to write results: %v", err)
		return
	}
	fmt.Printf("\n📁 Results saved to %s\n", config.OutPath)
}
