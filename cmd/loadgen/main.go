package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds the load-generator settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success       uint64 // 200: executed or replayed
	inProgress    uint64 // 202: in-progress collisions
	client4xx     uint64 // precondition rejections
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "unique", "Workload type: unique | replay")
}

func main() {
	flag.Parse()
	log.Printf("Starting load generator: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	// The replay workload reuses one token per worker to measure the
	// replay path; unique generates a fresh token per request.
	replayToken := uuid.NewString()

	for time.Since(start) < duration {
		token := replayToken
		if workload == "unique" {
			token = uuid.NewString()
		}

		payload := map[string]interface{}{
			"recipient_phone": randomPhone(),
			"amount":          int64(100),
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", token)
		req.Header.Set("X-User-Id", fmt.Sprintf("user-%04d", rand.Intn(1000)))

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == 200:
			atomic.AddUint64(&success, 1)
		case resp.StatusCode == 202:
			atomic.AddUint64(&inProgress, 1)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			atomic.AddUint64(&client4xx, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func randomPhone() string {
	return fmt.Sprintf("+3584012%05d", rand.Intn(100000))
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&success)
	c202 := atomic.LoadUint64(&inProgress)
	c4xx := atomic.LoadUint64(&client4xx)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": tps,
		"success":        ok,
		"in_progress":    c202,
		"rejected_4xx":   c4xx,
		"errors":         fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
