// Command simulate hammers a running gateway with concurrent, deliberately
// overlapping booking requests for one doctor and one date, then verifies
// that the accepted set contains no overlap. It is the double-booking
// invariant check run against a real deployment.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type SimConfig struct {
	APIBaseURL string
	Workers    int
	Requests   int
	DoctorID   string
	Date       string
	DayStart   int // minutes from midnight
	DayEnd     int
}

type wonWindow struct {
	Start int
	End   int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
	won       []wonWindow
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool, w wonWindow) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	if success {
		om.won = append(om.won, w)
	}
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// OverlapCount checks the accepted bookings against each other. Anything
// other than zero means the gateway double-booked.
func (om *OperationMetrics) OverlapCount() int {
	om.mu.Lock()
	defer om.mu.Unlock()

	overlaps := 0
	for i := 0; i < len(om.won); i++ {
		for j := i + 1; j < len(om.won); j++ {
			if om.won[i].Start < om.won[j].End && om.won[j].Start < om.won[i].End {
				overlaps++
			}
		}
	}
	return overlaps
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if cfg.DoctorID == "" {
		log.Fatal("SIM_DOCTOR_ID is required")
	}
	if cfg.Date == "" {
		cfg.Date = time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	}

	log.Printf("config: base_url=%s workers=%d requests=%d doctor=%s date=%s",
		cfg.APIBaseURL, cfg.Workers, cfg.Requests, cfg.DoctorID, cfg.Date)

	client := &http.Client{Timeout: 10 * time.Second}
	metrics := &OperationMetrics{}

	jobs := make(chan wonWindow)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				bookOnce(client, cfg, w, metrics)
			}
		}()
	}

	// Offsets are drawn from a small set of 30-minute windows so that most
	// requests collide with each other.
	span := cfg.DayEnd - cfg.DayStart - 30
	for i := 0; i < cfg.Requests; i++ {
		start := cfg.DayStart + rand.Intn(span/15)*15
		jobs <- wonWindow{Start: start, End: start + 30}
	}
	close(jobs)
	wg.Wait()

	printReport(metrics)
}

func bookOnce(client *http.Client, cfg SimConfig, w wonWindow, metrics *OperationMetrics) {
	payload := map[string]any{
		"doctor_id":        cfg.DoctorID,
		"patient_name":     fmt.Sprintf("Load Tester %d", rand.Intn(100000)),
		"patient_email":    fmt.Sprintf("load-%d@example.com", rand.Intn(100000)),
		"appointment_date": cfg.Date,
		"start_time":       clock(w.Start),
		"end_time":         clock(w.End),
	}
	body, _ := json.Marshal(payload)

	start := time.Now()
	resp, err := client.Post(cfg.APIBaseURL+"/api/v1/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		metrics.Record(latency, false, false, w)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		metrics.Record(latency, true, false, w)
	case http.StatusConflict:
		metrics.Record(latency, false, true, w)
	default:
		metrics.Record(latency, false, false, w)
	}
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func printReport(metrics *OperationMetrics) {
	avg, min, max, p50, p95 := metrics.Stats()
	overlaps := metrics.OverlapCount()

	fmt.Println("=== booking simulation report ===")
	fmt.Printf("total=%d success=%d conflict=%d error=%d\n",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	fmt.Printf("latency avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)
	fmt.Printf("overlapping accepted bookings: %d\n", overlaps)
	if overlaps > 0 {
		fmt.Println("FAIL: gateway accepted overlapping bookings")
		os.Exit(1)
	}
	fmt.Println("OK: no double-booking observed")
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:    getInt("SIM_WORKERS", 16),
		Requests:   getInt("SIM_REQUESTS", 200),
		DoctorID:   os.Getenv("SIM_DOCTOR_ID"),
		Date:       os.Getenv("SIM_DATE"),
		DayStart:   getInt("SIM_DAY_START_MIN", 9*60),
		DayEnd:     getInt("SIM_DAY_END_MIN", 17*60),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
