package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	expenses    int
	amount      int64
	ledgerKind  string
	ledgerID    string
	managerID   string
)

// Metrics
var (
	totalRequests uint64
	approved200   uint64
	refused422    uint64 // InsufficientBalance
	conflict409   uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.IntVar(&expenses, "expenses", 200, "Pending expenses to race against the balance")
	flag.Int64Var(&amount, "amount", 1000000, "Amount of each expense")
	flag.StringVar(&ledgerKind, "ledger-kind", "fund", "Ledger kind: fund | campaign")
	flag.StringVar(&ledgerID, "ledger", "", "Ledger id (required)")
	flag.StringVar(&managerID, "manager", "", "Manager member id (required)")
}

func main() {
	flag.Parse()
	if ledgerID == "" || managerID == "" {
		log.Fatal("-ledger and -manager are required")
	}
	client := &http.Client{Timeout: 10 * time.Second}

	before, err := balance(client)
	if err != nil {
		log.Fatalf("Read balance: %v", err)
	}
	log.Printf("Starting Benchmark: %d expenses of %d against %s | Workers: %d", expenses, amount, before, concurrency)

	ids := make(chan string, expenses)
	for i := 0; i < expenses; i++ {
		id, err := createExpense(client, i)
		if err != nil {
			log.Fatalf("Create expense %d: %v", i, err)
		}
		ids <- id
	}
	close(ids)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, client, ids)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := balance(client)
	if err != nil {
		log.Fatalf("Read balance: %v", err)
	}
	printResults(elapsed, before, after)
}

func worker(wg *sync.WaitGroup, client *http.Client, ids <-chan string) {
	defer wg.Done()
	body, _ := json.Marshal(map[string]string{
		"notes":             "benchmark",
		"payment_proof_url": "https://example.invalid/bench/transfer.png",
	})

	for id := range ids {
		req, _ := http.NewRequest("POST", targetURL+"/api/v1/expenses/"+id+"/approve", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Actor-ID", managerID)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 200:
			atomic.AddUint64(&approved200, 1)
		case 422:
			atomic.AddUint64(&refused422, 1)
		case 409:
			atomic.AddUint64(&conflict409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func createExpense(client *http.Client, n int) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"ledger_kind": ledgerKind,
		"ledger_id":   ledgerID,
		"amount":      amount,
		"category":    "benchmark",
		"description": fmt.Sprintf("bench expense %d", n),
	})
	req, _ := http.NewRequest("POST", targetURL+"/api/v1/expenses", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", managerID)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func balance(client *http.Client) (json.Number, error) {
	resp, err := client.Get(targetURL + "/api/v1/ledgers/" + ledgerKind + "/" + ledgerID + "/balance")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Balance json.Number `json:"balance"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return "", err
	}
	return out.Balance, nil
}

func printResults(d time.Duration, before, after json.Number) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&approved200)
	refused := atomic.LoadUint64(&refused422)
	conflicts := atomic.LoadUint64(&conflict409)
	fErr := atomic.LoadUint64(&failOther)

	startBal, _ := before.Float64()
	endBal, _ := after.Float64()
	spent := startBal - endBal
	results := map[string]interface{}{
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       float64(total) / d.Seconds(),
		"approved":             ok,
		"insufficient_balance": refused,
		"conflicts":            conflicts,
		"errors":               fErr,
		"balance_before":       before,
		"balance_after":        after,
		// Every approval must be matched by exactly one debit.
		"ledger_consistent": spent == float64(ok)*float64(amount) && endBal >= 0,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	file, err := os.Create("results_approvals.json")
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
