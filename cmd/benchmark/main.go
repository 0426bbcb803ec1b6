// Benchmark tool for testing Talon against synthetic fraud scenarios.
//
// Usage:
//
//	go run cmd/benchmark/main.go -url http://localhost:8080
//
// This tool:
//  1. Generates a synthetic batch with planted layering chains, money
//     mules, and circular rings over a legitimate background
//  2. Submits the batch to Talon for analysis
//  3. Compares flagged accounts with the planted fraud labels
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Account mirrors the Talon API account shape.
type Account struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	CreatedAt         time.Time `json:"createdAt"`
	Country           string    `json:"country"`
	ExistingRiskScore *float64  `json:"existingRiskScore,omitempty"`
}

// Transaction mirrors the Talon API transaction shape.
type Transaction struct {
	ID         string    `json:"id"`
	DebtorID   string    `json:"debtorId"`
	CreditorID string    `json:"creditorId"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
}

// BatchRequest is the Talon API request format.
type BatchRequest struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// BatchResponse is the subset of the Talon API response we score against.
type BatchResponse struct {
	ID      string `json:"id"`
	BatchID string `json:"batchId"`
	Risks   []struct {
		AccountID string   `json:"accountId"`
		Score     float64  `json:"score"`
		Reasons   []string `json:"reasons"`
	} `json:"risks"`
	PartitionFailed bool `json:"partitionFailed"`
	Metadata        struct {
		PatternCount int   `json:"patternCount"`
		TotalMs      int64 `json:"totalMs"`
	} `json:"metadata"`
}

// scenario is a generated batch plus the set of planted fraud accounts.
type scenario struct {
	accounts     []Account
	transactions []Transaction
	fraud        map[string]bool
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Talon base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	background := flag.Int("background", 200, "Number of legitimate background accounts")
	chains := flag.Int("chains", 3, "Number of planted layering chains")
	mules := flag.Int("mules", 3, "Number of planted money mules")
	rings := flag.Int("rings", 2, "Number of planted circular rings")
	seed := flag.Int64("seed", 42, "RNG seed for reproducible scenarios")
	verbose := flag.Bool("verbose", false, "Print each flagged account")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        TALON BENCHMARK - Synthetic Fraud Scenarios            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nTalon URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Background:  %d accounts\n", *background)
	fmt.Printf("Planted:     %d chains, %d mules, %d rings\n", *chains, *mules, *rings)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Talon not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Talon is running:")
		fmt.Println("  cd talon && go run cmd/talon/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Talon is healthy")

	sc := generate(rand.New(rand.NewSource(*seed)), *background, *chains, *mules, *rings)
	fmt.Printf("✓ Generated %d accounts, %d transactions (%d planted fraud accounts)\n",
		len(sc.accounts), len(sc.transactions), len(sc.fraud))

	start := time.Now()
	result, err := analyzeBatch(*baseURL, *tenantID, sc)
	if err != nil {
		fmt.Printf("ERROR: analysis failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)

	printResults(sc, result, duration, *verbose)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generate builds the synthetic batch. Planted accounts are young, sit in
// unknown jurisdictions, and move funds in the shapes the detectors look
// for; background accounts trade at low tempo between random peers.
func generate(rng *rand.Rand, background, chains, mules, rings int) *scenario {
	sc := &scenario{fraud: make(map[string]bool)}
	now := time.Now().UTC()
	txSeq := 0

	addTx := func(from, to string, amount float64, at time.Time) {
		txSeq++
		sc.transactions = append(sc.transactions, Transaction{
			ID:         fmt.Sprintf("TX%06d", txSeq),
			DebtorID:   from,
			CreditorID: to,
			Amount:     amount,
			Timestamp:  at,
			Type:       "transfer",
		})
	}

	addAccount := func(id string, ageDays int, country string) {
		sc.accounts = append(sc.accounts, Account{
			ID:        id,
			Type:      "personal",
			CreatedAt: now.AddDate(0, 0, -ageDays),
			Country:   country,
		})
	}

	// Legitimate background: mature accounts, sparse random transfers
	for i := 0; i < background; i++ {
		addAccount(fmt.Sprintf("BG%04d", i), 365+rng.Intn(2000), "US")
	}
	for i := 0; i < background*2; i++ {
		from := fmt.Sprintf("BG%04d", rng.Intn(background))
		to := fmt.Sprintf("BG%04d", rng.Intn(background))
		if from == to {
			continue
		}
		addTx(from, to, 50+rng.Float64()*500, now.Add(-time.Duration(rng.Intn(30*24))*time.Hour))
	}

	// Layering chains: 5 hops, each within minutes of the previous
	for c := 0; c < chains; c++ {
		base := now.Add(-time.Duration(c+1) * 24 * time.Hour)
		var prev string
		for hop := 0; hop < 6; hop++ {
			id := fmt.Sprintf("CH%02dH%d", c, hop)
			addAccount(id, 10+rng.Intn(30), "unknown-jurisdiction")
			sc.fraud[id] = true
			if prev != "" {
				addTx(prev, id, 9000-float64(hop)*120, base.Add(time.Duration(hop)*10*time.Minute))
			}
			prev = id
		}
	}

	// Money mules: heavy fan-in, single drain, bursty tempo
	for m := 0; m < mules; m++ {
		mule := fmt.Sprintf("MU%02d", m)
		drain := fmt.Sprintf("MU%02dD", m)
		addAccount(mule, 5+rng.Intn(20), "unknown-jurisdiction")
		addAccount(drain, 30+rng.Intn(60), "US")
		sc.fraud[mule] = true
		for s := 0; s < 5; s++ {
			sender := fmt.Sprintf("MU%02dS%d", m, s)
			addAccount(sender, 100+rng.Intn(400), "US")
			for k := 0; k < 3; k++ {
				addTx(sender, mule, 400+rng.Float64()*300, now.Add(-time.Duration(s*3+k)*time.Hour))
			}
		}
		addTx(mule, drain, 6000, now.Add(-30*time.Minute))
	}

	// Circular rings: closed loops of 4 accounts
	for r := 0; r < rings; r++ {
		members := make([]string, 4)
		for i := range members {
			members[i] = fmt.Sprintf("RG%02dM%d", r, i)
			addAccount(members[i], 15+rng.Intn(45), "unknown-jurisdiction")
			sc.fraud[members[i]] = true
		}
		base := now.Add(-time.Duration(r+1) * 48 * time.Hour)
		for i := range members {
			addTx(members[i], members[(i+1)%len(members)], 2500, base.Add(time.Duration(i)*time.Hour))
		}
	}

	return sc
}

func analyzeBatch(baseURL, tenantID string, sc *scenario) (*BatchResponse, error) {
	body, err := json.Marshal(BatchRequest{
		Accounts:     sc.accounts,
		Transactions: sc.transactions,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/batches", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(sc *scenario, result *BatchResponse, duration time.Duration, verbose bool) {
	flagged := make(map[string]bool, len(result.Risks))
	for _, risk := range result.Risks {
		flagged[risk.AccountID] = true
		if verbose {
			mark := " "
			if sc.fraud[risk.AccountID] {
				mark = "✓"
			}
			fmt.Printf("%s %-10s score=%.4f reasons=%v\n", mark, risk.AccountID, risk.Score, risk.Reasons)
		}
	}

	var tp, fp, fn, tn int64
	for _, a := range sc.accounts {
		predicted := flagged[a.ID]
		actual := sc.fraud[a.ID]
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}

	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 BATCH STATISTICS\n")
	fmt.Printf("   Accounts:          %d\n", len(sc.accounts))
	fmt.Printf("   Transactions:      %d\n", len(sc.transactions))
	fmt.Printf("   Planted Fraud:     %d\n", len(sc.fraud))
	fmt.Printf("   Patterns Found:    %d\n", result.Metadata.PatternCount)
	fmt.Printf("   Partition Failed:  %v\n", result.PartitionFailed)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED      CLEAR")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", tp, fn)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", fp, tn)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	recall := float64(0)
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged accounts, how many were planted fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of planted fraud, how many were flagged)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Round Trip:       %v\n", duration.Round(time.Millisecond))
	fmt.Printf("   Engine Time:      %d ms\n", result.Metadata.TotalMs)

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most planted fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some planted accounts")
	} else {
		fmt.Println("   ❌ Poor recall - most planted fraud is being missed!")
	}
	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	}

	fmt.Println()
}
