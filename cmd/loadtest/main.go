package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Compare     bool
	// QPS caps the combined query rate across workers. Zero means
	// unthrottled.
	QPS float64
}

type searchBody struct {
	IDs      []string `json:"ids"`
	CacheHit bool     `json:"cache_hit"`
}

var defaultQueries = []string{
	"quick",
	"brown fox",
	"search engine",
	"bloom filter",
	"distributed",
	"music video",
	"tutorial",
	"compilation",
	"xyzzy",
	"the",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line")
	compare := flag.Bool("compare", true, "also run every query linearly and compare ids")
	qps := flag.Float64("qps", 0, "target query iterations per second across all workers (0 = unthrottled)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		var err error
		if queries, err = readQueries(*queryFile); err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
		Compare:     *compare,
		QPS:         *qps,
	}

	fmt.Println("=== Bloom Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	if cfg.QPS > 0 {
		fmt.Printf("Target QPS:  %.1f\n", cfg.QPS)
	}
	fmt.Println()

	indexed, linear, mismatches := runLoadTest(cfg)
	ok := printReport("indexed", indexed, cfg.Duration)
	if cfg.Compare {
		ok = printReport("linear", linear, cfg.Duration) && ok
		fmt.Printf("\nStrategy mismatches: %d\n", mismatches)
	}
	if !ok || mismatches > 0 {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s holds no queries", path)
	}
	return out, sc.Err()
}

func runLoadTest(cfg Config) (indexed, linear *Stats, mismatches int64) {
	indexed, linear = NewStats(), NewStats()
	var mismatchCount atomic.Int64
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), max(1, cfg.Concurrency))
	}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				if limiter.Wait(ctx) != nil {
					return
				}
				q := cfg.Queries[i%len(cfg.Queries)]
				a, okA := search(ctx, client, cfg.BaseURL+"/api/v1/search", q, indexed)
				if !cfg.Compare {
					continue
				}
				b, okB := search(ctx, client, cfg.BaseURL+"/api/v1/search/linear", q, linear)
				if okA && okB && !slices.Equal(a, b) {
					mismatchCount.Add(1)
					fmt.Fprintf(os.Stderr, "\nmismatch for %q: indexed=%d linear=%d ids\n", q, len(a), len(b))
				}
			}
		}(w)
	}
	wg.Wait()
	return indexed, linear, mismatchCount.Load()
}

func search(ctx context.Context, client *http.Client, endpoint, q string, stats *Stats) ([]string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+url.QueryEscape(q), nil)
	if err != nil {
		stats.Record(0, 0, false, err)
		return nil, false
	}
	start := time.Now()
	resp, err := client.Do(req)
	d := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.Record(d, 0, false, err)
		}
		return nil, false
	}
	defer resp.Body.Close()
	var body searchBody
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	stats.Record(d, resp.StatusCode, body.CacheHit, nil)
	return body.IDs, resp.StatusCode == http.StatusOK && decodeErr == nil
}

func printReport(name string, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	errs := stats.errors.Load()

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", stats.success.Load())
	fmt.Printf("Errors:          %d\n", errs)
	fmt.Printf("Cache Hits:      %d\n", stats.cacheHits.Load())
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s := stats.Summary()
	fmt.Printf("Latency min=%s avg=%s p50=%s p90=%s p99=%s max=%s stddev=%s\n",
		s.Min, s.Avg, s.P50, s.P90, s.P99, s.Max, s.StdDev)

	codes := stats.StatusCodes()
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)
	for _, code := range keys {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}
	fmt.Println()

	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}
