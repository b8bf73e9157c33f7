package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/corpus"
)

// sample is one completed request. outcome is the response status field and
// stays empty for transport failures and error bodies.
type sample struct {
	latency time.Duration
	code    int
	outcome string
	err     error
}

// tally aggregates samples from every worker.
type tally struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int
	outcomes  map[string]int
	transport int
	failures  int
}

func newTally() *tally {
	return &tally{codes: map[int]int{}, outcomes: map[string]int{}}
}

func (t *tally) add(s sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.err != nil {
		t.transport++
		t.failures++
		return
	}
	t.latencies = append(t.latencies, s.latency)
	t.codes[s.code]++
	if s.code >= 300 {
		t.failures++
	}
	if s.outcome != "" {
		t.outcomes[s.outcome]++
	}
}

func (t *tally) total() int {
	return len(t.latencies) + t.transport
}

func main() {
	target := flag.String("url", "http://localhost:8080", "base URL of the search service")
	workers := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	k := flag.Int("k", 10, "matches requested per query")
	corpusFile := flag.String("corpus", "data/transformed_data.json", "transformed corpus whose sample queries are replayed")
	extra := flag.String("queries", "", "comma-separated queries used in addition to the corpus samples")
	flag.Parse()

	queries, err := loadQueries(*corpusFile, *extra)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
		os.Exit(1)
	}
	base := strings.TrimRight(*target, "/")

	fmt.Printf("target=%s workers=%d duration=%s queries=%d k=%d\n", base, *workers, *duration, len(queries), *k)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	t := run(ctx, base, queries, *workers, *k)
	if !report(os.Stdout, t, *duration) {
		os.Exit(1)
	}
}

func loadQueries(corpusFile, extra string) ([]string, error) {
	var queries []string
	for _, q := range strings.Split(extra, ",") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if corpusFile != "" {
		p, err := corpus.ReadPayload(corpusFile)
		if err != nil && len(queries) == 0 {
			return nil, err
		}
		if p != nil {
			queries = append(queries, p.Queries...)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries: the corpus holds no samples and -queries is empty")
	}
	return queries, nil
}

// run replays queries round-robin from every worker until ctx ends.
func run(ctx context.Context, base string, queries []string, workers, k int) *tally {
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: workers * 2},
	}
	t := newTally()

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := queries[i%len(queries)]
				u := fmt.Sprintf("%s/api/v1/search?q=%s&k=%d", base, url.QueryEscape(q), k)
				s := search(ctx, client, u)
				// Requests cut off by the end of the run are not failures.
				if ctx.Err() != nil {
					return nil
				}
				t.add(s)
			}
			return nil
		})
	}
	_ = g.Wait()
	return t
}

func search(ctx context.Context, client *http.Client, u string) sample {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return sample{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return sample{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return sample{latency: time.Since(start), code: resp.StatusCode, outcome: body.Status}
}

// report prints the run summary and reports whether any request completed.
func report(w io.Writer, t *tally, elapsed time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.total()
	fmt.Fprintf(w, "\nrequests  %d (%.1f/s)\n", total, float64(total)/elapsed.Seconds())
	if total == 0 {
		fmt.Fprintln(w, "no requests completed; is the search service running?")
		return false
	}
	fmt.Fprintf(w, "failures  %d (%.2f%%)\n", t.failures, float64(t.failures)/float64(total)*100)

	lat := slices.Clone(t.latencies)
	slices.Sort(lat)
	if len(lat) > 0 {
		fmt.Fprintf(w, "latency   min=%s p50=%s p90=%s p99=%s max=%s\n",
			lat[0], quantile(lat, 0.50), quantile(lat, 0.90), quantile(lat, 0.99), lat[len(lat)-1])
	}

	for _, code := range slices.Sorted(maps.Keys(t.codes)) {
		fmt.Fprintf(w, "http %d  %d\n", code, t.codes[code])
	}
	for _, o := range slices.Sorted(maps.Keys(t.outcomes)) {
		fmt.Fprintf(w, "%-10s%d\n", o, t.outcomes[o])
	}
	return true
}

// quantile uses the nearest-rank method on an ascending slice.
func quantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
